package txflow

import (
	"errors"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/model"
)

// ErrNilIntent is returned by Submit when called without an intent.
var ErrNilIntent = errors.New("intent is nil")

// ErrHistoryUnsupported is returned by ChainRecorder when the router cannot
// store history.
var ErrHistoryUnsupported = errors.New("router does not record history")

// classify maps a chain error to an outcome kind. fallback is used when no
// specific kind applies.
func classify(err error, fallback model.ErrorKind) model.ErrorKind {
	switch {
	case err == nil:
		return model.ErrorNone
	case chain.IsUserRejected(err):
		return model.ErrorUserRejected
	case chain.IsInsufficientFunds(err):
		return model.ErrorInsufficientBalance
	default:
		return fallback
	}
}
