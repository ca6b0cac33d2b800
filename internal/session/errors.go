package session

import "errors"

var (
	// ErrReadOnly is returned by operations that need a signing key.
	ErrReadOnly = errors.New("session has no signing key")
	// ErrUnknownToken is returned when a symbol is neither pool token.
	ErrUnknownToken = errors.New("token is not part of the pool")
	// ErrNoHistory is returned when no history store is configured.
	ErrNoHistory = errors.New("no history store configured")
)
