package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrMissingKey is returned when a transaction is sent without a signer.
var ErrMissingKey = errors.New("private key is required to send transactions")

// userRejectedCode is the EIP-1193 code for a request rejected by the user.
const userRejectedCode = 4001

// IsUserRejected reports whether err means the account holder refused to sign.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "request denied")
}

// IsInsufficientFunds reports whether the node refused a tx for lack of native funds.
func IsInsufficientFunds(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

// RevertReason extracts a revert string from an RPC error, if any.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(data); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	const marker = "execution reverted:"
	msg := err.Error()
	if idx := strings.Index(msg, marker); idx >= 0 {
		return strings.TrimSpace(msg[idx+len(marker):])
	}
	return ""
}
