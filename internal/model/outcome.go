package model

// ErrorKind classifies a failed outcome.
type ErrorKind string

const (
	ErrorNone                ErrorKind = ""
	ErrorOracleUnavailable   ErrorKind = "OracleUnavailable"
	ErrorInvalidInput        ErrorKind = "InvalidInput"
	ErrorInsufficientBalance ErrorKind = "InsufficientBalance"
	ErrorApprovalFailed      ErrorKind = "ApprovalFailed"
	ErrorGasEstimation       ErrorKind = "GasEstimationFailed"
	ErrorReverted            ErrorKind = "TransactionReverted"
	ErrorUserRejected        ErrorKind = "UserRejected"
	ErrorUnknown             ErrorKind = "Unknown"
)

// Outcome is the normalized result of submitting an intent.
type Outcome struct {
	Success        bool      `json:"success"`
	Hash           string    `json:"hash,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ApprovalHashes []string  `json:"approval_hashes,omitempty"`
}

// Failed builds a failed outcome.
func Failed(kind ErrorKind, message string) Outcome {
	return Outcome{ErrorKind: kind, ErrorMessage: message}
}
