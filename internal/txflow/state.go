package txflow

import "liquidityDesk/internal/model"

// State is a step of the submission state machine.
type State string

const (
	StateIdle              State = "Idle"
	StateValidatingInputs  State = "ValidatingInputs"
	StateCheckingBalance   State = "CheckingBalance"
	StateCheckingAllowance State = "CheckingAllowance"
	StateApproving         State = "Approving"
	StateSubmitting        State = "Submitting"
	StateAwaitingReceipt   State = "AwaitingReceipt"
	StateSettled           State = "Settled"
	StateFailed            State = "Failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateFailed
}

// Progress is emitted on every transition.
type Progress struct {
	Intent model.IntentKind
	State  State
	// Subject names the token or position an Approving step is for.
	Subject   string
	Hash      string
	ErrorKind model.ErrorKind
}

// ProgressFunc receives transitions synchronously from Submit.
type ProgressFunc func(Progress)
