package workflow

// State represents a report status in the approval lifecycle
type State string

const (
	StateSubmitted       State = "SUBMITTED"
	StateManagerApproved State = "MANAGER_APPROVED"
	StateFinanceApproved State = "FINANCE_APPROVED"
	StateRejected        State = "REJECTED"
)

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	switch s {
	case StateFinanceApproved, StateRejected:
		return true
	}
	return false
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid report status
func (s State) IsValid() bool {
	switch s {
	case StateSubmitted, StateManagerApproved, StateFinanceApproved, StateRejected:
		return true
	}
	return false
}
