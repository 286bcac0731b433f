package workflow

// Trigger represents a decision that can cause a report status transition
type Trigger string

const (
	TriggerApproveManager Trigger = "APPROVE_MANAGER"
	TriggerApproveFinance Trigger = "APPROVE_FINANCE"
	TriggerReject         Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
