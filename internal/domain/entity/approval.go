package entity

import "time"

// Approval is the decision row for one (report, stage) pair. Two rows exist
// per report for its whole lifetime; decisions mutate them in place.
// Version increments on every write and lets callers detect a concurrent decision.
type Approval struct {
	ID        int64      `json:"id"`
	ReportID  string     `json:"report_id"`
	Stage     string     `json:"stage"`
	Status    string     `json:"status"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	Note      string     `json:"note,omitempty"`
	Version   int        `json:"version"`
}

// IsPending returns true while the stage is still awaiting a decision.
func (a *Approval) IsPending() bool {
	return a.Status == ApprovalStatusPending
}
