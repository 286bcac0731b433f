package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Report is a submitted expense report. ReportID is chosen by the client
// and doubles as the submission idempotency key.
type Report struct {
	ReportID      string          `json:"report_id"`
	EmployeeEmail string          `json:"employee_email"`
	ManagerEmail  string          `json:"manager_email"`
	FinalizedAt   time.Time       `json:"finalized_at"`
	Period        string          `json:"period,omitempty"`
	Header        json.RawMessage `json:"header,omitempty"`
	Totals        json.RawMessage `json:"totals,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Expenses  []*Expense  `json:"expenses,omitempty"`
	Approvals []*Approval `json:"approvals,omitempty"`
	Receipts  []*Receipt  `json:"receipts,omitempty"`
}

// Approval returns the approval row for stage, or nil when not loaded.
func (r *Report) Approval(stage string) *Approval {
	for _, a := range r.Approvals {
		if a.Stage == stage {
			return a
		}
	}
	return nil
}

// Total sums the amounts of all loaded expenses regardless of currency.
func (r *Report) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// ReimbursableTotal sums the loaded expenses owed back to the employee
func (r *Report) ReimbursableTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.Expenses {
		if e.IsReimbursable() {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// NonReimbursableTotal sums the loaded expenses flagged as not reimbursable
func (r *Report) NonReimbursableTotal() decimal.Decimal {
	return r.Total().Sub(r.ReimbursableTotal())
}

// CategoryTotals returns total spend per category for the loaded expenses.
func (r *Report) CategoryTotals() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range r.Expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	return totals
}

// IsTerminal returns true once the report can no longer change status.
func (r *Report) IsTerminal() bool {
	return r.Status == ReportStatusFinanceApproved || r.Status == ReportStatusRejected
}
