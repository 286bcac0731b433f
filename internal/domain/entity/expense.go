package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Expense is one line of a report. ExternalID holds the client-generated id
// used while drafting and is what staged receipts are reconciled against.
type Expense struct {
	ID          int64           `json:"id"`
	ReportID    string          `json:"report_id"`
	ExternalID  string          `json:"external_id,omitempty"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	IncurredAt  time.Time       `json:"incurred_at"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Merchant returns the "merchant" metadata key, or "" when absent
func (e *Expense) Merchant() string {
	var merchant string
	if raw, ok := e.metadataField("merchant"); ok {
		_ = json.Unmarshal(raw, &merchant)
	}
	return merchant
}

// IsReimbursable reads the "reimbursable" metadata key. Expenses are
// reimbursable unless it is explicitly false.
func (e *Expense) IsReimbursable() bool {
	raw, ok := e.metadataField("reimbursable")
	if !ok {
		return true
	}
	var reimbursable bool
	if err := json.Unmarshal(raw, &reimbursable); err != nil {
		return true
	}
	return reimbursable
}

func (e *Expense) metadataField(key string) (json.RawMessage, bool) {
	if len(e.Metadata) == 0 {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Metadata, &fields); err != nil {
		return nil, false
	}
	raw, ok := fields[key]
	return raw, ok
}
