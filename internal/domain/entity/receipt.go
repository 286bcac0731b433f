package entity

import "time"

// StoredObject describes where a receipt lives in the configured storage provider.
type StoredObject struct {
	Provider string `json:"provider"`
	Bucket   string `json:"bucket,omitempty"`
	Key      string `json:"key"`
	URL      string `json:"url,omitempty"`
}

// Receipt is a stored file tied to a report. ExpenseID stays nil until the
// receipt is reconciled with the expense whose ExternalID equals ClientExpenseID.
type Receipt struct {
	ID              int64        `json:"id"`
	ReportID        string       `json:"report_id"`
	ClientExpenseID string       `json:"client_expense_id"`
	ExpenseID       *int64       `json:"expense_id,omitempty"`
	Storage         StoredObject `json:"storage"`
	FileName        string       `json:"file_name"`
	ContentType     string       `json:"content_type"`
	FileSize        int64        `json:"file_size"`
	Checksum        string       `json:"checksum"`
	UploadedAt      time.Time    `json:"uploaded_at"`
}

// IsReconciled returns true once the receipt points at a durable expense.
func (r *Receipt) IsReconciled() bool {
	return r.ExpenseID != nil
}
