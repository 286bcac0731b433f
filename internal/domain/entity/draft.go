package entity

import "time"

// DraftFile is a file handed to the draft store by the report builder.
type DraftFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// DraftReceiptMeta is the metadata kept for a staged receipt.
type DraftReceiptMeta struct {
	ID          string    `json:"id"`
	DraftID     string    `json:"draft_id"`
	ExpenseID   string    `json:"expense_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	SavedAt     time.Time `json:"saved_at"`
}

// DraftBlob pairs staged metadata with its bytes.
type DraftBlob struct {
	Meta    DraftReceiptMeta
	Content []byte
}
