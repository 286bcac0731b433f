package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ReportFilter narrows ListForExport to a finalized_at window and optional employees.
type ReportFilter struct {
	Status    string
	Start     time.Time
	End       time.Time
	Employees []string
}

// ReportRepository defines persistence operations for Report
type ReportRepository interface {
	// Create inserts a report; a duplicate report id yields entity.ErrConflict
	Create(ctx context.Context, report *entity.Report) error

	// GetByID returns (nil, nil) when the report does not exist
	GetByID(ctx context.Context, reportID string) (*entity.Report, error)

	Exists(ctx context.Context, reportID string) (bool, error)
	UpdateStatus(ctx context.Context, reportID, status string) error
	ListByStatus(ctx context.Context, status string) ([]*entity.Report, error)
	ListForExport(ctx context.Context, filter ReportFilter) ([]*entity.Report, error)
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByReportID(ctx context.Context, reportID string) ([]*entity.Expense, error)
	GetByExternalID(ctx context.Context, reportID, externalID string) (*entity.Expense, error)
}

// ReceiptRepository defines persistence operations for Receipt
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.Receipt) error
	GetByReportID(ctx context.Context, reportID string) ([]*entity.Receipt, error)

	// LinkPending binds every unreconciled receipt of the report to the expense
	// whose external id matches its client expense id; returns rows linked
	LinkPending(ctx context.Context, reportID string) (int64, error)
}

// ApprovalRepository defines persistence operations for Approval
type ApprovalRepository interface {
	// CreatePending inserts the MANAGER and FINANCE rows for a new report
	CreatePending(ctx context.Context, reportID string) error

	GetByReportID(ctx context.Context, reportID string) ([]*entity.Approval, error)

	// Decide writes a decision only if the row is still PENDING at expectedVersion;
	// otherwise it returns entity.ErrConflict
	Decide(ctx context.Context, approval *entity.Approval, expectedVersion int) error

	// ResetToPending clears the decision on a stage and bumps its version
	ResetToPending(ctx context.Context, reportID, stage string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
