package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DraftStore is the local staging area for receipts of unsubmitted reports
type DraftStore interface {
	Save(ctx context.Context, draftID, expenseID string, files []entity.DraftFile) ([]entity.DraftReceiptMeta, error)
	ListByDraft(ctx context.Context, draftID string) (map[string][]entity.DraftReceiptMeta, error)
	GetBlobs(ctx context.Context, draftID, expenseID string, ids ...string) ([]entity.DraftBlob, error)
	Delete(ctx context.Context, draftID, expenseID string, ids ...string) error
	ClearDraft(ctx context.Context, draftID string) error
}

// Repositories groups the persistence ports services depend on
type Repositories struct {
	Reports   port.ReportRepository
	Expenses  port.ExpenseRepository
	Receipts  port.ReceiptRepository
	Approvals port.ApprovalRepository
}

// loadReport returns the report with expenses, approvals, and receipts attached
func (r Repositories) loadReport(ctx context.Context, reportID string) (*entity.Report, error) {
	report, err := r.Reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%w: report %s", entity.ErrNotFound, reportID)
	}
	if err := r.hydrate(ctx, report, true); err != nil {
		return nil, err
	}
	return report, nil
}

func (r Repositories) hydrate(ctx context.Context, report *entity.Report, withReceipts bool) error {
	var err error
	if report.Expenses, err = r.Expenses.GetByReportID(ctx, report.ReportID); err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	if report.Approvals, err = r.Approvals.GetByReportID(ctx, report.ReportID); err != nil {
		return fmt.Errorf("load approvals: %w", err)
	}
	if withReceipts {
		if report.Receipts, err = r.Receipts.GetByReportID(ctx, report.ReportID); err != nil {
			return fmt.Errorf("load receipts: %w", err)
		}
	}
	return nil
}
