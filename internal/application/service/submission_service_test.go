package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/lock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionService_Finalize_CreatesReportAndPendingApprovals(t *testing.T) {
	env := setupEnv(t)

	report, err := env.submission.Finalize(context.Background(), finalizeInput("r1", "e1", "e2"))
	require.NoError(t, err)

	assert.Equal(t, "r1", report.ReportID)
	assert.Equal(t, "emp@example.com", report.EmployeeEmail)
	assert.Equal(t, entity.ReportStatusSubmitted, report.Status)
	require.Len(t, report.Expenses, 2)
	assert.Equal(t, "USD", report.Expenses[0].Currency)
	assert.True(t, decimal.RequireFromString("85").Equal(report.Total()))

	require.Len(t, report.Approvals, 2)
	for _, a := range report.Approvals {
		assert.Equal(t, entity.ApprovalStatusPending, a.Status)
	}
	assert.Empty(t, report.Receipts)
}

func TestSubmissionService_Finalize_ReconcilesStagedReceipts(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.draftSvc.Attach(ctx, "r1", "e1", []UploadFile{{FileName: "a.pdf", ContentType: "application/pdf", Content: pdfBytes}})
	require.NoError(t, err)

	report, err := env.submission.Finalize(ctx, finalizeInput("r1", "e1"))
	require.NoError(t, err)

	require.Len(t, report.Receipts, 1)
	receipt := report.Receipts[0]
	require.NotNil(t, receipt.ExpenseID)
	assert.Equal(t, report.Expenses[0].ID, *receipt.ExpenseID)
	assert.Equal(t, "e1", receipt.ClientExpenseID)
	assert.Equal(t, "a.pdf", receipt.FileName)
	assert.Equal(t, "application/pdf", receipt.ContentType)
	assert.Equal(t, int64(len(pdfBytes)), receipt.FileSize)

	stored, ok := env.store.Get(receipt.Storage.Key)
	require.True(t, ok)
	assert.Equal(t, pdfBytes, stored)

	staged, err := env.drafts.ListByDraft(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, staged["e1"])
}

func TestSubmissionService_Finalize_UsesDraftID(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.draftSvc.Attach(ctx, "draft-7", "e1", []UploadFile{{FileName: "a.pdf", Content: pdfBytes}})
	require.NoError(t, err)

	in := finalizeInput("r7", "e1")
	in.DraftID = "draft-7"
	report, err := env.submission.Finalize(ctx, in)
	require.NoError(t, err)
	assert.Len(t, report.Receipts, 1)
}

func TestSubmissionService_Finalize_DuplicateReport(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	submit(t, env, "r1")

	_, err := env.draftSvc.Attach(ctx, "r1", "e1", []UploadFile{{FileName: "a.pdf", Content: pdfBytes}})
	require.NoError(t, err)

	_, err = env.submission.Finalize(ctx, finalizeInput("r1", "e1"))
	require.ErrorIs(t, err, entity.ErrConflict)

	expenses, err := env.repos.Expenses.GetByReportID(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, expenses, 1)

	staged, err := env.drafts.ListByDraft(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, staged["e1"], 1, "draft must survive a rejected submission")
	assert.Zero(t, env.store.uploads)
}

func TestSubmissionService_Finalize_StorageFailureKeepsDraft(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.store.failUploads = true

	_, err := env.draftSvc.Attach(ctx, "r1", "e1", []UploadFile{{FileName: "a.pdf", Content: pdfBytes}})
	require.NoError(t, err)

	_, err = env.submission.Finalize(ctx, finalizeInput("r1", "e1"))
	require.ErrorIs(t, err, entity.ErrStorage)

	exists, err := env.repos.Reports.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, exists)

	staged, err := env.drafts.ListByDraft(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, staged["e1"], 1)

	env.store.failUploads = false
	report, err := env.submission.Finalize(ctx, finalizeInput("r1", "e1"))
	require.NoError(t, err)
	assert.Len(t, report.Receipts, 1)
}

func TestSubmissionService_Finalize_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *FinalizeInput)
	}{
		{"missing report id", func(in *FinalizeInput) { in.ReportID = " " }},
		{"bad employee email", func(in *FinalizeInput) { in.EmployeeEmail = "not-an-email" }},
		{"no expenses", func(in *FinalizeInput) { in.Expenses = nil }},
		{"duplicate expense ids", func(in *FinalizeInput) { in.Expenses = append(in.Expenses, in.Expenses[0]) }},
		{"unknown category", func(in *FinalizeInput) { in.Expenses[0].Category = "yacht" }},
		{"zero amount", func(in *FinalizeInput) { in.Expenses[0].Amount = decimal.Zero }},
		{"negative amount", func(in *FinalizeInput) { in.Expenses[0].Amount = decimal.NewFromInt(-5) }},
		{"bad currency", func(in *FinalizeInput) { in.Expenses[0].Currency = "dollars" }},
		{"bad header json", func(in *FinalizeInput) { in.Header = []byte(`{`) }},
		{"missing finalized at", func(in *FinalizeInput) { in.FinalizedAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			in := finalizeInput("r1", "e1")
			tt.mutate(&in)

			_, err := env.submission.Finalize(context.Background(), in)
			require.ErrorIs(t, err, entity.ErrValidation)

			exists, err := env.repos.Reports.Exists(context.Background(), "r1")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestSubmissionService_Finalize_LockHeld(t *testing.T) {
	env := setupEnv(t)
	locker := &heldLocker{}
	svc := NewSubmissionService(env.repos, nil, env.store, env.drafts, locker, SubmissionConfig{}, env.logger)

	_, err := svc.Finalize(context.Background(), finalizeInput("r1", "e1"))
	require.ErrorIs(t, err, entity.ErrConflict)
	assert.Equal(t, "finalize:r1", locker.key)
}

type heldLocker struct {
	key string
}

func (l *heldLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.key = key
	return nil, port.ErrLockHeld
}

// unreadableDrafts lists staged receipts but fails to read their bytes
type unreadableDrafts struct {
	DraftStore
	err error
}

func (u unreadableDrafts) GetBlobs(ctx context.Context, draftID, expenseID string, ids ...string) ([]entity.DraftBlob, error) {
	return nil, u.err
}

func TestSubmissionService_Finalize_DraftReadErrorsKeepTheirClass(t *testing.T) {
	tests := []struct {
		name    string
		readErr error
		want    error
	}{
		{name: "vanished receipt", readErr: fmt.Errorf("%w: draft receipts [x]", entity.ErrNotFound), want: entity.ErrNotFound},
		{name: "bad id", readErr: fmt.Errorf("%w: invalid draft id", entity.ErrValidation), want: entity.ErrValidation},
		{name: "local disk", readErr: errors.New("read drafts/x.bin: input/output error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			ctx := context.Background()

			_, err := env.draftSvc.Attach(ctx, "r1", "e1", []UploadFile{{FileName: "a.pdf", Content: pdfBytes}})
			require.NoError(t, err)

			drafts := unreadableDrafts{DraftStore: env.drafts, err: tt.readErr}
			svc := NewSubmissionService(env.repos, nil, env.store, drafts, lock.NewLocalLocker(),
				SubmissionConfig{UploadConcurrency: 2, LockTTL: time.Minute}, env.logger)

			_, err = svc.Finalize(ctx, finalizeInput("r1", "e1"))
			require.Error(t, err)
			assert.NotErrorIs(t, err, entity.ErrStorage, "a local read is not a storage outage")
			assert.ErrorIs(t, err, tt.readErr)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Zero(t, env.store.uploads)
		})
	}
}
