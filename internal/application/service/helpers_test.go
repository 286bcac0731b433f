package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/draftstore"
	"github.com/garyjia/expense-approval/internal/infrastructure/lock"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/internal/infrastructure/storage"
	"github.com/garyjia/expense-approval/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

// Mock logger
type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

// flakyStorage fails uploads and link issuing on demand
type flakyStorage struct {
	*storage.MemoryStorage
	mu          sync.Mutex
	failUploads bool
	failLinks   bool
	uploads     int
	deletes     int
}

func (f *flakyStorage) Upload(ctx context.Context, in port.UploadInput) (*entity.StoredObject, error) {
	f.mu.Lock()
	fail := f.failUploads
	f.uploads++
	f.mu.Unlock()
	if fail {
		return nil, errors.New("bucket unavailable")
	}
	return f.MemoryStorage.Upload(ctx, in)
}

func (f *flakyStorage) DownloadURL(ctx context.Context, obj entity.StoredObject, ttl time.Duration) (string, error) {
	if f.failLinks {
		return "", errors.New("signing key revoked")
	}
	return f.MemoryStorage.DownloadURL(ctx, obj, ttl)
}

func (f *flakyStorage) Delete(ctx context.Context, obj entity.StoredObject) error {
	f.mu.Lock()
	f.deletes++
	f.mu.Unlock()
	return f.MemoryStorage.Delete(ctx, obj)
}

// captureWriter records the data handed to the archive writer
type captureWriter struct {
	data port.ExportData
}

func (c *captureWriter) Write(_ io.Writer, data port.ExportData) error {
	c.data = data
	return nil
}

type testEnv struct {
	repos      Repositories
	store      *flakyStorage
	drafts     *draftstore.Store
	logger     *mockLogger
	submission SubmissionService
	receipts   ReceiptService
	draftSvc   DraftService
	approvals  ApprovalService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	zl := zap.NewNop()
	dir := t.TempDir()

	db, err := database.New(database.Config{Path: filepath.Join(dir, "app.db"), MaxOpenConns: 1}, zl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zl).Run())

	repos := Repositories{
		Reports:   repository.NewReportRepository(db.DB, zl),
		Expenses:  repository.NewExpenseRepository(db.DB, zl),
		Receipts:  repository.NewReceiptRepository(db.DB, zl),
		Approvals: repository.NewApprovalRepository(db.DB, zl),
	}
	txManager := sqlite.NewDB(db.DB, zl)
	store := &flakyStorage{MemoryStorage: storage.NewMemoryStorage()}
	drafts := draftstore.New(zl, draftstore.NewFileTreeBackend(filepath.Join(dir, "drafts"), zl))
	t.Cleanup(func() { _ = drafts.Teardown(context.Background()) })
	logger := &mockLogger{}
	policy := storage.DefaultPolicy()

	return &testEnv{
		repos:  repos,
		store:  store,
		drafts: drafts,
		logger: logger,
		submission: NewSubmissionService(repos, txManager, store, drafts, lock.NewLocalLocker(),
			SubmissionConfig{UploadConcurrency: 2, LockTTL: time.Minute}, logger),
		receipts:  NewReceiptService(repos, txManager, store, policy, time.Hour, logger),
		draftSvc:  NewDraftService(drafts, policy, logger),
		approvals: NewApprovalService(repos, txManager, logger),
	}
}

func finalizeInput(reportID string, expenseIDs ...string) FinalizeInput {
	in := FinalizeInput{
		ReportID:      reportID,
		EmployeeEmail: "Emp@Example.com",
		ManagerEmail:  "boss@example.com",
		FinalizedAt:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		Period:        "2024-05",
		Header:        []byte(`{"title":"Field visit"}`),
		Totals:        []byte(`{"total":"42.50"}`),
	}
	for _, id := range expenseIDs {
		in.Expenses = append(in.Expenses, ExpenseInput{
			ExpenseID:   id,
			Category:    entity.CategoryMeals,
			Description: "Lunch with client",
			Amount:      decimal.RequireFromString("42.50"),
			Currency:    "usd",
			IncurredAt:  time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		})
	}
	return in
}

func submit(t *testing.T, env *testEnv, reportID string) *entity.Report {
	t.Helper()
	report, err := env.submission.Finalize(context.Background(), finalizeInput(reportID, "e1"))
	require.NoError(t, err)
	return report
}

func decide(env *testEnv, reportID, stage, action, role string) (*entity.Report, error) {
	return env.approvals.Decide(context.Background(), DecisionInput{
		ReportID: reportID,
		Stage:    stage,
		Action:   action,
		Actor:    Actor{Email: role + "@example.com", Role: role},
	})
}
