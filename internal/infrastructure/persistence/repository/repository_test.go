package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type repos struct {
	tx        *sqlite.DB
	reports   port.ReportRepository
	expenses  port.ExpenseRepository
	receipts  port.ReceiptRepository
	approvals port.ApprovalRepository
}

func setupRepos(t *testing.T) repos {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "repo.db"), MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())

	return repos{
		tx:        sqlite.NewDB(db.DB, logger),
		reports:   NewReportRepository(db.DB, logger),
		expenses:  NewExpenseRepository(db.DB, logger),
		receipts:  NewReceiptRepository(db.DB, logger),
		approvals: NewApprovalRepository(db.DB, logger),
	}
}

func newReport(id, employee string, finalizedAt time.Time) *entity.Report {
	return &entity.Report{
		ReportID:      id,
		EmployeeEmail: employee,
		ManagerEmail:  "boss@example.com",
		FinalizedAt:   finalizedAt,
		Period:        "2024-05",
		Header:        []byte(`{"title":"May travel"}`),
		Status:        entity.ReportStatusSubmitted,
	}
}

func TestReportRepository_CreateAndGet(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	finalized := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.reports.Create(ctx, newReport("r1", "emp@example.com", finalized)))

	got, err := r.reports.GetByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "emp@example.com", got.EmployeeEmail)
	assert.Equal(t, entity.ReportStatusSubmitted, got.Status)
	assert.True(t, finalized.Equal(got.FinalizedAt))
	assert.JSONEq(t, `{"title":"May travel"}`, string(got.Header))
	assert.JSONEq(t, `{}`, string(got.Totals))

	missing, err := r.reports.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := r.reports.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReportRepository_DuplicateIsConflict(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	require.NoError(t, r.reports.Create(ctx, newReport("r1", "emp@example.com", time.Now())))
	err := r.reports.Create(ctx, newReport("r1", "emp@example.com", time.Now()))
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestReportRepository_UpdateStatus(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	require.NoError(t, r.reports.Create(ctx, newReport("r1", "emp@example.com", time.Now())))
	require.NoError(t, r.reports.UpdateStatus(ctx, "r1", entity.ReportStatusManagerApproved))

	listed, err := r.reports.ListByStatus(ctx, entity.ReportStatusManagerApproved)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "r1", listed[0].ReportID)

	err = r.reports.UpdateStatus(ctx, "missing", entity.ReportStatusRejected)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestReportRepository_ListForExport(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	may := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	for _, rep := range []*entity.Report{
		newReport("a", "ann@example.com", may),
		newReport("b", "bob@example.com", may.Add(time.Hour)),
		newReport("c", "ann@example.com", june),
	} {
		rep.Status = entity.ReportStatusFinanceApproved
		require.NoError(t, r.reports.Create(ctx, rep))
	}
	pending := newReport("d", "ann@example.com", may)
	require.NoError(t, r.reports.Create(ctx, pending))

	tests := []struct {
		name   string
		filter port.ReportFilter
		want   []string
	}{
		{
			name:   "status only",
			filter: port.ReportFilter{Status: entity.ReportStatusFinanceApproved},
			want:   []string{"a", "b", "c"},
		},
		{
			name: "window",
			filter: port.ReportFilter{
				Status: entity.ReportStatusFinanceApproved,
				Start:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				End:    time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC),
			},
			want: []string{"a", "b"},
		},
		{
			name: "employee filter is case insensitive",
			filter: port.ReportFilter{
				Status:    entity.ReportStatusFinanceApproved,
				Employees: []string{"ANN@example.com"},
			},
			want: []string{"a", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := r.reports.ListForExport(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, rep := range reports {
				ids = append(ids, rep.ReportID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestReportRepository_ListForExport_SubSecondEdges(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 250_000_000, time.UTC)
	end := time.Date(2024, 5, 31, 23, 59, 59, 500_000_000, time.UTC)

	for id, at := range map[string]time.Time{
		"before-start":  start.Add(-time.Millisecond),
		"at-start":      start,
		"whole-second":  time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC),
		"at-end":        end,
		"after-end":     end.Add(time.Nanosecond),
		"second-after":  end.Add(time.Second),
		"previous-day":  start.Add(-24 * time.Hour),
		"following-day": end.Add(24 * time.Hour),
	} {
		rep := newReport(id, "ann@example.com", at)
		rep.Status = entity.ReportStatusFinanceApproved
		require.NoError(t, r.reports.Create(ctx, rep))
	}

	reports, err := r.reports.ListForExport(ctx, port.ReportFilter{Start: start, End: end})
	require.NoError(t, err)
	var ids []string
	for _, rep := range reports {
		ids = append(ids, rep.ReportID)
	}
	assert.Equal(t, []string{"at-start", "whole-second", "at-end"}, ids)
}

func TestExportQuery_PushesWindowIntoSQL(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 900_000_000, time.FixedZone("CEST", 2*3600))
	end := time.Date(2024, 5, 31, 23, 59, 59, 100_000_000, time.UTC)

	tests := []struct {
		name     string
		filter   port.ReportFilter
		contains []string
		args     []interface{}
	}{
		{
			name:   "no window",
			filter: port.ReportFilter{Status: entity.ReportStatusFinanceApproved},
			args:   []interface{}{entity.ReportStatusFinanceApproved},
		},
		{
			name:     "both bounds widened to whole seconds",
			filter:   port.ReportFilter{Start: start, End: end},
			contains: []string{"finalized_at >= ?", "finalized_at <= ?"},
			args: []interface{}{
				time.Date(2024, 5, 1, 5, 59, 59, 0, time.UTC),
				time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := exportQuery(tt.filter)
			for _, c := range tt.contains {
				assert.Contains(t, query, c)
			}
			if len(tt.contains) == 0 {
				assert.NotContains(t, query, "finalized_at >=")
			}
			require.Len(t, args, len(tt.args))
			for i, want := range tt.args {
				if wantAt, ok := want.(time.Time); ok {
					gotAt, ok := args[i].(time.Time)
					require.True(t, ok)
					assert.True(t, wantAt.Equal(gotAt), "arg %d: want %s, got %s", i, wantAt, gotAt)
					assert.Equal(t, time.UTC, gotAt.Location())
					continue
				}
				assert.Equal(t, want, args[i])
			}
		})
	}
}

func TestExpenseRepository_CreateAndLookup(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	require.NoError(t, r.reports.Create(ctx, newReport("r1", "emp@example.com", time.Now())))

	expense := &entity.Expense{
		ReportID:   "r1",
		ExternalID: "e1",
		Category:   entity.CategoryMeals,
		Amount:     decimal.RequireFromString("42.50"),
		Currency:   "USD",
		IncurredAt: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, r.expenses.Create(ctx, expense))
	assert.NotZero(t, expense.ID)

	got, err := r.expenses.GetByExternalID(ctx, "r1", "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, expense.ID, got.ID)
	assert.True(t, decimal.RequireFromString("42.5").Equal(got.Amount))

	dup := *expense
	dup.ID = 0
	assert.ErrorIs(t, r.expenses.Create(ctx, &dup), entity.ErrConflict)

	missing, err := r.expenses.GetByExternalID(ctx, "r1", "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReceiptRepository_LinkPending(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	require.NoError(t, r.reports.Create(ctx, newReport("r1", "emp@example.com", time.Now())))

	expense := &entity.Expense{ReportID: "r1", ExternalID: "e1", Category: entity.CategoryTravel,
		Amount: decimal.NewFromInt(10), Currency: "USD", IncurredAt: time.Now()}
	require.NoError(t, r.expenses.Create(ctx, expense))

	for _, clientID := range []string{"e1", "ghost"} {
		require.NoError(t, r.receipts.Create(ctx, &entity.Receipt{
			ReportID:        "r1",
			ClientExpenseID: clientID,
			Storage:         entity.StoredObject{Provider: "memory", Key: "receipts/r1/" + clientID + "/a.pdf"},
			FileName:        "a.pdf",
			ContentType:     "application/pdf",
			FileSize:        4,
			Checksum:        "abc",
			UploadedAt:      time.Now(),
		}))
	}

	linked, err := r.receipts.LinkPending(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), linked)

	receipts, err := r.receipts.GetByReportID(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	require.NotNil(t, receipts[0].ExpenseID)
	assert.Equal(t, expense.ID, *receipts[0].ExpenseID)
	assert.Nil(t, receipts[1].ExpenseID)

	again, err := r.receipts.LinkPending(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestApprovalRepository_DecideCompareAndSet(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	require.NoError(t, r.reports.Create(ctx, newReport("r1", "emp@example.com", time.Now())))
	require.NoError(t, r.approvals.CreatePending(ctx, "r1"))

	approvals, err := r.approvals.GetByReportID(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, approvals, 2)
	assert.Equal(t, entity.StageManager, approvals[0].Stage)
	assert.Equal(t, entity.StageFinance, approvals[1].Stage)

	manager := approvals[0]
	manager.Status = entity.ApprovalStatusApproved
	manager.DecidedBy = "boss@example.com"
	require.NoError(t, r.approvals.Decide(ctx, manager, 0))
	assert.Equal(t, 1, manager.Version)

	// second decision against the stale version loses
	stale := &entity.Approval{ReportID: "r1", Stage: entity.StageManager, Status: entity.ApprovalStatusRejected}
	assert.ErrorIs(t, r.approvals.Decide(ctx, stale, 0), entity.ErrConflict)

	require.NoError(t, r.approvals.ResetToPending(ctx, "r1", entity.StageManager))
	approvals, err = r.approvals.GetByReportID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusPending, approvals[0].Status)
	assert.Empty(t, approvals[0].DecidedBy)
	assert.Nil(t, approvals[0].DecidedAt)
	assert.Equal(t, 2, approvals[0].Version)
}

func TestRepositories_JoinTransaction(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.reports.Create(txCtx, newReport("r1", "emp@example.com", time.Now())); err != nil {
			return err
		}
		if err := r.approvals.CreatePending(txCtx, "r1"); err != nil {
			return err
		}
		return entity.ErrValidation
	})
	assert.ErrorIs(t, err, entity.ErrValidation)

	got, err := r.reports.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got, "rolled back report must not be visible")
}
