package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// approveAll submits reportID with one staged receipt and runs it through both stages
func approveAll(t *testing.T, env *testEnv, reportID string) {
	t.Helper()
	ctx := context.Background()
	_, err := env.draftSvc.Attach(ctx, reportID, "e1", []UploadFile{{FileName: "a.pdf", Content: pdfBytes}})
	require.NoError(t, err)
	submit(t, env, reportID)
	_, err = decide(env, reportID, entity.StageManager, entity.ActionApprove, entity.RoleManager)
	require.NoError(t, err)
	_, err = decide(env, reportID, entity.StageFinance, entity.ActionApprove, entity.RoleFinance)
	require.NoError(t, err)
}

func TestExportService_Collect_OnlyFinanceApproved(t *testing.T) {
	env := setupEnv(t)
	approveAll(t, env, "r1")
	submit(t, env, "r2")
	_, err := decide(env, "r2", entity.StageManager, entity.ActionApprove, entity.RoleManager)
	require.NoError(t, err)
	submit(t, env, "r3")

	writer := &captureWriter{}
	svc := NewExportService(env.repos, env.store, writer, time.Hour, env.logger)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), ExportFilter{}, &buf))

	require.Len(t, writer.data.Reports, 1)
	report := writer.data.Reports[0]
	assert.Equal(t, "r1", report.ReportID)
	require.Len(t, report.Receipts, 1)

	link := writer.data.Links[report.Receipts[0].ID]
	assert.True(t, link.Fresh)
	assert.Contains(t, link.URL, "expires=")
}

func TestExportService_Collect_Filters(t *testing.T) {
	env := setupEnv(t)
	approveAll(t, env, "r1")
	svc := NewExportService(env.repos, env.store, &captureWriter{}, time.Hour, env.logger)
	ctx := context.Background()
	finalized := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter ExportFilter
		want   int
	}{
		{"open window", ExportFilter{}, 1},
		{"window covers", ExportFilter{Start: finalized.Add(-time.Hour), End: finalized.Add(time.Hour)}, 1},
		{"inclusive bounds", ExportFilter{Start: finalized, End: finalized}, 1},
		{"window before", ExportFilter{End: finalized.Add(-time.Minute)}, 0},
		{"employee match ignores case", ExportFilter{Employees: []string{" EMP@example.com "}}, 1},
		{"other employee", ExportFilter{Employees: []string{"someone@example.com"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := svc.Collect(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, data.Reports, tt.want)
		})
	}

	_, err := svc.Collect(ctx, ExportFilter{Start: finalized, End: finalized.Add(-time.Second)})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestExportService_Export_FallsBackToStoredURL(t *testing.T) {
	env := setupEnv(t)
	approveAll(t, env, "r1")
	env.store.failLinks = true

	svc := NewExportService(env.repos, env.store, export.NewArchiveWriter(zap.NewNop()), time.Hour, env.logger)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), ExportFilter{}, &buf))
	assert.NotEmpty(t, env.logger.warns)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var rows [][]string
	for _, f := range zr.File {
		if f.Name != "receipts.csv" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		rows, err = csv.NewReader(bytes.NewReader(raw)).ReadAll()
		require.NoError(t, err)
	}
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[1][11], "memory://"))
	assert.NotContains(t, rows[1][11], "expires=")
	assert.Equal(t, "false", rows[1][12])
}
