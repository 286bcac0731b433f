package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const reportColumns = `report_id, employee_email, manager_email, finalized_at, period,
	header_json, totals_json, status, created_at, updated_at`

// ReportRepository implements port.ReportRepository
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB, logger *zap.Logger) port.ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a report row. Timestamps are stored in UTC.
func (r *ReportRepository) Create(ctx context.Context, report *entity.Report) error {
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = report.CreatedAt
	report.FinalizedAt = report.FinalizedAt.UTC()

	query := `INSERT INTO reports (` + reportColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		report.ReportID,
		report.EmployeeEmail,
		report.ManagerEmail,
		report.FinalizedAt,
		report.Period,
		jsonOrEmpty(report.Header),
		jsonOrEmpty(report.Totals),
		report.Status,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: report %s already exists", entity.ErrConflict, report.ReportID)
		}
		r.logger.Error("Failed to create report", zap.String("report_id", report.ReportID), zap.Error(err))
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// GetByID retrieves a report without its children
func (r *ReportRepository) GetByID(ctx context.Context, reportID string) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE report_id = ?`

	report, err := scanReport(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, reportID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get report", zap.String("report_id", reportID), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

// Exists checks whether a report id is taken
func (r *ReportRepository) Exists(ctx context.Context, reportID string) (bool, error) {
	var one int
	err := sqlite.ExecutorFrom(ctx, r.db).
		QueryRowContext(ctx, `SELECT 1 FROM reports WHERE report_id = ?`, reportID).
		Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check report: %w", err)
	}
	return true, nil
}

// UpdateStatus sets the report status and touches updated_at
func (r *ReportRepository) UpdateStatus(ctx context.Context, reportID, status string) error {
	query := `UPDATE reports SET status = ?, updated_at = ? WHERE report_id = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, status, time.Now().UTC(), reportID)
	if err != nil {
		r.logger.Error("Failed to update report status",
			zap.String("report_id", reportID),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update report status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: report %s", entity.ErrNotFound, reportID)
	}

	return nil
}

// ListByStatus returns reports in a status, newest finalized first
func (r *ReportRepository) ListByStatus(ctx context.Context, status string) ([]*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE status = ? ORDER BY finalized_at DESC, report_id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, status)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

// ListForExport returns reports matching the filter ordered by finalized_at.
// SQL narrows the window with a one second margin; the exact bounds are then
// checked in Go since stored values may carry differing sub-second precision.
func (r *ReportRepository) ListForExport(ctx context.Context, filter port.ReportFilter) ([]*entity.Report, error) {
	query, args := exportQuery(filter)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list reports for export", zap.Error(err))
		return nil, fmt.Errorf("failed to list reports for export: %w", err)
	}
	defer rows.Close()

	reports, err := collectReports(rows)
	if err != nil {
		return nil, err
	}

	filtered := reports[:0]
	for _, report := range reports {
		if !filter.Start.IsZero() && report.FinalizedAt.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && report.FinalizedAt.After(filter.End) {
			continue
		}
		filtered = append(filtered, report)
	}
	return filtered, nil
}

// exportQuery builds the ListForExport statement. Window bounds are whole
// seconds so their text form has no fraction and compares correctly against
// stored UTC timestamps.
func exportQuery(filter port.ReportFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if len(filter.Employees) > 0 {
		placeholders := make([]string, len(filter.Employees))
		for i, e := range filter.Employees {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(e))
		}
		clauses = append(clauses, "LOWER(employee_email) IN ("+strings.Join(placeholders, ", ")+")")
	}
	if !filter.Start.IsZero() {
		clauses = append(clauses, "finalized_at >= ?")
		args = append(args, filter.Start.UTC().Truncate(time.Second).Add(-time.Second))
	}
	if !filter.End.IsZero() {
		clauses = append(clauses, "finalized_at <= ?")
		args = append(args, filter.End.UTC().Truncate(time.Second).Add(time.Second))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY finalized_at, report_id"
	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*entity.Report, error) {
	var (
		report         entity.Report
		header, totals string
	)
	err := row.Scan(
		&report.ReportID,
		&report.EmployeeEmail,
		&report.ManagerEmail,
		&report.FinalizedAt,
		&report.Period,
		&header,
		&totals,
		&report.Status,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	report.Header = json.RawMessage(header)
	report.Totals = json.RawMessage(totals)
	return &report, nil
}

func collectReports(rows *sql.Rows) ([]*entity.Report, error) {
	var reports []*entity.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

// Verify interface compliance
var _ port.ReportRepository = (*ReportRepository)(nil)
