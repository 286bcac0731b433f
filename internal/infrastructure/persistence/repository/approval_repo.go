package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// CreatePending inserts both stage rows for a report
func (r *ApprovalRepository) CreatePending(ctx context.Context, reportID string) error {
	query := `INSERT INTO approvals (report_id, stage, status) VALUES (?, ?, ?)`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	for _, stage := range []string{entity.StageManager, entity.StageFinance} {
		if _, err := exec.ExecContext(ctx, query, reportID, stage, entity.ApprovalStatusPending); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: approvals for report %s already exist", entity.ErrConflict, reportID)
			}
			r.logger.Error("Failed to create approval",
				zap.String("report_id", reportID),
				zap.String("stage", stage),
				zap.Error(err))
			return fmt.Errorf("failed to create %s approval: %w", stage, err)
		}
	}

	return nil
}

// GetByReportID returns the MANAGER row followed by the FINANCE row
func (r *ApprovalRepository) GetByReportID(ctx context.Context, reportID string) ([]*entity.Approval, error) {
	query := `
		SELECT id, report_id, stage, status, decided_by, decided_at, note, version
		FROM approvals
		WHERE report_id = ?
		ORDER BY CASE stage WHEN 'MANAGER' THEN 0 ELSE 1 END
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, reportID)
	if err != nil {
		r.logger.Error("Failed to get approvals", zap.String("report_id", reportID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*entity.Approval
	for rows.Next() {
		var (
			approval  entity.Approval
			decidedAt sql.NullTime
		)
		if err := rows.Scan(
			&approval.ID,
			&approval.ReportID,
			&approval.Stage,
			&approval.Status,
			&approval.DecidedBy,
			&decidedAt,
			&approval.Note,
			&approval.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		if decidedAt.Valid {
			t := decidedAt.Time
			approval.DecidedAt = &t
		}
		approvals = append(approvals, &approval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approvals: %w", err)
	}

	return approvals, nil
}

// Decide records a decision only while the row is PENDING at expectedVersion.
// On success approval.Version holds the new version.
func (r *ApprovalRepository) Decide(ctx context.Context, approval *entity.Approval, expectedVersion int) error {
	decidedAt := time.Now().UTC()
	if approval.DecidedAt != nil {
		decidedAt = approval.DecidedAt.UTC()
	}

	query := `
		UPDATE approvals
		SET status = ?, decided_by = ?, decided_at = ?, note = ?, version = version + 1
		WHERE report_id = ? AND stage = ? AND status = 'PENDING' AND version = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		approval.Status,
		approval.DecidedBy,
		decidedAt,
		approval.Note,
		approval.ReportID,
		approval.Stage,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to record decision",
			zap.String("report_id", approval.ReportID),
			zap.String("stage", approval.Stage),
			zap.Error(err))
		return fmt.Errorf("failed to record decision: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s approval for report %s was already decided",
			entity.ErrConflict, approval.Stage, approval.ReportID)
	}

	approval.DecidedAt = &decidedAt
	approval.Version = expectedVersion + 1
	return nil
}

// ResetToPending clears any decision on the stage
func (r *ApprovalRepository) ResetToPending(ctx context.Context, reportID, stage string) error {
	query := `
		UPDATE approvals
		SET status = 'PENDING', decided_by = '', decided_at = NULL, note = '', version = version + 1
		WHERE report_id = ? AND stage = ?
	`

	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, reportID, stage); err != nil {
		r.logger.Error("Failed to reset approval",
			zap.String("report_id", reportID),
			zap.String("stage", stage),
			zap.Error(err))
		return fmt.Errorf("failed to reset approval: %w", err)
	}

	return nil
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
