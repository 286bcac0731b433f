package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const expenseColumns = `id, report_id, COALESCE(external_id, ''), category, description,
	amount, currency, incurred_at, metadata_json, created_at`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an expense and assigns its server id
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO expenses (
			report_id, external_id, category, description,
			amount, currency, incurred_at, metadata_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		expense.ReportID,
		nullString(expense.ExternalID),
		expense.Category,
		expense.Description,
		expense.Amount.String(),
		expense.Currency,
		expense.IncurredAt.UTC(),
		jsonOrEmpty(expense.Metadata),
		expense.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: expense %s appears twice in report %s",
				entity.ErrConflict, expense.ExternalID, expense.ReportID)
		}
		r.logger.Error("Failed to create expense",
			zap.String("report_id", expense.ReportID),
			zap.String("external_id", expense.ExternalID),
			zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	expense.ID = id
	return nil
}

// GetByReportID retrieves the expenses of a report in insertion order
func (r *ExpenseRepository) GetByReportID(ctx context.Context, reportID string) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE report_id = ? ORDER BY id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, reportID)
	if err != nil {
		r.logger.Error("Failed to get expenses", zap.String("report_id", reportID), zap.Error(err))
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}

	return expenses, nil
}

// GetByExternalID finds an expense by its client id
func (r *ExpenseRepository) GetByExternalID(ctx context.Context, reportID, externalID string) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE report_id = ? AND external_id = ?`

	expense, err := scanExpense(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, reportID, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense by external id",
			zap.String("report_id", reportID),
			zap.String("external_id", externalID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var (
		expense  entity.Expense
		metadata string
	)
	err := row.Scan(
		&expense.ID,
		&expense.ReportID,
		&expense.ExternalID,
		&expense.Category,
		&expense.Description,
		&expense.Amount,
		&expense.Currency,
		&expense.IncurredAt,
		&metadata,
		&expense.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	expense.Metadata = json.RawMessage(metadata)
	return &expense, nil
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
