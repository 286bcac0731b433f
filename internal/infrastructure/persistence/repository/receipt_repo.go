package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ReceiptRepository implements port.ReceiptRepository
type ReceiptRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sql.DB, logger *zap.Logger) port.ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a receipt row
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.Receipt) error {
	query := `
		INSERT INTO receipts (
			report_id, client_expense_id, expense_id,
			storage_provider, storage_bucket, storage_key, storage_url,
			file_name, content_type, file_size, checksum, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var expenseID interface{}
	if receipt.ExpenseID != nil {
		expenseID = *receipt.ExpenseID
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		receipt.ReportID,
		nullString(receipt.ClientExpenseID),
		expenseID,
		receipt.Storage.Provider,
		receipt.Storage.Bucket,
		receipt.Storage.Key,
		receipt.Storage.URL,
		receipt.FileName,
		receipt.ContentType,
		receipt.FileSize,
		receipt.Checksum,
		receipt.UploadedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create receipt",
			zap.String("report_id", receipt.ReportID),
			zap.String("key", receipt.Storage.Key),
			zap.Error(err))
		return fmt.Errorf("failed to create receipt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	receipt.ID = id
	return nil
}

// GetByReportID retrieves all receipts of a report
func (r *ReceiptRepository) GetByReportID(ctx context.Context, reportID string) ([]*entity.Receipt, error) {
	query := `
		SELECT id, report_id, COALESCE(client_expense_id, ''), expense_id,
			storage_provider, storage_bucket, storage_key, storage_url,
			file_name, content_type, file_size, checksum, uploaded_at
		FROM receipts
		WHERE report_id = ?
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, reportID)
	if err != nil {
		r.logger.Error("Failed to get receipts", zap.String("report_id", reportID), zap.Error(err))
		return nil, fmt.Errorf("failed to get receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*entity.Receipt
	for rows.Next() {
		var (
			receipt   entity.Receipt
			expenseID sql.NullInt64
		)
		if err := rows.Scan(
			&receipt.ID,
			&receipt.ReportID,
			&receipt.ClientExpenseID,
			&expenseID,
			&receipt.Storage.Provider,
			&receipt.Storage.Bucket,
			&receipt.Storage.Key,
			&receipt.Storage.URL,
			&receipt.FileName,
			&receipt.ContentType,
			&receipt.FileSize,
			&receipt.Checksum,
			&receipt.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		if expenseID.Valid {
			id := expenseID.Int64
			receipt.ExpenseID = &id
		}
		receipts = append(receipts, &receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipts: %w", err)
	}

	return receipts, nil
}

// LinkPending binds unreconciled receipts to the expense carrying the same client id.
// Receipts whose client id matches no expense stay unlinked.
func (r *ReceiptRepository) LinkPending(ctx context.Context, reportID string) (int64, error) {
	query := `
		UPDATE receipts
		SET expense_id = (
			SELECT e.id FROM expenses e
			WHERE e.report_id = receipts.report_id
				AND e.external_id = receipts.client_expense_id
		)
		WHERE report_id = ?
			AND expense_id IS NULL
			AND client_expense_id IS NOT NULL
			AND EXISTS (
				SELECT 1 FROM expenses e
				WHERE e.report_id = receipts.report_id
					AND e.external_id = receipts.client_expense_id
			)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, reportID)
	if err != nil {
		r.logger.Error("Failed to link receipts", zap.String("report_id", reportID), zap.Error(err))
		return 0, fmt.Errorf("failed to link receipts: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// Verify interface compliance
var _ port.ReceiptRepository = (*ReceiptRepository)(nil)
