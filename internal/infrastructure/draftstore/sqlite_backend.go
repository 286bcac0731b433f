package draftstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const draftSchema = `
CREATE TABLE IF NOT EXISTS draft_receipts (
    draft_id     TEXT NOT NULL,
    expense_id   TEXT NOT NULL,
    receipt_id   TEXT NOT NULL,
    file_name    TEXT NOT NULL,
    content_type TEXT NOT NULL,
    size         INTEGER NOT NULL,
    checksum     TEXT NOT NULL,
    saved_at     DATETIME NOT NULL,
    blob         BLOB NOT NULL,
    PRIMARY KEY (draft_id, expense_id, receipt_id)
);
`

// SQLiteBackend keeps staged receipts as blobs in a dedicated sqlite file
type SQLiteBackend struct {
	path   string
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteBackend prepares a backend at path; nothing is opened until Available
func NewSQLiteBackend(path string, logger *zap.Logger) *SQLiteBackend {
	return &SQLiteBackend{path: path, logger: logger}
}

// Name implements port.DraftBackend
func (b *SQLiteBackend) Name() string { return "sqlite" }

// Available opens the database and creates the table
func (b *SQLiteBackend) Available(ctx context.Context) error {
	if b.db != nil {
		return b.db.PingContext(ctx)
	}
	if dir := filepath.Dir(b.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create draft directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", b.path))
	if err != nil {
		return fmt.Errorf("failed to open draft database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, draftSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create draft table: %w", err)
	}

	b.db = db
	return nil
}

// Replace implements port.DraftBackend in one transaction
func (b *SQLiteBackend) Replace(ctx context.Context, draftID, expenseID string, blobs []entity.DraftBlob) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM draft_receipts WHERE draft_id = ? AND expense_id = ?`, draftID, expenseID); err != nil {
			return fmt.Errorf("failed to drop previous receipts: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO draft_receipts (
				draft_id, expense_id, receipt_id, file_name, content_type,
				size, checksum, saved_at, blob
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, blob := range blobs {
			m := blob.Meta
			if _, err := stmt.ExecContext(ctx,
				draftID, expenseID, m.ID, m.FileName, m.ContentType,
				m.Size, m.Checksum, m.SavedAt.UTC(), blob.Content,
			); err != nil {
				return fmt.Errorf("failed to stage receipt %s: %w", m.FileName, err)
			}
		}
		return nil
	})
}

// List implements port.DraftBackend
func (b *SQLiteBackend) List(ctx context.Context, draftID string) (map[string][]entity.DraftReceiptMeta, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT draft_id, expense_id, receipt_id, file_name, content_type, size, checksum, saved_at
		FROM draft_receipts
		WHERE draft_id = ?
		ORDER BY expense_id, saved_at, rowid
	`, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list draft receipts: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]entity.DraftReceiptMeta)
	for rows.Next() {
		var m entity.DraftReceiptMeta
		if err := rows.Scan(&m.DraftID, &m.ExpenseID, &m.ID, &m.FileName, &m.ContentType,
			&m.Size, &m.Checksum, &m.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft receipt: %w", err)
		}
		out[m.ExpenseID] = append(out[m.ExpenseID], m)
	}
	return out, rows.Err()
}

// Get implements port.DraftBackend
func (b *SQLiteBackend) Get(ctx context.Context, draftID, expenseID string, ids []string) ([]entity.DraftBlob, error) {
	query := `
		SELECT draft_id, expense_id, receipt_id, file_name, content_type, size, checksum, saved_at, blob
		FROM draft_receipts
		WHERE draft_id = ? AND expense_id = ?`
	args := []interface{}{draftID, expenseID}
	if len(ids) > 0 {
		query += ` AND receipt_id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY saved_at, rowid`

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read draft receipts: %w", err)
	}
	defer rows.Close()

	var blobs []entity.DraftBlob
	for rows.Next() {
		var blob entity.DraftBlob
		m := &blob.Meta
		if err := rows.Scan(&m.DraftID, &m.ExpenseID, &m.ID, &m.FileName, &m.ContentType,
			&m.Size, &m.Checksum, &m.SavedAt, &blob.Content); err != nil {
			return nil, fmt.Errorf("failed to scan draft receipt: %w", err)
		}
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orderByIDs(blobs, ids)
}

// Remove implements port.DraftBackend
func (b *SQLiteBackend) Remove(ctx context.Context, draftID, expenseID string, ids []string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		query := `DELETE FROM draft_receipts WHERE draft_id = ? AND expense_id = ?`
		args := []interface{}{draftID, expenseID}
		if len(ids) > 0 {
			query += ` AND receipt_id IN (` + placeholders(len(ids)) + `)`
			for _, id := range ids {
				args = append(args, id)
			}
		}
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

// Clear implements port.DraftBackend
func (b *SQLiteBackend) Clear(ctx context.Context, draftID string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM draft_receipts WHERE draft_id = ?`, draftID)
		return err
	})
}

// Close implements port.DraftBackend
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *SQLiteBackend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin draft transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			b.logger.Error("Failed to rollback draft transaction", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var _ port.DraftBackend = (*SQLiteBackend)(nil)
