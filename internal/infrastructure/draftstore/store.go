// Package draftstore stages receipt files for in-progress reports on the
// local machine until the report is finalized.
package draftstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoBackend is returned when no strategy passed its capability check
var ErrNoBackend = errors.New("no draft storage backend available")

// ErrClosed is returned by every call made after Teardown
var ErrClosed = errors.New("draft store is closed")

// Store is the draft receipt store. Calls are serialized; the backend is
// chosen on first use and kept for the lifetime of the store.
type Store struct {
	mu         sync.Mutex
	candidates []port.DraftBackend
	once       sync.Once
	active     port.DraftBackend
	openErr    error
	closed     bool
	now        func() time.Time
	logger     *zap.Logger
}

// New creates a store trying candidates in order
func New(logger *zap.Logger, candidates ...port.DraftBackend) *Store {
	return &Store{
		candidates: candidates,
		now:        time.Now,
		logger:     logger,
	}
}

// Open builds the standard store: sqlite blobs at dbPath, file tree at root as fallback
func Open(dbPath, root string, logger *zap.Logger) *Store {
	return New(logger, NewSQLiteBackend(dbPath, logger), NewFileTreeBackend(root, logger))
}

// Backend returns the selected strategy, selecting it on first call
func (s *Store) Backend(ctx context.Context) (port.DraftBackend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend(ctx)
}

// backend requires s.mu
func (s *Store) backend(ctx context.Context) (port.DraftBackend, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.once.Do(func() {
		for _, b := range s.candidates {
			if err := b.Available(ctx); err != nil {
				s.logger.Warn("Draft backend unavailable, trying next",
					zap.String("backend", b.Name()),
					zap.Error(err))
				continue
			}
			s.active = b
			s.logger.Info("Draft backend selected", zap.String("backend", b.Name()))
			return
		}
		s.openErr = ErrNoBackend
	})
	return s.active, s.openErr
}

// Save replaces the staged receipts of an expense with files
func (s *Store) Save(ctx context.Context, draftID, expenseID string, files []entity.DraftFile) ([]entity.DraftReceiptMeta, error) {
	if err := checkIDs(draftID, expenseID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}

	savedAt := s.now().UTC()
	blobs := make([]entity.DraftBlob, 0, len(files))
	metas := make([]entity.DraftReceiptMeta, 0, len(files))
	for _, f := range files {
		meta := entity.DraftReceiptMeta{
			ID:          uuid.NewString(),
			DraftID:     draftID,
			ExpenseID:   expenseID,
			FileName:    f.FileName,
			ContentType: f.ContentType,
			Size:        int64(len(f.Content)),
			Checksum:    utils.Checksum(f.Content),
			SavedAt:     savedAt,
		}
		blobs = append(blobs, entity.DraftBlob{Meta: meta, Content: f.Content})
		metas = append(metas, meta)
	}

	if err := b.Replace(ctx, draftID, expenseID, blobs); err != nil {
		return nil, fmt.Errorf("failed to stage receipts: %w", err)
	}

	s.logger.Debug("Staged draft receipts",
		zap.String("draft_id", draftID),
		zap.String("expense_id", expenseID),
		zap.Int("count", len(metas)))
	return metas, nil
}

// ListByDraft returns receipt metadata grouped by expense id
func (s *Store) ListByDraft(ctx context.Context, draftID string) (map[string][]entity.DraftReceiptMeta, error) {
	if err := checkIDs(draftID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.List(ctx, draftID)
}

// GetBlobs returns staged files of an expense; all of them when ids is empty
func (s *Store) GetBlobs(ctx context.Context, draftID, expenseID string, ids ...string) ([]entity.DraftBlob, error) {
	if err := checkIDs(draftID, expenseID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, draftID, expenseID, ids)
}

// Delete removes the given receipts of an expense; all of them when ids is empty
func (s *Store) Delete(ctx context.Context, draftID, expenseID string, ids ...string) error {
	if err := checkIDs(draftID, expenseID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.backend(ctx)
	if err != nil {
		return err
	}
	return b.Remove(ctx, draftID, expenseID, ids)
}

// ClearDraft removes everything staged for a draft
func (s *Store) ClearDraft(ctx context.Context, draftID string) error {
	if err := checkIDs(draftID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.backend(ctx)
	if err != nil {
		return err
	}
	return b.Clear(ctx, draftID)
}

// Teardown closes the selected backend. The store is unusable afterwards
// and a second call is a no-op.
func (s *Store) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	// no selection may happen after close
	s.once.Do(func() {})

	active := s.active
	s.active = nil
	if active == nil {
		return nil
	}
	return active.Close()
}

func checkIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: draft and expense ids are required", entity.ErrValidation)
		}
	}
	return nil
}
