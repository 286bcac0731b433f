package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// DraftService stages receipts for expenses of a report that is still being built
type DraftService interface {
	Attach(ctx context.Context, draftID, expenseID string, files []UploadFile) ([]entity.DraftReceiptMeta, error)
	List(ctx context.Context, draftID string) (map[string][]entity.DraftReceiptMeta, error)
	Get(ctx context.Context, draftID, expenseID, receiptID string) (*entity.DraftBlob, error)
	Remove(ctx context.Context, draftID, expenseID string, receiptIDs ...string) error
	Clear(ctx context.Context, draftID string) error
}

type draftServiceImpl struct {
	store  DraftStore
	policy port.UploadPolicy
	logger Logger
}

// NewDraftService creates a new DraftService
func NewDraftService(store DraftStore, policy port.UploadPolicy, logger Logger) DraftService {
	return &draftServiceImpl{store: store, policy: policy, logger: logger}
}

// Attach replaces the staged receipts of one expense. Files are checked
// against the upload policy so finalize never uploads something the
// receipt endpoint would refuse.
func (s *draftServiceImpl) Attach(ctx context.Context, draftID, expenseID string, files []UploadFile) ([]entity.DraftReceiptMeta, error) {
	draftID, expenseID, err := draftKeys(draftID, expenseID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CheckCount(len(files)); err != nil {
		return nil, err
	}

	staged := make([]entity.DraftFile, 0, len(files))
	for _, f := range files {
		contentType, err := s.policy.Check(f.FileName, f.ContentType, f.Content)
		if err != nil {
			return nil, err
		}
		staged = append(staged, entity.DraftFile{
			FileName:    f.FileName,
			ContentType: contentType,
			Content:     f.Content,
		})
	}

	metas, err := s.store.Save(ctx, draftID, expenseID, staged)
	if err != nil {
		s.logger.Error("Failed to stage receipts", "draft_id", draftID, "expense_id", expenseID, "error", err)
		return nil, err
	}
	s.logger.Info("Receipts staged", "draft_id", draftID, "expense_id", expenseID, "count", len(metas))
	return metas, nil
}

func (s *draftServiceImpl) List(ctx context.Context, draftID string) (map[string][]entity.DraftReceiptMeta, error) {
	draftID = strings.TrimSpace(draftID)
	if draftID == "" {
		return nil, fmt.Errorf("%w: draft id is required", entity.ErrValidation)
	}
	staged, err := s.store.ListByDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if staged == nil {
		staged = map[string][]entity.DraftReceiptMeta{}
	}
	return staged, nil
}

func (s *draftServiceImpl) Get(ctx context.Context, draftID, expenseID, receiptID string) (*entity.DraftBlob, error) {
	draftID, expenseID, err := draftKeys(draftID, expenseID)
	if err != nil {
		return nil, err
	}
	blobs, err := s.store.GetBlobs(ctx, draftID, expenseID, receiptID)
	if err != nil {
		return nil, err
	}
	if len(blobs) == 0 {
		return nil, fmt.Errorf("%w: staged receipt %s", entity.ErrNotFound, receiptID)
	}
	return &blobs[0], nil
}

func (s *draftServiceImpl) Remove(ctx context.Context, draftID, expenseID string, receiptIDs ...string) error {
	draftID, expenseID, err := draftKeys(draftID, expenseID)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, draftID, expenseID, receiptIDs...)
}

func (s *draftServiceImpl) Clear(ctx context.Context, draftID string) error {
	draftID = strings.TrimSpace(draftID)
	if draftID == "" {
		return fmt.Errorf("%w: draft id is required", entity.ErrValidation)
	}
	if err := s.store.ClearDraft(ctx, draftID); err != nil {
		return err
	}
	s.logger.Info("Draft cleared", "draft_id", draftID)
	return nil
}

func draftKeys(draftID, expenseID string) (string, string, error) {
	draftID = strings.TrimSpace(draftID)
	expenseID = strings.TrimSpace(expenseID)
	if draftID == "" || expenseID == "" {
		return "", "", fmt.Errorf("%w: draft id and expense id are required", entity.ErrValidation)
	}
	return draftID, expenseID, nil
}
