package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// UploadFile is one file of a direct receipt upload
type UploadFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ReceiptUploadInput attaches files to an already submitted report
type ReceiptUploadInput struct {
	ReportID  string
	ExpenseID string
	Files     []UploadFile
}

// ReceiptService uploads receipts for submitted reports and issues download links
type ReceiptService interface {
	Upload(ctx context.Context, in ReceiptUploadInput) ([]*entity.Receipt, error)
	List(ctx context.Context, reportID string) ([]*entity.Receipt, error)
	DownloadURL(ctx context.Context, reportID string, receiptID int64) (string, error)
}

type receiptServiceImpl struct {
	repos     Repositories
	txManager port.TransactionManager
	storage   port.ReceiptStorage
	policy    port.UploadPolicy
	urlTTL    time.Duration
	logger    Logger
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(
	repos Repositories,
	txManager port.TransactionManager,
	storage port.ReceiptStorage,
	policy port.UploadPolicy,
	urlTTL time.Duration,
	logger Logger,
) ReceiptService {
	if urlTTL <= 0 {
		urlTTL = 7 * 24 * time.Hour
	}
	return &receiptServiceImpl{
		repos:     repos,
		txManager: txManager,
		storage:   storage,
		policy:    policy,
		urlTTL:    urlTTL,
		logger:    logger,
	}
}

// Upload validates every file before anything is written, pushes the files
// to storage, then records them and links them to the expense when it exists.
func (s *receiptServiceImpl) Upload(ctx context.Context, in ReceiptUploadInput) ([]*entity.Receipt, error) {
	in.ReportID = strings.TrimSpace(in.ReportID)
	in.ExpenseID = strings.TrimSpace(in.ExpenseID)
	if in.ReportID == "" {
		return nil, fmt.Errorf("%w: report id is required", entity.ErrValidation)
	}
	if in.ExpenseID == "" {
		return nil, fmt.Errorf("%w: expense id is required", entity.ErrValidation)
	}
	if err := s.policy.CheckCount(len(in.Files)); err != nil {
		return nil, err
	}

	types := make([]string, len(in.Files))
	for i, f := range in.Files {
		contentType, err := s.policy.Check(f.FileName, f.ContentType, f.Content)
		if err != nil {
			return nil, err
		}
		types[i] = contentType
	}

	exists, err := s.repos.Reports.Exists(ctx, in.ReportID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: report %s", entity.ErrNotFound, in.ReportID)
	}

	receipts := make([]*entity.Receipt, 0, len(in.Files))
	var uploaded []entity.StoredObject
	for i, f := range in.Files {
		obj, err := s.storage.Upload(ctx, port.UploadInput{
			ReportID:    in.ReportID,
			ExpenseID:   in.ExpenseID,
			FileName:    f.FileName,
			ContentType: types[i],
			Content:     f.Content,
		})
		if err != nil {
			s.discard(uploaded)
			s.logger.Error("Receipt upload failed", "report_id", in.ReportID, "file", f.FileName, "error", err)
			return nil, err
		}
		uploaded = append(uploaded, *obj)
		receipts = append(receipts, &entity.Receipt{
			ReportID:        in.ReportID,
			ClientExpenseID: in.ExpenseID,
			Storage:         *obj,
			FileName:        f.FileName,
			ContentType:     types[i],
			FileSize:        int64(len(f.Content)),
			Checksum:        utils.Checksum(f.Content),
			UploadedAt:      time.Now().UTC(),
		})
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, r := range receipts {
			if err := s.repos.Receipts.Create(txCtx, r); err != nil {
				return err
			}
		}
		_, err := s.repos.Receipts.LinkPending(txCtx, in.ReportID)
		return err
	})
	if err != nil {
		s.discard(uploaded)
		return nil, err
	}

	s.logger.Info("Receipts uploaded", "report_id", in.ReportID, "expense_id", in.ExpenseID, "count", len(receipts))

	return s.reload(ctx, in.ReportID, receipts)
}

// List returns every receipt stored for the report
func (s *receiptServiceImpl) List(ctx context.Context, reportID string) ([]*entity.Receipt, error) {
	exists, err := s.repos.Reports.Exists(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: report %s", entity.ErrNotFound, reportID)
	}
	receipts, err := s.repos.Receipts.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if receipts == nil {
		receipts = []*entity.Receipt{}
	}
	return receipts, nil
}

// DownloadURL issues a fresh link for one receipt of the report
func (s *receiptServiceImpl) DownloadURL(ctx context.Context, reportID string, receiptID int64) (string, error) {
	receipts, err := s.List(ctx, reportID)
	if err != nil {
		return "", err
	}
	for _, r := range receipts {
		if r.ID == receiptID {
			return s.storage.DownloadURL(ctx, r.Storage, s.urlTTL)
		}
	}
	return "", fmt.Errorf("%w: receipt %d on report %s", entity.ErrNotFound, receiptID, reportID)
}

// reload picks up expense links written by LinkPending
func (s *receiptServiceImpl) reload(ctx context.Context, reportID string, created []*entity.Receipt) ([]*entity.Receipt, error) {
	all, err := s.repos.Receipts.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*entity.Receipt, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	out := make([]*entity.Receipt, 0, len(created))
	for _, r := range created {
		if fresh, ok := byID[r.ID]; ok {
			out = append(out, fresh)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *receiptServiceImpl) discard(objects []entity.StoredObject) {
	for _, obj := range objects {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.storage.Delete(ctx, obj); err != nil {
			s.logger.Warn("Failed to discard orphaned receipt object", "key", obj.Key, "error", err)
		}
		cancel()
	}
}
