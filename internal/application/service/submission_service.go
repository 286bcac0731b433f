package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/pkg/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ExpenseInput is one expense line of a finalized report
type ExpenseInput struct {
	// ExpenseID is the client draft id; staged receipts are keyed by it
	ExpenseID   string          `json:"expenseId" validate:"required,max=128"`
	Category    string          `json:"category" validate:"required"`
	Description string          `json:"description" validate:"max=1000"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"required,currency"`
	IncurredAt  time.Time       `json:"incurredAt" validate:"required"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// FinalizeInput is the payload that turns a draft into a submitted report
type FinalizeInput struct {
	ReportID      string          `json:"reportId" validate:"required,max=128"`
	DraftID       string          `json:"draftId,omitempty" validate:"max=128"`
	EmployeeEmail string          `json:"employeeEmail" validate:"required,email"`
	ManagerEmail  string          `json:"managerEmail" validate:"required,email"`
	FinalizedAt   time.Time       `json:"finalizedAt" validate:"required"`
	Period        string          `json:"period,omitempty" validate:"max=64"`
	Header        json.RawMessage `json:"header,omitempty"`
	Totals        json.RawMessage `json:"totals,omitempty"`
	Expenses      []ExpenseInput  `json:"expenses" validate:"required,min=1,dive"`
}

// SubmissionConfig tunes the reconciler
type SubmissionConfig struct {
	UploadConcurrency int
	LockTTL           time.Duration
}

// SubmissionService finalizes drafts into durable reports
type SubmissionService interface {
	Finalize(ctx context.Context, in FinalizeInput) (*entity.Report, error)
}

type submissionServiceImpl struct {
	repos     Repositories
	txManager port.TransactionManager
	storage   port.ReceiptStorage
	drafts    DraftStore
	locker    port.Locker
	cfg       SubmissionConfig
	logger    Logger
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	repos Repositories,
	txManager port.TransactionManager,
	storage port.ReceiptStorage,
	drafts DraftStore,
	locker port.Locker,
	cfg SubmissionConfig,
	logger Logger,
) SubmissionService {
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &submissionServiceImpl{
		repos:     repos,
		txManager: txManager,
		storage:   storage,
		drafts:    drafts,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
	}
}

// stagedUpload is a draft receipt pushed to the provider, waiting for its row
type stagedUpload struct {
	expenseID string
	meta      entity.DraftReceiptMeta
	object    *entity.StoredObject
}

// Finalize uploads staged receipts, then writes the report, expenses, approvals,
// and receipts in one transaction and links receipts to expenses. The draft is
// cleared only after commit; any failure before that leaves it untouched.
func (s *submissionServiceImpl) Finalize(ctx context.Context, in FinalizeInput) (*entity.Report, error) {
	normalizeFinalize(&in)
	if err := validateFinalize(in); err != nil {
		return nil, err
	}

	release, err := s.locker.TryLock(ctx, "finalize:"+in.DraftID, s.cfg.LockTTL)
	if errors.Is(err, port.ErrLockHeld) {
		return nil, fmt.Errorf("%w: finalize already in progress for draft %s", entity.ErrConflict, in.DraftID)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire finalize lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release finalize lock", "draft_id", in.DraftID, "error", err)
		}
	}()

	exists, err := s.repos.Reports.Exists(ctx, in.ReportID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: report %s already exists", entity.ErrConflict, in.ReportID)
	}

	uploads, err := s.uploadStaged(ctx, in)
	if err != nil {
		s.logger.Error("Receipt upload failed, submission aborted",
			"report_id", in.ReportID, "draft_id", in.DraftID, "error", err)
		return nil, err
	}

	linked, err := s.persist(ctx, in, uploads)
	if err != nil {
		s.discard(uploads)
		s.logger.Error("Failed to persist report", "report_id", in.ReportID, "error", err)
		return nil, err
	}

	s.clearDraft(ctx, in, uploads)

	s.logger.Info("Report finalized",
		"report_id", in.ReportID,
		"expenses", len(in.Expenses),
		"receipts", len(uploads),
		"linked", linked)

	return s.repos.loadReport(ctx, in.ReportID)
}

// uploadStaged pushes every staged receipt of the submitted expenses to storage.
// The first failure cancels the remaining uploads. Only upload failures are
// classed as ErrStorage; draft read errors keep their own class.
func (s *submissionServiceImpl) uploadStaged(ctx context.Context, in FinalizeInput) ([]stagedUpload, error) {
	staged, err := s.drafts.ListByDraft(ctx, in.DraftID)
	if err != nil {
		return nil, fmt.Errorf("list staged receipts: %w", err)
	}

	var pending []stagedUpload
	for _, exp := range in.Expenses {
		for _, meta := range staged[exp.ExpenseID] {
			pending = append(pending, stagedUpload{expenseID: exp.ExpenseID, meta: meta})
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UploadConcurrency)

	var mu sync.Mutex
	done := make([]stagedUpload, 0, len(pending))
	for i := range pending {
		item := pending[i]
		g.Go(func() error {
			blobs, err := s.drafts.GetBlobs(gctx, in.DraftID, item.expenseID, item.meta.ID)
			if err != nil {
				return fmt.Errorf("read staged receipt %s: %w", item.meta.FileName, err)
			}
			obj, err := s.storage.Upload(gctx, port.UploadInput{
				ReportID:    in.ReportID,
				ExpenseID:   item.expenseID,
				FileName:    item.meta.FileName,
				ContentType: item.meta.ContentType,
				Content:     blobs[0].Content,
			})
			if err != nil {
				if !errors.Is(err, entity.ErrStorage) {
					err = fmt.Errorf("%w: %w", entity.ErrStorage, err)
				}
				return err
			}
			item.object = obj

			mu.Lock()
			done = append(done, item)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discard(done)
		return nil, err
	}

	// keep receipt rows in a stable order regardless of upload completion
	sort.SliceStable(done, func(i, j int) bool {
		if done[i].expenseID != done[j].expenseID {
			return expenseIndex(in, done[i].expenseID) < expenseIndex(in, done[j].expenseID)
		}
		return done[i].meta.SavedAt.Before(done[j].meta.SavedAt)
	})
	return done, nil
}

func (s *submissionServiceImpl) persist(ctx context.Context, in FinalizeInput, uploads []stagedUpload) (int64, error) {
	var linked int64
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		report := &entity.Report{
			ReportID:      in.ReportID,
			EmployeeEmail: in.EmployeeEmail,
			ManagerEmail:  in.ManagerEmail,
			FinalizedAt:   in.FinalizedAt,
			Period:        in.Period,
			Header:        in.Header,
			Totals:        in.Totals,
			Status:        entity.ReportStatusSubmitted,
		}
		if err := s.repos.Reports.Create(txCtx, report); err != nil {
			return err
		}

		for _, exp := range in.Expenses {
			expense := &entity.Expense{
				ReportID:    in.ReportID,
				ExternalID:  exp.ExpenseID,
				Category:    exp.Category,
				Description: exp.Description,
				Amount:      exp.Amount,
				Currency:    exp.Currency,
				IncurredAt:  exp.IncurredAt,
				Metadata:    exp.Metadata,
			}
			if err := s.repos.Expenses.Create(txCtx, expense); err != nil {
				return err
			}
		}

		if err := s.repos.Approvals.CreatePending(txCtx, in.ReportID); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, up := range uploads {
			receipt := &entity.Receipt{
				ReportID:        in.ReportID,
				ClientExpenseID: up.expenseID,
				Storage:         *up.object,
				FileName:        up.meta.FileName,
				ContentType:     up.meta.ContentType,
				FileSize:        up.meta.Size,
				Checksum:        up.meta.Checksum,
				UploadedAt:      now,
			}
			if err := s.repos.Receipts.Create(txCtx, receipt); err != nil {
				return err
			}
		}

		var err error
		linked, err = s.repos.Receipts.LinkPending(txCtx, in.ReportID)
		return err
	})
	return linked, err
}

// clearDraft drops staged receipts of reconciled expenses. The report is
// already durable, so failures are only logged.
func (s *submissionServiceImpl) clearDraft(ctx context.Context, in FinalizeInput, uploads []stagedUpload) {
	cleared := make(map[string]bool)
	for _, up := range uploads {
		if cleared[up.expenseID] {
			continue
		}
		cleared[up.expenseID] = true
		if err := s.drafts.Delete(ctx, in.DraftID, up.expenseID); err != nil {
			s.logger.Warn("Failed to clear staged receipts after finalize",
				"draft_id", in.DraftID, "expense_id", up.expenseID, "error", err)
		}
	}
}

// discard removes uploaded objects that will never get a receipt row
func (s *submissionServiceImpl) discard(uploads []stagedUpload) {
	for _, up := range uploads {
		if up.object == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.storage.Delete(ctx, *up.object); err != nil {
			s.logger.Warn("Failed to discard orphaned receipt object", "key", up.object.Key, "error", err)
		}
		cancel()
	}
}

func normalizeFinalize(in *FinalizeInput) {
	in.ReportID = strings.TrimSpace(in.ReportID)
	in.DraftID = strings.TrimSpace(in.DraftID)
	if in.DraftID == "" {
		in.DraftID = in.ReportID
	}
	in.EmployeeEmail = strings.ToLower(strings.TrimSpace(in.EmployeeEmail))
	in.ManagerEmail = strings.ToLower(strings.TrimSpace(in.ManagerEmail))
	in.Period = strings.TrimSpace(in.Period)
	if !in.FinalizedAt.IsZero() {
		in.FinalizedAt = in.FinalizedAt.UTC()
	}
	for i := range in.Expenses {
		e := &in.Expenses[i]
		e.ExpenseID = strings.TrimSpace(e.ExpenseID)
		e.Category = strings.ToLower(strings.TrimSpace(e.Category))
		e.Description = utils.SanitizeString(strings.TrimSpace(e.Description))
		e.Currency = utils.NormalizeCurrency(e.Currency)
	}
}

func validateFinalize(in FinalizeInput) error {
	if err := utils.ValidateStruct(in); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	seen := make(map[string]bool, len(in.Expenses))
	for i, e := range in.Expenses {
		if seen[e.ExpenseID] {
			return fmt.Errorf("%w: expense id %s appears more than once", entity.ErrValidation, e.ExpenseID)
		}
		seen[e.ExpenseID] = true

		if !entity.IsKnownCategory(e.Category) {
			return fmt.Errorf("%w: expenses[%d] has unknown category %q", entity.ErrValidation, i, e.Category)
		}
		if !e.Amount.IsPositive() {
			return fmt.Errorf("%w: expenses[%d] amount must be positive", entity.ErrValidation, i)
		}
		if len(e.Metadata) > 0 && !json.Valid(e.Metadata) {
			return fmt.Errorf("%w: expenses[%d] metadata is not valid JSON", entity.ErrValidation, i)
		}
	}
	for name, raw := range map[string]json.RawMessage{"header": in.Header, "totals": in.Totals} {
		if len(raw) > 0 && !json.Valid(raw) {
			return fmt.Errorf("%w: %s is not valid JSON", entity.ErrValidation, name)
		}
	}
	return nil
}

func expenseIndex(in FinalizeInput, expenseID string) int {
	for i, e := range in.Expenses {
		if e.ExpenseID == expenseID {
			return i
		}
	}
	return len(in.Expenses)
}
