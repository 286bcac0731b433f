package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ExportFilter selects finance-approved reports by finalized_at window and employee
type ExportFilter struct {
	Start     time.Time
	End       time.Time
	Employees []string
}

// ExportService writes finance-approved reports as a downloadable archive
type ExportService interface {
	Export(ctx context.Context, filter ExportFilter, w io.Writer) error
	Collect(ctx context.Context, filter ExportFilter) (port.ExportData, error)
}

type exportServiceImpl struct {
	repos   Repositories
	storage port.ReceiptStorage
	writer  port.ExportWriter
	urlTTL  time.Duration
	logger  Logger
	now     func() time.Time
}

// NewExportService creates a new ExportService
func NewExportService(
	repos Repositories,
	storage port.ReceiptStorage,
	writer port.ExportWriter,
	urlTTL time.Duration,
	logger Logger,
) ExportService {
	if urlTTL <= 0 {
		urlTTL = 7 * 24 * time.Hour
	}
	return &exportServiceImpl{
		repos:   repos,
		storage: storage,
		writer:  writer,
		urlTTL:  urlTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// Export collects eligible reports and streams the archive into w
func (s *exportServiceImpl) Export(ctx context.Context, filter ExportFilter, w io.Writer) error {
	data, err := s.Collect(ctx, filter)
	if err != nil {
		return err
	}
	if err := s.writer.Write(w, data); err != nil {
		return fmt.Errorf("write export archive: %w", err)
	}

	s.logger.Info("Export generated",
		"reports", len(data.Reports),
		"receipts", len(data.Links),
		"start", data.Start.Format(time.RFC3339),
		"end", data.End.Format(time.RFC3339))
	return nil
}

// Collect loads FINANCE_APPROVED reports in the window with fresh receipt links.
// A receipt whose link cannot be issued keeps its stored URL.
func (s *exportServiceImpl) Collect(ctx context.Context, filter ExportFilter) (port.ExportData, error) {
	filter = normalizeExportFilter(filter)
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.Start.After(filter.End) {
		return port.ExportData{}, fmt.Errorf("%w: start must not be after end", entity.ErrValidation)
	}

	reports, err := s.repos.Reports.ListForExport(ctx, port.ReportFilter{
		Status:    entity.ReportStatusFinanceApproved,
		Start:     filter.Start,
		End:       filter.End,
		Employees: filter.Employees,
	})
	if err != nil {
		return port.ExportData{}, err
	}

	links := make(map[int64]port.ReceiptLink)
	for _, report := range reports {
		if err := s.repos.hydrate(ctx, report, true); err != nil {
			return port.ExportData{}, err
		}
		for _, receipt := range report.Receipts {
			links[receipt.ID] = s.link(ctx, receipt)
		}
	}
	if reports == nil {
		reports = []*entity.Report{}
	}

	return port.ExportData{
		GeneratedAt: s.now().UTC(),
		Start:       filter.Start,
		End:         filter.End,
		Employees:   filter.Employees,
		Reports:     reports,
		Links:       links,
	}, nil
}

func (s *exportServiceImpl) link(ctx context.Context, receipt *entity.Receipt) port.ReceiptLink {
	url, err := s.storage.DownloadURL(ctx, receipt.Storage, s.urlTTL)
	if err != nil {
		s.logger.Warn("Falling back to stored receipt URL",
			"report_id", receipt.ReportID, "receipt_id", receipt.ID, "error", err)
		return port.ReceiptLink{URL: receipt.Storage.URL}
	}
	return port.ReceiptLink{URL: url, Fresh: true}
}

func normalizeExportFilter(filter ExportFilter) ExportFilter {
	employees := make([]string, 0, len(filter.Employees))
	for _, e := range filter.Employees {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			employees = append(employees, e)
		}
	}
	filter.Employees = employees
	if !filter.Start.IsZero() {
		filter.Start = filter.Start.UTC()
	}
	if !filter.End.IsZero() {
		filter.End = filter.End.UTC()
	}
	return filter
}
