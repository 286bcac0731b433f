package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/workflow"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// Actor is the authenticated caller taken from request headers
type Actor struct {
	Email string
	Role  string
}

// DecisionInput is one approve or reject action on a report stage
type DecisionInput struct {
	ReportID string `validate:"required"`
	Stage    string `validate:"required,oneof=MANAGER FINANCE"`
	Action   string `validate:"required,oneof=approve reject"`
	Actor    Actor
	Note     string `validate:"max=2000"`

	// ExpectedVersion, when set, must equal the approval row version
	ExpectedVersion *int
}

// ApprovalService drives the manager then finance review of submitted reports
type ApprovalService interface {
	Decide(ctx context.Context, in DecisionInput) (*entity.Report, error)
	List(ctx context.Context, stage, status string) ([]*entity.Report, error)
	Get(ctx context.Context, reportID string) (*entity.Report, error)
}

// stageRoles lists who may decide each stage
var stageRoles = map[string]map[string]bool{
	entity.StageManager: {entity.RoleManager: true, entity.RoleFinance: true, entity.RoleSuperAdmin: true},
	entity.StageFinance: {entity.RoleFinance: true, entity.RoleSuperAdmin: true},
}

// queueStatus maps a (stage, approval status) queue onto the report status that defines it
var queueStatus = map[string]map[string]string{
	entity.StageManager: {
		"pending":  entity.ReportStatusSubmitted,
		"approved": entity.ReportStatusManagerApproved,
		"rejected": entity.ReportStatusRejected,
	},
	entity.StageFinance: {
		"pending":  entity.ReportStatusManagerApproved,
		"approved": entity.ReportStatusFinanceApproved,
		"rejected": entity.ReportStatusRejected,
	},
}

type approvalServiceImpl struct {
	repos     Repositories
	txManager port.TransactionManager
	logger    Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(repos Repositories, txManager port.TransactionManager, logger Logger) ApprovalService {
	return &approvalServiceImpl{
		repos:     repos,
		txManager: txManager,
		logger:    logger,
	}
}

// CanDecide reports whether role may act on stage
func CanDecide(role, stage string) bool {
	return stageRoles[stage][strings.ToLower(strings.TrimSpace(role))]
}

// Decide validates, authorizes, and applies a decision in one transaction
func (s *approvalServiceImpl) Decide(ctx context.Context, in DecisionInput) (*entity.Report, error) {
	in.Stage = strings.ToUpper(strings.TrimSpace(in.Stage))
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	in.Note = utils.SanitizeString(strings.TrimSpace(in.Note))

	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if !CanDecide(in.Actor.Role, in.Stage) {
		return nil, fmt.Errorf("%w: role %q cannot decide the %s stage", entity.ErrForbidden, in.Actor.Role, in.Stage)
	}

	trigger, err := workflow.TriggerFor(in.Stage, in.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	var newStatus string
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		report, err := s.repos.Reports.GetByID(txCtx, in.ReportID)
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("%w: report %s", entity.ErrNotFound, in.ReportID)
		}

		approvals, err := s.repos.Approvals.GetByReportID(txCtx, in.ReportID)
		if err != nil {
			return err
		}
		report.Approvals = approvals

		target := report.Approval(in.Stage)
		if target == nil {
			return fmt.Errorf("report %s has no %s approval row", in.ReportID, in.Stage)
		}
		if !target.IsPending() {
			return fmt.Errorf("%w: %s stage already %s", entity.ErrConflict, in.Stage, strings.ToLower(target.Status))
		}
		if in.Stage == entity.StageFinance {
			if manager := report.Approval(entity.StageManager); manager == nil || manager.Status != entity.ApprovalStatusApproved {
				return fmt.Errorf("%w: manager approval is required before finance can decide", entity.ErrConflict)
			}
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != target.Version {
			return fmt.Errorf("%w: approval changed (version %d, expected %d)", entity.ErrConflict, target.Version, *in.ExpectedVersion)
		}

		machine, err := workflow.NewReportMachine(report.Status)
		if err != nil {
			return err
		}
		next, err := machine.Fire(txCtx, trigger)
		if err != nil {
			if errors.Is(err, workflow.ErrInvalidTransition) || errors.Is(err, workflow.ErrGuardFailed) {
				return fmt.Errorf("%w: report is %s: %v", entity.ErrConflict, report.Status, err)
			}
			return err
		}

		target.Status = entity.ApprovalStatusApproved
		if in.Action == entity.ActionReject {
			target.Status = entity.ApprovalStatusRejected
		}
		target.DecidedBy = in.Actor.Email
		target.DecidedAt = nil
		target.Note = in.Note
		if err := s.repos.Approvals.Decide(txCtx, target, target.Version); err != nil {
			return err
		}

		// any manager decision reopens the finance stage
		if in.Stage == entity.StageManager {
			if err := s.repos.Approvals.ResetToPending(txCtx, in.ReportID, entity.StageFinance); err != nil {
				return err
			}
		}

		newStatus = next.String()
		return s.repos.Reports.UpdateStatus(txCtx, in.ReportID, newStatus)
	})
	if err != nil {
		s.logger.Error("Decision failed",
			"report_id", in.ReportID, "stage", in.Stage, "action", in.Action,
			"actor", in.Actor.Email, "error", err)
		return nil, err
	}

	s.logger.Info("Decision recorded",
		"report_id", in.ReportID, "stage", in.Stage, "action", in.Action,
		"actor", in.Actor.Email, "status", newStatus)

	return s.repos.loadReport(ctx, in.ReportID)
}

// List returns the reports in a stage queue, newest first
func (s *approvalServiceImpl) List(ctx context.Context, stage, status string) ([]*entity.Report, error) {
	stage = strings.ToUpper(strings.TrimSpace(stage))
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		status = "pending"
	}

	reportStatus, ok := queueStatus[stage][status]
	if !ok {
		return nil, fmt.Errorf("%w: unknown queue stage=%q status=%q", entity.ErrValidation, stage, status)
	}

	reports, err := s.repos.Reports.ListByStatus(ctx, reportStatus)
	if err != nil {
		s.logger.Error("Failed to list reports", "stage", stage, "status", status, "error", err)
		return nil, err
	}
	for _, report := range reports {
		if err := s.repos.hydrate(ctx, report, false); err != nil {
			return nil, err
		}
	}
	if reports == nil {
		reports = []*entity.Report{}
	}
	return reports, nil
}

// Get returns one report with everything attached
func (s *approvalServiceImpl) Get(ctx context.Context, reportID string) (*entity.Report, error) {
	return s.repos.loadReport(ctx, reportID)
}
