package workflow

import (
	"fmt"
	"sync"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// reportBuilder holds the report lifecycle. It is configured on first use
// and only read afterwards, so Build is safe from concurrent requests.
var (
	reportBuilder     StateMachineBuilder
	reportBuilderOnce sync.Once
)

func newReportBuilder() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StateSubmitted).
		Permit(TriggerApproveManager, StateManagerApproved).
		Permit(TriggerReject, StateRejected)

	b.Configure(StateManagerApproved).
		Permit(TriggerApproveFinance, StateFinanceApproved).
		Permit(TriggerReject, StateRejected)

	return b
}

// NewReportMachine returns a machine positioned at the given report status
func NewReportMachine(status string) (StateMachine, error) {
	state := State(status)
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, status)
	}
	reportBuilderOnce.Do(func() { reportBuilder = newReportBuilder() })
	return reportBuilder.Build(state), nil
}

// TriggerFor maps a stage decision onto the trigger it fires
func TriggerFor(stage, action string) (Trigger, error) {
	switch {
	case action == entity.ActionReject && entity.IsValidStage(stage):
		return TriggerReject, nil
	case action == entity.ActionApprove && stage == entity.StageManager:
		return TriggerApproveManager, nil
	case action == entity.ActionApprove && stage == entity.StageFinance:
		return TriggerApproveFinance, nil
	}
	return "", fmt.Errorf("%w: stage=%q action=%q", ErrUnknownDecision, stage, action)
}
