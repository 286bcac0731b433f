package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateSubmitted, false},
		{StateManagerApproved, false},
		{StateFinanceApproved, true},
		{StateRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"submitted", StateSubmitted, true},
		{"finance approved", StateFinanceApproved, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State("INVALID"))
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateManagerApproved).
		PermitIf(TriggerApproveFinance, StateFinanceApproved, func(ctx context.Context) error {
			return errors.New("manager sign-off missing")
		})

	machine := builder.Build(StateManagerApproved)

	_, err := machine.Fire(context.Background(), TriggerApproveFinance)
	if err == nil {
		t.Fatal("Fire() should fail when guard fails")
	}
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != StateManagerApproved {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateManagerApproved, machine.State())
	}
}

func TestStateConfiguration_PermitIf_FallsThroughToNextTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateSubmitted).
		PermitIf(TriggerReject, StateManagerApproved, func(ctx context.Context) error {
			return errors.New("never")
		}).
		Permit(TriggerReject, StateRejected)

	machine := builder.Build(StateSubmitted)
	state, err := machine.Fire(context.Background(), TriggerReject)
	if err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if state != StateRejected {
		t.Errorf("State after Fire() = %v, want %v", state, StateRejected)
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateSubmitted).
		Permit(TriggerApproveManager, StateManagerApproved)

	machine1 := builder.Build(StateSubmitted)
	machine2 := builder.Build(StateSubmitted)

	if _, err := machine1.Fire(context.Background(), TriggerApproveManager); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine2.State() != StateSubmitted {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), StateSubmitted)
	}
}

func TestReportMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		trigger Trigger
		want    State
		wantErr error
	}{
		{"manager approves submitted", entity.ReportStatusSubmitted, TriggerApproveManager, StateManagerApproved, nil},
		{"manager rejects submitted", entity.ReportStatusSubmitted, TriggerReject, StateRejected, nil},
		{"finance approves after manager", entity.ReportStatusManagerApproved, TriggerApproveFinance, StateFinanceApproved, nil},
		{"finance rejects after manager", entity.ReportStatusManagerApproved, TriggerReject, StateRejected, nil},
		{"finance cannot skip manager", entity.ReportStatusSubmitted, TriggerApproveFinance, StateSubmitted, ErrInvalidTransition},
		{"manager cannot approve twice", entity.ReportStatusManagerApproved, TriggerApproveManager, StateManagerApproved, ErrInvalidTransition},
		{"rejected is terminal", entity.ReportStatusRejected, TriggerApproveFinance, StateRejected, ErrInvalidTransition},
		{"finance approved is terminal", entity.ReportStatusFinanceApproved, TriggerReject, StateFinanceApproved, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine, err := NewReportMachine(tt.from)
			if err != nil {
				t.Fatalf("NewReportMachine() error = %v", err)
			}

			got, err := machine.Fire(context.Background(), tt.trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Fire() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("Fire() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Fire() state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReportMachine_TerminalStatesHaveNoTriggers(t *testing.T) {
	for _, status := range []string{entity.ReportStatusFinanceApproved, entity.ReportStatusRejected} {
		machine, err := NewReportMachine(status)
		if err != nil {
			t.Fatalf("NewReportMachine(%s) error = %v", status, err)
		}
		if triggers := machine.PermittedTriggers(); len(triggers) != 0 {
			t.Errorf("%s should have 0 permitted triggers, got %v", status, triggers)
		}
	}
}

func TestNewReportMachine_InvalidStatus(t *testing.T) {
	if _, err := NewReportMachine("DRAFT"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("NewReportMachine() error = %v, want %v", err, ErrInvalidState)
	}
}

func TestTriggerFor(t *testing.T) {
	tests := []struct {
		stage   string
		action  string
		want    Trigger
		wantErr bool
	}{
		{entity.StageManager, entity.ActionApprove, TriggerApproveManager, false},
		{entity.StageFinance, entity.ActionApprove, TriggerApproveFinance, false},
		{entity.StageManager, entity.ActionReject, TriggerReject, false},
		{entity.StageFinance, entity.ActionReject, TriggerReject, false},
		{"CEO", entity.ActionApprove, "", true},
		{entity.StageManager, "escalate", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.stage+"/"+tt.action, func(t *testing.T) {
			got, err := TriggerFor(tt.stage, tt.action)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TriggerFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TriggerFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewReportMachine_ConcurrentFirstUse(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			machine, err := NewReportMachine(entity.ReportStatusSubmitted)
			if err != nil {
				errs <- err
				return
			}
			if !machine.CanFire(TriggerApproveManager) {
				errs <- fmt.Errorf("submitted report cannot be approved by manager")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
