package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState is returned when a status is not a known report status
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guarded transition refused the trigger
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrUnknownDecision is returned for a stage/action pair with no trigger
	ErrUnknownDecision = errors.New("unknown decision")
)
