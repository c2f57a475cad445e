package update

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation is returned when an event is not valid in the controller's current state.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrContinuationReused is returned when a continuation is invoked after it was consumed.
	ErrContinuationReused = errors.New("continuation already used")
	// ErrContinuationRetired is returned when a continuation is invoked after the controller
	// moved past the stage it belonged to.
	ErrContinuationRetired = errors.New("continuation retired")
)

// ProtocolViolationError describes an event the controller dropped.
// Reason is set when the event was refused for its payload rather than the state.
type ProtocolViolationError struct {
	Event  string
	State  State
	Reason string
}

func (e *ProtocolViolationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s in state %s: %s", ErrProtocolViolation, e.Event, e.State, e.Reason)
	}
	return fmt.Sprintf("%s: %s not valid in state %s", ErrProtocolViolation, e.Event, e.State)
}

// Unwrap lets errors.Is match ErrProtocolViolation.
func (e *ProtocolViolationError) Unwrap() error {
	return ErrProtocolViolation
}
