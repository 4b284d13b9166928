package models

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned when a PIN does not match
	ErrAuthentication = errors.New("authentication failed")

	// ErrNoEligiblePlayers is returned when the active pool has no AVAILABLE players
	ErrNoEligiblePlayers = errors.New("no eligible players")

	// ErrInvalidTransition is returned when an action is not allowed from the current state
	ErrInvalidTransition = errors.New("invalid transition")
)

// TransitionError explains why an action was rejected.
type TransitionError struct {
	Action string
	Status AuctionStatus
	Reason string
}

func (e *TransitionError) Error() string {
	status := e.Status
	if status == "" {
		status = AuctionStatusIdle
	}
	return fmt.Sprintf("cannot %s while %s: %s", e.Action, status, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// RejectTransition builds a TransitionError.
func RejectTransition(action string, status AuctionStatus, reason string) error {
	return &TransitionError{Action: action, Status: status, Reason: reason}
}
