package domain

import (
	"fmt"
	"slices"
	"time"
)

// StateTransition records one change of an ExecutionState.
type StateTransition struct {
	NodeID string          `json:"node_id"`
	From   ExecutionStatus `json:"from"`
	To     ExecutionStatus `json:"to"`
	Reason string          `json:"reason,omitempty"`
}

var allowedTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusPending: {StatusRunning, StatusSkipped},
	StatusRunning: {StatusSucceeded, StatusFailed},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
// Transitions only move forward.
func CanTransition(from, to ExecutionStatus) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// Transition moves the state to the given status, stamping the lifecycle
// timestamps, and returns the recorded change.
func (s *ExecutionState) Transition(to ExecutionStatus, reason string, at time.Time) (StateTransition, error) {
	from := s.Status
	if !CanTransition(from, to) {
		return StateTransition{}, fmt.Errorf("%w: node %s %s -> %s", ErrIllegalTransition, s.NodeID, from, to)
	}

	s.Status = to
	s.Reason = reason
	switch {
	case to == StatusRunning:
		s.StartedAt = &at
	case to.Terminal():
		s.FinishedAt = &at
	}

	return StateTransition{NodeID: s.NodeID, From: from, To: to, Reason: reason}, nil
}
