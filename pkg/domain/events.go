package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeStart  EventType = "node_start"
	EventNodeFinish EventType = "node_finish"
	EventRunFinish  EventType = "run_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// NodeEvent reports a node state transition.
type NodeEvent struct {
	EventBase
	PlanID string          `json:"plan_id"`
	NodeID string          `json:"node_id"`
	Kind   NodeKind        `json:"kind"`
	From   ExecutionStatus `json:"from"`
	Status ExecutionStatus `json:"status"`
	Reason string          `json:"reason,omitempty"`
}

// RunEvent reports the end of a run.
type RunEvent struct {
	EventBase
	PlanID string     `json:"plan_id"`
	Result *RunResult `json:"result"`
}

// LifecycleHooks defines callbacks for executor observability.
// Hooks run synchronously on the executing goroutine, in transition order.
type LifecycleHooks struct {
	OnNodeStart  func(context.Context, *NodeEvent)
	OnNodeFinish func(context.Context, *NodeEvent)
	OnRunFinish  func(context.Context, *RunEvent)
}
