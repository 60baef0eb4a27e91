package domain

import "time"

// ActorState is the lifecycle position of a project actor.
type ActorState string

const (
	ActorInactive ActorState = "inactive"
	ActorStarting ActorState = "starting"
	ActorActive   ActorState = "active"
	ActorDraining ActorState = "draining"
)

// Health is the cached, non-blocking view of a project actor.
type Health struct {
	ProjectID       string     `json:"project_id"`
	State           ActorState `json:"state"`
	ActiveSessions  int        `json:"active_sessions"`
	PendingCommands int        `json:"pending_commands"`
	LastCommandAt   *time.Time `json:"last_command_at,omitempty"`
}

// DeltaType categorizes a broadcast project change.
type DeltaType string

const (
	DeltaGraphEdit DeltaType = "graph_edit"
	DeltaPlan      DeltaType = "plan_updated"
	DeltaRefresh   DeltaType = "plan_refreshed"
	DeltaSession   DeltaType = "session"
)

// ProjectDelta is pushed to every session subscribed to a project
// after a state-changing command.
type ProjectDelta struct {
	ProjectID string         `json:"project_id"`
	Type      DeltaType      `json:"type"`
	PlanID    string         `json:"plan_id,omitempty"`
	Version   int64          `json:"version,omitempty"`
	GraphID   string         `json:"graph_id,omitempty"`
	Edits     []GraphEdit    `json:"edits,omitempty"`
	Diffs     []*GraphDiff   `json:"diffs,omitempty"`
	Orphans   []ReplayOrphan `json:"orphans,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	RunStatus RunStatus      `json:"run_status,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Sessions  int            `json:"sessions,omitempty"`
	At        time.Time      `json:"at"`
}
