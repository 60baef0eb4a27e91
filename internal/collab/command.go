package collab

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
)

// Command is a request handled by a project actor.
// The set of commands is closed: only types of this package implement it.
type Command interface {
	// Name is the wire type of the command.
	Name() string
	isCommand()
}

// Command wire types.
const (
	CmdEditGraph     = "edit_graph"
	CmdUpdatePlanDag = "update_plan_dag"
	CmdRefreshPlan   = "refresh_plan"
	CmdSubscribe     = "subscribe"
	CmdUnsubscribe   = "unsubscribe"
)

// EditGraph appends one edit to a graph journal and applies it live.
// For create, Value carries the whole element. For update, Field names the
// field and Value its new JSON value.
type EditGraph struct {
	GraphID    string               `json:"graph_id"`
	TargetType domain.TargetType    `json:"target_type"`
	TargetID   string               `json:"target_id"`
	Operation  domain.EditOperation `json:"operation"`
	Field      string               `json:"field,omitempty"`
	Value      json.RawMessage      `json:"value,omitempty"`
	Author     string               `json:"author,omitempty"`
}

// UpdatePlanDag replaces the DAG of a plan if ExpectedVersion is current.
// ExpectedVersion 0 creates the plan.
type UpdatePlanDag struct {
	PlanID          string         `json:"plan_id"`
	PlanName        string         `json:"name,omitempty"`
	Dag             domain.PlanDag `json:"dag"`
	ExpectedVersion int64          `json:"expected_version"`
	Author          string         `json:"author,omitempty"`
}

// RefreshPlan executes a plan, replays the journals of its graphs over the
// fresh outputs and persists the result.
type RefreshPlan struct {
	PlanID string `json:"plan_id"`
}

type Subscribe struct {
	SessionID string `json:"session_id"`
}

type Unsubscribe struct {
	SessionID string `json:"session_id"`
}

func (EditGraph) Name() string     { return CmdEditGraph }
func (UpdatePlanDag) Name() string { return CmdUpdatePlanDag }
func (RefreshPlan) Name() string   { return CmdRefreshPlan }
func (Subscribe) Name() string     { return CmdSubscribe }
func (Unsubscribe) Name() string   { return CmdUnsubscribe }

func (EditGraph) isCommand()     {}
func (UpdatePlanDag) isCommand() {}
func (RefreshPlan) isCommand()   {}
func (Subscribe) isCommand()     {}
func (Unsubscribe) isCommand()   {}

// CommandResult is the reply of an accepted command.
type CommandResult struct {
	Command  string                `json:"command"`
	Plan     *domain.Plan          `json:"plan,omitempty"`
	Edit     *domain.GraphEdit     `json:"edit,omitempty"`
	Diff     *domain.GraphDiff     `json:"diff,omitempty"`
	Run      *domain.RunResult     `json:"run,omitempty"`
	Orphans  []domain.ReplayOrphan `json:"orphans,omitempty"`
	Sessions int                   `json:"sessions,omitempty"`
}

// Envelope is the tagged wire form of a command.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode turns an envelope into its command.
func (e Envelope) Decode() (Command, error) {
	var cmd Command
	switch e.Type {
	case CmdEditGraph:
		cmd = &EditGraph{}
	case CmdUpdatePlanDag:
		cmd = &UpdatePlanDag{}
	case CmdRefreshPlan:
		cmd = &RefreshPlan{}
	case CmdSubscribe:
		cmd = &Subscribe{}
	case CmdUnsubscribe:
		cmd = &Unsubscribe{}
	default:
		return nil, fmt.Errorf("unknown command type %q", e.Type)
	}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, cmd); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", e.Type, err)
		}
	}
	return deref(cmd), nil
}

func deref(cmd Command) Command {
	switch c := cmd.(type) {
	case *EditGraph:
		return *c
	case *UpdatePlanDag:
		return *c
	case *RefreshPlan:
		return *c
	case *Subscribe:
		return *c
	case *Unsubscribe:
		return *c
	}
	return cmd
}
