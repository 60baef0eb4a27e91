package domain

import (
	"encoding/json"
	"time"
)

// TargetType is the kind of graph element an edit addresses.
type TargetType string

const (
	TargetNode  TargetType = "node"
	TargetEdge  TargetType = "edge"
	TargetLayer TargetType = "layer"
)

// EditOperation is the change an edit makes.
type EditOperation string

const (
	OpCreate EditOperation = "create"
	OpUpdate EditOperation = "update"
	OpDelete EditOperation = "delete"
)

// GraphEdit is one entry of a graph's append-only edit journal.
//
// For create, NewValue holds the full element as JSON.
// For update, FieldName names the field and NewValue its JSON value.
// Fields other than the well-known ones address Attributes entries.
type GraphEdit struct {
	ID         string          `json:"id"`
	GraphID    string          `json:"graph_id"`
	TargetType TargetType      `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Operation  EditOperation   `json:"operation"`
	FieldName  string          `json:"field_name,omitempty"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value,omitempty"`

	// SequenceNumber is strictly increasing per graph, assigned at append
	// time and never reused.
	SequenceNumber uint64 `json:"sequence_number"`

	Applied   bool      `json:"applied"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// TargetKey identifies the element an edit addresses.
func (e GraphEdit) TargetKey() string {
	return string(e.TargetType) + ":" + e.TargetID
}

// Orphan reasons reported by replay.
const (
	OrphanTargetMissing = "target_missing"
	OrphanConflict      = "conflict"
	OrphanInvalid       = "invalid"
)

// ReplayOrphan is an edit that could not be applied during replay.
// It is a signal for the user to reconcile, not an error.
type ReplayOrphan struct {
	Edit   GraphEdit `json:"edit"`
	Reason string    `json:"reason"`
	Detail string    `json:"detail,omitempty"`
}
