package collab

import (
	"maps"
	"slices"
	"time"

	"github.com/aretw0/strata/internal/journal"
	"github.com/aretw0/strata/pkg/domain"
)

// Snapshot is an immutable view of a project, published by its actor after
// every command. Values reachable from a Snapshot must not be modified.
type Snapshot struct {
	ProjectID string                       `json:"project_id"`
	Plans     map[string]*domain.Plan      `json:"plans"`
	Graphs    map[string]*domain.Graph     `json:"graphs"`
	Runs      map[string]*domain.RunResult `json:"runs,omitempty"`
	Sessions  []string                     `json:"sessions"`
	At        time.Time                    `json:"at"`
}

// projectState is owned by the actor goroutine. Entries are replaced,
// never mutated, so snapshots can share them.
type projectState struct {
	plans    map[string]*domain.Plan
	graphs   map[string]*domain.Graph
	runs     map[string]*domain.RunResult
	journals map[string]*journal.Journal
	sessions map[string]struct{}
}

func newProjectState() *projectState {
	return &projectState{
		plans:    make(map[string]*domain.Plan),
		graphs:   make(map[string]*domain.Graph),
		runs:     make(map[string]*domain.RunResult),
		journals: make(map[string]*journal.Journal),
		sessions: make(map[string]struct{}),
	}
}

func (s *projectState) snapshot(projectID string, at time.Time) *Snapshot {
	return &Snapshot{
		ProjectID: projectID,
		Plans:     maps.Clone(s.plans),
		Graphs:    maps.Clone(s.graphs),
		Runs:      maps.Clone(s.runs),
		Sessions:  slices.Sorted(maps.Keys(s.sessions)),
		At:        at,
	}
}
