package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

var _ ports.Store = (*Store)(nil)

// Store implements ports.Store in memory.
// Safe for concurrent use. Values are copied on the way in and out so callers
// can't mutate store state directly by pointer.
type Store struct {
	mu        sync.RWMutex
	plans     map[string]*domain.Plan
	graphs    map[string]*domain.Graph
	journals  map[string][]domain.GraphEdit
	runs      map[string]map[string]domain.ExecutionState
	artifacts map[string]domain.Artifact
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		plans:     make(map[string]*domain.Plan),
		graphs:    make(map[string]*domain.Graph),
		journals:  make(map[string][]domain.GraphEdit),
		runs:      make(map[string]map[string]domain.ExecutionState),
		artifacts: make(map[string]domain.Artifact),
	}
}

// LoadPlan retrieves a plan from memory.
func (s *Store) LoadPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[planID]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	return plan.Clone(), nil
}

// ListPlans returns the plans of a project ordered by ID.
func (s *Store) ListPlans(ctx context.Context, projectID string) ([]*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var plans []*domain.Plan
	for _, p := range s.plans {
		if p.ProjectID == projectID {
			plans = append(plans, p.Clone())
		}
	}
	slices.SortFunc(plans, func(a, b *domain.Plan) int { return strings.Compare(a.ID, b.ID) })
	return plans, nil
}

// SavePlan stores the plan if the stored version matches expectedVersion.
func (s *Store) SavePlan(ctx context.Context, plan *domain.Plan, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.plans[plan.ID]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return fmt.Errorf("plan %s: stored version %d, expected %d: %w", plan.ID, current, expectedVersion, domain.ErrVersionConflict)
	}

	s.plans[plan.ID] = plan.Clone()
	return nil
}

// LoadGraph retrieves a graph from memory.
func (s *Store) LoadGraph(ctx context.Context, graphID string) (*domain.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[graphID]
	if !ok {
		return nil, domain.ErrGraphNotFound
	}
	return g.Clone(), nil
}

// SaveGraph stores a copy of the graph.
func (s *Store) SaveGraph(ctx context.Context, graph *domain.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[graph.ID] = graph.Clone()
	return nil
}

// AppendEdit adds an edit to the graph journal, keeping it in sequence order.
// A sequence that is already taken is rejected with domain.ErrSequenceTaken.
func (s *Store) AppendEdit(ctx context.Context, edit domain.GraphEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.journals[edit.GraphID]
	i, found := slices.BinarySearchFunc(journal, edit.SequenceNumber, func(e domain.GraphEdit, seq uint64) int {
		switch {
		case e.SequenceNumber < seq:
			return -1
		case e.SequenceNumber > seq:
			return 1
		}
		return 0
	})
	if found {
		return fmt.Errorf("graph %s sequence %d: %w", edit.GraphID, edit.SequenceNumber, domain.ErrSequenceTaken)
	}
	s.journals[edit.GraphID] = slices.Insert(journal, i, copyEdit(edit))
	return nil
}

// ListEdits returns the edits of a graph from fromSeq on.
func (s *Store) ListEdits(ctx context.Context, graphID string, fromSeq uint64) ([]domain.GraphEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edits []domain.GraphEdit
	for _, e := range s.journals[graphID] {
		if e.SequenceNumber >= fromSeq {
			edits = append(edits, copyEdit(e))
		}
	}
	return edits, nil
}

// LastSequence returns the highest stored sequence of a graph.
func (s *Store) LastSequence(ctx context.Context, graphID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	journal := s.journals[graphID]
	if len(journal) == 0 {
		return 0, nil
	}
	return journal[len(journal)-1].SequenceNumber, nil
}

// SaveExecutionState stores the latest state of a node.
func (s *Store) SaveExecutionState(ctx context.Context, state domain.ExecutionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[state.RunID]
	if !ok {
		run = make(map[string]domain.ExecutionState)
		s.runs[state.RunID] = run
	}
	run[state.NodeID] = copyState(state)
	return nil
}

// ListExecutionStates returns the states of a run ordered by node ID.
func (s *Store) ListExecutionStates(ctx context.Context, runID string) ([]domain.ExecutionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]domain.ExecutionState, 0, len(s.runs[runID]))
	for _, st := range s.runs[runID] {
		states = append(states, copyState(st))
	}
	slices.SortFunc(states, func(a, b domain.ExecutionState) int { return strings.Compare(a.NodeID, b.NodeID) })
	return states, nil
}

// SaveArtifact stores a copy of the artifact.
func (s *Store) SaveArtifact(ctx context.Context, runID, nodeID string, artifact *domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[runID+"/"+nodeID] = *artifact
	return nil
}

// LoadArtifact retrieves an artifact.
func (s *Store) LoadArtifact(ctx context.Context, runID, nodeID string) (*domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[runID+"/"+nodeID]
	if !ok {
		return nil, domain.ErrArtifactNotFound
	}
	return &a, nil
}

func copyEdit(e domain.GraphEdit) domain.GraphEdit {
	e.OldValue = bytes.Clone(e.OldValue)
	e.NewValue = bytes.Clone(e.NewValue)
	return e
}

func copyState(st domain.ExecutionState) domain.ExecutionState {
	if st.StartedAt != nil {
		t := *st.StartedAt
		st.StartedAt = &t
	}
	if st.FinishedAt != nil {
		t := *st.FinishedAt
		st.FinishedAt = &t
	}
	return st
}
