package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/dgraph-io/badger/v4"
)

var _ ports.Store = (*Store)(nil)

// Key namespaces. Components are separated by a NUL byte so IDs may contain
// any printable character.
const (
	nsPlan     = "plan"
	nsProject  = "project"
	nsGraph    = "graph"
	nsEdit     = "edit"
	nsRun      = "run"
	nsArtifact = "artifact"
	sep        = "\x00"
)

// Store implements ports.Store on an embedded Badger database.
// Journal entries are keyed by graph and big-endian sequence, so a
// prefix scan yields them in sequence order.
type Store struct {
	db    *badger.DB
	gc    *gcRunner
	owned bool
}

// New wraps an already open database. The caller keeps ownership of db.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Open opens a database from the config and returns a Store that owns it.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Store{db: db, owned: true}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
	}
	return s, nil
}

// Close stops background GC and closes the database if the Store owns it.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func key(parts ...string) []byte {
	return []byte(strings.Join(parts, sep))
}

func editPrefix(graphID string) []byte {
	return key(nsEdit, graphID, "")
}

func editKey(graphID string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(editPrefix(graphID), seq)
}

func getJSON(txn *badger.Txn, k []byte, v any) error {
	item, err := txn.Get(k)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	return txn.Set(k, data)
}

// scan iterates values under prefix in key order.
func scan(txn *badger.Txn, prefix []byte, fn func(k, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		k := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error { return fn(k, val) }); err != nil {
			return err
		}
	}
	return nil
}

// LoadPlan retrieves a plan.
func (s *Store) LoadPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	var plan domain.Plan
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key(nsPlan, planID), &plan)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return &plan, nil
}

// ListPlans returns the plans of a project ordered by ID.
func (s *Store) ListPlans(ctx context.Context, projectID string) ([]*domain.Plan, error) {
	var plans []*domain.Plan
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := key(nsProject, projectID, "")
		var ids []string
		if err := scan(txn, prefix, func(k, _ []byte) error {
			ids = append(ids, string(bytes.TrimPrefix(k, prefix)))
			return nil
		}); err != nil {
			return err
		}

		for _, id := range ids {
			var p domain.Plan
			if err := getJSON(txn, key(nsPlan, id), &p); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			plans = append(plans, &p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	slices.SortFunc(plans, func(a, b *domain.Plan) int { return strings.Compare(a.ID, b.ID) })
	return plans, nil
}

// SavePlan compares and swaps the plan version inside one transaction.
// A concurrent writer surfaces as a badger transaction conflict, which is
// reported as a version conflict as well.
func (s *Store) SavePlan(ctx context.Context, plan *domain.Plan, expectedVersion int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var current int64
		var stored domain.Plan
		err := getJSON(txn, key(nsPlan, plan.ID), &stored)
		switch {
		case err == nil:
			current = stored.Version
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if current != expectedVersion {
			return fmt.Errorf("plan %s: stored version %d, expected %d: %w", plan.ID, current, expectedVersion, domain.ErrVersionConflict)
		}

		if err := setJSON(txn, key(nsPlan, plan.ID), plan); err != nil {
			return err
		}
		return txn.Set(key(nsProject, plan.ProjectID, plan.ID), nil)
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("plan %s: concurrent update: %w", plan.ID, domain.ErrVersionConflict)
	}
	if err != nil && !errors.Is(err, domain.ErrVersionConflict) {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return err
}

// LoadGraph retrieves a graph.
func (s *Store) LoadGraph(ctx context.Context, graphID string) (*domain.Graph, error) {
	var g domain.Graph
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key(nsGraph, graphID), &g)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrGraphNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	return &g, nil
}

// SaveGraph persists a graph.
func (s *Store) SaveGraph(ctx context.Context, graph *domain.Graph) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key(nsGraph, graph.ID), graph)
	})
	if err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	return nil
}

// AppendEdit persists an edit under its graph and sequence.
func (s *Store) AppendEdit(ctx context.Context, edit domain.GraphEdit) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		k := editKey(edit.GraphID, edit.SequenceNumber)
		switch _, err := txn.Get(k); {
		case err == nil:
			return fmt.Errorf("graph %s sequence %d: %w", edit.GraphID, edit.SequenceNumber, domain.ErrSequenceTaken)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return setJSON(txn, k, edit)
	})
	if err != nil {
		return fmt.Errorf("failed to append edit: %w", err)
	}
	return nil
}

// ListEdits returns the edits of a graph from fromSeq on, in sequence order.
func (s *Store) ListEdits(ctx context.Context, graphID string, fromSeq uint64) ([]domain.GraphEdit, error) {
	var edits []domain.GraphEdit
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := editPrefix(graphID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(editKey(graphID, fromSeq)); it.ValidForPrefix(prefix); it.Next() {
			var e domain.GraphEdit
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			edits = append(edits, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list edits: %w", err)
	}
	return edits, nil
}

// LastSequence finds the highest sequence with a reverse iterator.
func (s *Store) LastSequence(ctx context.Context, graphID string) (uint64, error) {
	var last uint64
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := editPrefix(graphID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the largest possible key under the prefix.
		it.Seek(append(slices.Clone(prefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF))
		if it.ValidForPrefix(prefix) {
			k := it.Item().Key()
			last = binary.BigEndian.Uint64(k[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}
	return last, nil
}

// SaveExecutionState stores the latest state of a node.
func (s *Store) SaveExecutionState(ctx context.Context, state domain.ExecutionState) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key(nsRun, state.RunID, state.NodeID), state)
	})
	if err != nil {
		return fmt.Errorf("failed to save execution state: %w", err)
	}
	return nil
}

// ListExecutionStates returns the states of a run ordered by node ID.
func (s *Store) ListExecutionStates(ctx context.Context, runID string) ([]domain.ExecutionState, error) {
	states := []domain.ExecutionState{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, key(nsRun, runID, ""), func(_, val []byte) error {
			var st domain.ExecutionState
			if err := json.Unmarshal(val, &st); err != nil {
				return err
			}
			states = append(states, st)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list execution states: %w", err)
	}
	return states, nil
}

// SaveArtifact persists a rendered artifact.
func (s *Store) SaveArtifact(ctx context.Context, runID, nodeID string, artifact *domain.Artifact) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key(nsArtifact, runID, nodeID), artifact)
	})
	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}

// LoadArtifact retrieves a rendered artifact.
func (s *Store) LoadArtifact(ctx context.Context, runID, nodeID string) (*domain.Artifact, error) {
	var a domain.Artifact
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key(nsArtifact, runID, nodeID), &a)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return &a, nil
}
