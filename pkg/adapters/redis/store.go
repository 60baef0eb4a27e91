package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

var _ ports.Store = (*Store)(nil)

// savePlanScript writes a plan only if its stored version matches the expected one.
// KEYS[1] = plan hash, KEYS[2] = project index set
// ARGV[1] = expected version, ARGV[2] = new version, ARGV[3] = plan JSON, ARGV[4] = plan ID
var savePlanScript = backend.NewScript(`
	local current = redis.call("HGET", KEYS[1], "version")
	if not current then
		current = "0"
	end
	if tonumber(current) ~= tonumber(ARGV[1]) then
		return tonumber(current)
	end
	redis.call("HSET", KEYS[1], "version", ARGV[2], "data", ARGV[3])
	redis.call("SADD", KEYS[2], ARGV[4])
	return -1
`)

// appendEditScript adds a journal entry unless its sequence is taken.
// KEYS[1] = journal ZSET
// ARGV[1] = sequence, ARGV[2] = edit JSON
var appendEditScript = backend.NewScript(`
	if #redis.call("ZRANGEBYSCORE", KEYS[1], ARGV[1], ARGV[1], "LIMIT", 0, 1) > 0 then
		return 0
	end
	redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
	return 1
`)

// Store implements ports.Store using Redis.
//
// Layout (relative to the prefix):
//
//	plan:{id}                 HASH {version, data}
//	project:{id}:plans        SET of plan IDs
//	graph:{id}                JSON
//	journal:{graph}           ZSET of edit JSON scored by sequence
//	run:{id}                  HASH node ID -> execution state JSON
//	artifact:{run}:{node}     JSON
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for execution records and artifacts.
// Plans, graphs and journals never expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "strata:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(parts ...string) string {
	return s.prefix + strings.Join(parts, ":")
}

// LoadPlan retrieves a plan from Redis.
func (s *Store) LoadPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	val, err := s.client.HGet(ctx, s.key("plan", planID), "data").Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan from redis: %w", err)
	}

	var plan domain.Plan
	if err := json.Unmarshal([]byte(val), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}
	return &plan, nil
}

// ListPlans returns the plans of a project ordered by ID.
func (s *Store) ListPlans(ctx context.Context, projectID string) ([]*domain.Plan, error) {
	ids, err := s.client.SMembers(ctx, s.key("project", projectID, "plans")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	slices.Sort(ids)

	plans := make([]*domain.Plan, 0, len(ids))
	for _, id := range ids {
		plan, err := s.LoadPlan(ctx, id)
		if errors.Is(err, domain.ErrPlanNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// SavePlan performs an atomic compare-and-swap on the plan version.
func (s *Store) SavePlan(ctx context.Context, plan *domain.Plan, expectedVersion int64) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	keys := []string{s.key("plan", plan.ID), s.key("project", plan.ProjectID, "plans")}
	current, err := savePlanScript.Run(ctx, s.client, keys,
		expectedVersion, plan.Version, data, plan.ID,
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to save plan to redis: %w", err)
	}
	if current >= 0 {
		return fmt.Errorf("plan %s: stored version %d, expected %d: %w", plan.ID, current, expectedVersion, domain.ErrVersionConflict)
	}
	return nil
}

// LoadGraph retrieves a graph from Redis.
func (s *Store) LoadGraph(ctx context.Context, graphID string) (*domain.Graph, error) {
	val, err := s.client.Get(ctx, s.key("graph", graphID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrGraphNotFound
		}
		return nil, fmt.Errorf("failed to get graph from redis: %w", err)
	}

	var g domain.Graph
	if err := json.Unmarshal([]byte(val), &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	return &g, nil
}

// SaveGraph persists a graph.
func (s *Store) SaveGraph(ctx context.Context, graph *domain.Graph) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := s.client.Set(ctx, s.key("graph", graph.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save graph to redis: %w", err)
	}
	return nil
}

// AppendEdit adds an edit to the graph's journal ZSET, scored by sequence.
// A sequence that is already taken is rejected with domain.ErrSequenceTaken.
func (s *Store) AppendEdit(ctx context.Context, edit domain.GraphEdit) error {
	data, err := json.Marshal(edit)
	if err != nil {
		return fmt.Errorf("failed to marshal edit: %w", err)
	}

	seq := strconv.FormatUint(edit.SequenceNumber, 10)
	added, err := appendEditScript.Run(ctx, s.client, []string{s.key("journal", edit.GraphID)}, seq, data).Int64()
	if err != nil {
		return fmt.Errorf("failed to append edit to redis: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("graph %s sequence %d: %w", edit.GraphID, edit.SequenceNumber, domain.ErrSequenceTaken)
	}
	return nil
}

// ListEdits returns the journal entries with sequence >= fromSeq.
func (s *Store) ListEdits(ctx context.Context, graphID string, fromSeq uint64) ([]domain.GraphEdit, error) {
	vals, err := s.client.ZRangeByScore(ctx, s.key("journal", graphID), &backend.ZRangeBy{
		Min: strconv.FormatUint(fromSeq, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list edits: %w", err)
	}

	edits := make([]domain.GraphEdit, 0, len(vals))
	for _, val := range vals {
		var e domain.GraphEdit
		if err := json.Unmarshal([]byte(val), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edit: %w", err)
		}
		edits = append(edits, e)
	}
	return edits, nil
}

// LastSequence returns the highest sequence in the graph's journal.
func (s *Store) LastSequence(ctx context.Context, graphID string) (uint64, error) {
	last, err := s.client.ZRevRangeWithScores(ctx, s.key("journal", graphID), 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}
	if len(last) == 0 {
		return 0, nil
	}
	return uint64(last[0].Score), nil
}

// SaveExecutionState stores a node state in the run hash.
func (s *Store) SaveExecutionState(ctx context.Context, state domain.ExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal execution state: %w", err)
	}

	key := s.key("run", state.RunID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, state.NodeID, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save execution state to redis: %w", err)
	}
	return nil
}

// ListExecutionStates returns every node state of a run ordered by node ID.
func (s *Store) ListExecutionStates(ctx context.Context, runID string) ([]domain.ExecutionState, error) {
	vals, err := s.client.HGetAll(ctx, s.key("run", runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list execution states: %w", err)
	}

	states := make([]domain.ExecutionState, 0, len(vals))
	for _, val := range vals {
		var st domain.ExecutionState
		if err := json.Unmarshal([]byte(val), &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution state: %w", err)
		}
		states = append(states, st)
	}
	slices.SortFunc(states, func(a, b domain.ExecutionState) int { return strings.Compare(a.NodeID, b.NodeID) })
	return states, nil
}

// SaveArtifact persists a rendered artifact.
func (s *Store) SaveArtifact(ctx context.Context, runID, nodeID string, artifact *domain.Artifact) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if err := s.client.Set(ctx, s.key("artifact", runID, nodeID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save artifact to redis: %w", err)
	}
	return nil
}

// LoadArtifact retrieves a rendered artifact.
func (s *Store) LoadArtifact(ctx context.Context, runID, nodeID string) (*domain.Artifact, error) {
	val, err := s.client.Get(ctx, s.key("artifact", runID, nodeID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get artifact from redis: %w", err)
	}

	var a domain.Artifact
	if err := json.Unmarshal([]byte(val), &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	return &a, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
