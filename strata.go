package strata

import (
	"context"
	_ "embed"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/collab"
	"github.com/aretw0/strata/internal/executor"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/metrics"
	"github.com/aretw0/strata/internal/processor"
	"github.com/aretw0/strata/internal/validator"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/observability"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the release of the library and the CLI.
//
//go:embed VERSION
var Version string

// Engine is the high-level entry point of the library. It executes plans
// and routes collaboration commands to per-project actors.
type Engine struct {
	store       ports.Store
	rows        ports.RowSource
	artifacts   ports.ArtifactStore
	logger      *slog.Logger
	registry    prometheus.Registerer
	hooks       domain.LifecycleHooks
	broadcaster ports.Broadcaster

	collabOpts []collab.Option

	executor *executor.Executor
	coord    *collab.Coordinator
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the persistence of plans, graphs, journals and runs.
// The default is an in-memory store.
func WithStore(store ports.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithRowSource sets where DataSet nodes read their rows.
func WithRowSource(rows ports.RowSource) Option {
	return func(e *Engine) { e.rows = rows }
}

// WithArtifactStore sends rendered artifacts somewhere other than the store.
func WithArtifactStore(s ports.ArtifactStore) Option {
	return func(e *Engine) { e.artifacts = s }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics registers the engine metrics on registry.
func WithMetrics(registry prometheus.Registerer) Option {
	return func(e *Engine) { e.registry = registry }
}

// WithLifecycleHooks registers observability hooks for every run.
// Repeated calls add to the hooks already registered.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = observability.Combine(e.hooks, hooks) }
}

// WithBroadcaster receives the deltas of every project.
func WithBroadcaster(b ports.Broadcaster) Option {
	return func(e *Engine) { e.broadcaster = b }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) { e.collabOpts = append(e.collabOpts, collab.WithIdleTimeout(d)) }
}

func WithDrainTimeout(d time.Duration) Option {
	return func(e *Engine) { e.collabOpts = append(e.collabOpts, collab.WithDrainTimeout(d)) }
}

func WithQueueSize(n int) Option {
	return func(e *Engine) { e.collabOpts = append(e.collabOpts, collab.WithQueueSize(n)) }
}

// New wires an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.rows == nil {
		e.rows = memory.NewRowSource(nil)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.broadcaster == nil {
		e.broadcaster = ports.NopBroadcaster{}
	}

	m := metrics.NewNop()
	if e.registry != nil {
		m = metrics.New(e.registry)
	}

	execOpts := []executor.Option{
		executor.WithStore(e.store),
		executor.WithLogger(e.logger),
		executor.WithMetrics(m),
		executor.WithLifecycleHooks(e.hooks),
	}
	if e.artifacts != nil {
		execOpts = append(execOpts, executor.WithArtifactStore(e.artifacts))
	}
	e.executor = executor.New(processor.New(e.rows, processor.WithLogger(e.logger)), execOpts...)

	collabOpts := append([]collab.Option{
		collab.WithBroadcaster(e.broadcaster),
		collab.WithLogger(e.logger),
		collab.WithMetrics(m),
	}, e.collabOpts...)
	e.coord = collab.New(e.store, e.executor, collabOpts...)

	return e
}

// Validate checks a plan DAG. Failures are a *domain.ValidationError
// listing every defect.
func (e *Engine) Validate(dag domain.PlanDag) error {
	return validator.Validate(dag)
}

// Execute runs a plan once, outside of any project actor. Graphs and
// artifacts are persisted to the configured stores.
func (e *Engine) Execute(ctx context.Context, plan *domain.Plan) (*domain.RunResult, error) {
	return e.executor.Execute(ctx, plan, executor.RunContext{})
}

// Route hands a command to the actor of a project and waits for its reply.
func (e *Engine) Route(ctx context.Context, projectID string, cmd Command) (*CommandResult, error) {
	return e.coord.Route(ctx, projectID, cmd)
}

// Health returns the cached health of a project without blocking its actor.
func (e *Engine) Health(projectID string) domain.Health {
	return e.coord.Health(projectID)
}

// Snapshot returns the last published state of a project.
func (e *Engine) Snapshot(projectID string) (*Snapshot, bool) {
	return e.coord.Snapshot(projectID)
}

func (e *Engine) Coordinator() *Coordinator {
	return e.coord
}

func (e *Engine) Store() ports.Store {
	return e.store
}

// Close drains every project actor. Commands still queued when ctx ends
// are answered with domain.ErrCancelled.
func (e *Engine) Close(ctx context.Context) error {
	return e.coord.Shutdown(ctx)
}
