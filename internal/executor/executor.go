package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/metrics"
	"github.com/aretw0/strata/internal/processor"
	"github.com/aretw0/strata/internal/validator"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName     = "strata.executor"
	reasonCancel   = "cancelled"
	reasonUpstream = "upstream %s did not succeed"
)

// RunContext carries the per-run parameters of Execute.
type RunContext struct {
	// RunID identifies the run. A new UUID is generated when empty.
	RunID string

	// SkipGraphPersist leaves graph outputs unsaved. The collaboration actor
	// sets it because it persists graphs itself after replaying journals.
	SkipGraphPersist bool

	// Hooks are invoked after the executor-wide hooks.
	Hooks domain.LifecycleHooks

	// Rewrite, when set, may replace a node output before it is hashed,
	// persisted and handed to downstream nodes. An error aborts the run.
	Rewrite func(ctx context.Context, nodeID string, out domain.Output) (domain.Output, error)
}

// Executor runs plan DAGs node by node in topological order.
type Executor struct {
	processor processor.Processor
	runs      ports.RunStore
	graphs    ports.GraphStore
	artifacts ports.ArtifactStore
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Executor)

// WithStore persists run records, graphs and artifacts in one store.
func WithStore(store ports.Store) Option {
	return func(e *Executor) {
		e.runs = store
		e.graphs = store
		e.artifacts = store
	}
}

func WithRunStore(s ports.RunStore) Option {
	return func(e *Executor) { e.runs = s }
}

func WithGraphStore(s ports.GraphStore) Option {
	return func(e *Executor) { e.graphs = s }
}

// WithArtifactStore overrides where artifacts go, e.g. a file store.
func WithArtifactStore(s ports.ArtifactStore) Option {
	return func(e *Executor) { e.artifacts = s }
}

func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) { e.hooks = hooks }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithClock replaces time.Now for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor. Without stores, nothing is persisted.
func New(proc processor.Processor, opts ...Option) *Executor {
	e := &Executor{
		processor: proc,
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNop()
	}
	return e
}

// run is the mutable state of one Execute call.
type run struct {
	*Executor
	ctx     context.Context
	plan    *domain.Plan
	rc      RunContext
	logger  *slog.Logger
	states  map[string]*domain.ExecutionState
	result  *domain.RunResult
	skipAll bool
}

// Execute validates the plan DAG and runs it.
//
// An invalid DAG returns a *domain.ValidationError and nothing runs.
// Processor failures fail their node only: downstream nodes are skipped and
// the run continues. Cancelling ctx lets the node in flight finish, then
// skips the rest. A storage error aborts the run and is returned.
func (e *Executor) Execute(ctx context.Context, plan *domain.Plan, rc RunContext) (*domain.RunResult, error) {
	configs, err := validator.Compile(plan.Dag)
	if err != nil {
		return nil, err
	}

	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}
	order := TopologicalOrder(plan.Dag)

	ctx, span := e.tracer.Start(ctx, "executor.run", trace.WithAttributes(
		attribute.String("run_id", rc.RunID),
		attribute.String("plan_id", plan.ID),
		attribute.Int("nodes", len(order)),
	))
	defer span.End()

	r := &run{
		Executor: e,
		ctx:      ctx,
		plan:     plan,
		rc:       rc,
		logger:   e.logger.With("run_id", rc.RunID, "plan_id", plan.ID),
		states:   make(map[string]*domain.ExecutionState, len(order)),
		result: &domain.RunResult{
			RunID:   rc.RunID,
			PlanID:  plan.ID,
			Total:   len(order),
			Outputs: make(map[string]domain.Output, len(order)),
		},
	}

	// 1. Register every node as pending
	for _, id := range order {
		node, _ := plan.Dag.Node(id)
		st := domain.NewExecutionState(rc.RunID, id, node.Kind)
		r.states[id] = st
		if err := r.save(st); err != nil {
			return nil, r.abort(span, err)
		}
	}
	r.logger.Debug("run started", "nodes", len(order))

	// 2. Walk the DAG
	for _, id := range order {
		if err := r.step(id, configs[id]); err != nil {
			return nil, r.abort(span, err)
		}
	}

	// 3. Aggregate
	r.finish()
	span.SetAttributes(attribute.String("status", string(r.result.Status)))
	if r.result.Status != domain.RunSucceeded {
		span.SetStatus(codes.Error, string(r.result.Status))
	}
	return r.result, nil
}

func (r *run) abort(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "storage failure")
	r.logger.Error("run aborted", "err", err)
	r.metrics.Runs.WithLabelValues("aborted").Inc()
	return fmt.Errorf("run %s: %w", r.rc.RunID, err)
}

// step decides the fate of one node.
func (r *run) step(id string, cfg domain.NodeConfig) error {
	st := r.states[id]

	if !r.skipAll && r.ctx.Err() != nil {
		r.skipAll = true
		r.logger.Info("run cancelled", "next_node", id)
	}
	if r.skipAll {
		return r.transition(st, domain.StatusSkipped, reasonCancel)
	}

	inputs := r.plan.Dag.Inputs(id)
	for _, up := range inputs {
		if r.states[up].Status != domain.StatusSucceeded {
			return r.transition(st, domain.StatusSkipped, fmt.Sprintf(reasonUpstream, up))
		}
	}

	if err := r.transition(st, domain.StatusRunning, ""); err != nil {
		return err
	}

	req := processor.Request{
		PlanID: r.plan.ID,
		NodeID: id,
		Config: cfg,
		Inputs: make([]domain.Output, len(inputs)),
	}
	for i, up := range inputs {
		req.Inputs[i] = r.result.Outputs[up]
	}

	out, err := r.process(st, req)
	if err != nil {
		r.logger.Warn("node failed", "node_id", id, "kind", st.Kind, "err", err)
		return r.transition(st, domain.StatusFailed, err.Error())
	}
	if r.rc.Rewrite != nil {
		if out, err = r.rc.Rewrite(context.WithoutCancel(r.ctx), id, out); err != nil {
			return fmt.Errorf("rewrite output of %s: %w", id, err)
		}
	}

	ref, err := OutputRef(out)
	if err != nil {
		return r.transition(st, domain.StatusFailed, err.Error())
	}
	if err := r.persistOutput(id, out); err != nil {
		return err
	}

	r.result.Outputs[id] = out
	st.OutputRef = ref
	return r.transition(st, domain.StatusSucceeded, "")
}

// process invokes the processor inside a span. The in-flight node is
// shielded from cancellation so that it always completes.
func (r *run) process(st *domain.ExecutionState, req processor.Request) (domain.Output, error) {
	ctx, span := r.tracer.Start(r.ctx, "node."+string(st.Kind), trace.WithAttributes(
		attribute.String("run_id", st.RunID),
		attribute.String("node_id", st.NodeID),
		attribute.String("kind", string(st.Kind)),
	))
	defer span.End()

	start := time.Now()
	out, err := r.processor.Process(context.WithoutCancel(ctx), req)
	r.metrics.NodeDuration.WithLabelValues(string(st.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Output{}, err
	}
	if out.Kind != st.Kind.Output() {
		err := fmt.Errorf("processor returned %s, expected %s", out.Kind, st.Kind.Output())
		span.SetStatus(codes.Error, err.Error())
		return domain.Output{}, err
	}
	return out, nil
}

func (r *run) persistOutput(nodeID string, out domain.Output) error {
	ctx := context.WithoutCancel(r.ctx)
	switch {
	case out.Graph != nil && r.graphs != nil && !r.rc.SkipGraphPersist:
		if err := r.graphs.SaveGraph(ctx, out.Graph); err != nil {
			return err
		}
	case out.Artifact != nil && r.artifacts != nil:
		if err := r.artifacts.SaveArtifact(ctx, r.rc.RunID, nodeID, out.Artifact); err != nil {
			return err
		}
	}
	return nil
}

// transition moves a node, records it, persists it and fires hooks.
func (r *run) transition(st *domain.ExecutionState, to domain.ExecutionStatus, reason string) error {
	t, err := st.Transition(to, reason, r.now())
	if err != nil {
		return err
	}
	r.result.Transitions = append(r.result.Transitions, t)

	if err := r.save(st); err != nil {
		return err
	}

	event := &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: r.now(), RunID: st.RunID},
		PlanID:    r.plan.ID,
		NodeID:    st.NodeID,
		Kind:      st.Kind,
		From:      t.From,
		Status:    t.To,
		Reason:    reason,
	}
	if to == domain.StatusRunning {
		event.Type = domain.EventNodeStart
		r.fire(r.hooks.OnNodeStart, r.rc.Hooks.OnNodeStart, event)
		return nil
	}

	event.Type = domain.EventNodeFinish
	r.metrics.NodeExecutions.WithLabelValues(string(st.Kind), string(to)).Inc()
	r.result.States = append(r.result.States, *st)
	r.fire(r.hooks.OnNodeFinish, r.rc.Hooks.OnNodeFinish, event)
	return nil
}

func (r *run) fire(global, local func(context.Context, *domain.NodeEvent), event *domain.NodeEvent) {
	if global != nil {
		global(r.ctx, event)
	}
	if local != nil {
		local(r.ctx, event)
	}
}

func (r *run) save(st *domain.ExecutionState) error {
	if r.runs == nil {
		return nil
	}
	return r.runs.SaveExecutionState(context.WithoutCancel(r.ctx), *st)
}

func (r *run) finish() {
	res := r.result
	res.Status = domain.RunSucceeded
	for _, st := range res.States {
		switch st.Status {
		case domain.StatusSucceeded:
			res.Succeeded++
		case domain.StatusFailed:
			res.Failed++
		case domain.StatusSkipped:
			res.Skipped++
		}
		if st.Status != domain.StatusSucceeded && r.plan.Dag.Terminal(st.NodeID) {
			res.Status = domain.RunFailed
		}
	}
	if r.skipAll {
		res.Status = domain.RunCancelled
	}

	r.metrics.Runs.WithLabelValues(string(res.Status)).Inc()
	r.logger.Info("run finished",
		"status", res.Status,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)

	event := &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: r.now(), Type: domain.EventRunFinish, RunID: res.RunID},
		PlanID:    res.PlanID,
		Result:    res,
	}
	for _, hook := range []func(context.Context, *domain.RunEvent){r.hooks.OnRunFinish, r.rc.Hooks.OnRunFinish} {
		if hook != nil {
			hook(r.ctx, event)
		}
	}
}
