package collab

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/strata/internal/metrics"
	"github.com/aretw0/strata/pkg/domain"
)

type reply struct {
	result *CommandResult
	err    error
}

type envelope struct {
	ctx   context.Context
	cmd   Command
	reply chan reply
}

// actor owns the state of one project. Commands are handled one at a time,
// in arrival order, on the goroutine started by run.
type actor struct {
	c         *Coordinator
	projectID string
	prev      *actor
	logger    *slog.Logger

	inbox chan envelope
	wake  chan struct{}
	done  chan struct{}

	// mu orders state changes against senders registering in pending.
	// Every state change is published to status while mu is held.
	mu       sync.Mutex
	state    domain.ActorState
	stopping context.Context
	pending  atomic.Int64

	snapshot atomic.Pointer[Snapshot]
	status   atomic.Pointer[domain.Health]

	// Owned by the run goroutine.
	project       *projectState
	lastCommandAt *time.Time
}

func newActor(c *Coordinator, projectID string, prev *actor) *actor {
	a := &actor{
		c:         c,
		projectID: projectID,
		prev:      prev,
		logger:    c.logger.With("project_id", projectID),
		inbox:     make(chan envelope, c.queueSize),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		state:     domain.ActorStarting,
		project:   newProjectState(),
	}
	a.publish()
	return a
}

func (a *actor) accepting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == domain.ActorStarting || a.state == domain.ActorActive
}

func (a *actor) setState(s domain.ActorState) {
	a.mu.Lock()
	a.state = s
	a.restate()
	a.mu.Unlock()
}

// ask enqueues a command and waits for the reply. It fails with
// domain.ErrActorStopped once the actor started draining.
func (a *actor) ask(ctx context.Context, cmd Command) (*CommandResult, error) {
	a.mu.Lock()
	if a.state != domain.ActorStarting && a.state != domain.ActorActive {
		a.mu.Unlock()
		return nil, domain.ErrActorStopped
	}
	a.pending.Add(1)
	a.mu.Unlock()

	env := envelope{ctx: ctx, cmd: cmd, reply: make(chan reply, 1)}
	select {
	case a.inbox <- env:
	case <-ctx.Done():
		a.pending.Add(-1)
		a.signal()
		return nil, ctx.Err()
	}

	select {
	case r := <-env.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *actor) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// stop makes the actor drain with the given deadline and waits for it.
// New commands are rejected from here on.
func (a *actor) stop(ctx context.Context) {
	a.mu.Lock()
	if a.stopping == nil {
		a.stopping = ctx
	}
	if a.state == domain.ActorStarting || a.state == domain.ActorActive {
		a.state = domain.ActorDraining
		a.restate()
	}
	a.mu.Unlock()

	a.signal()
	<-a.done
}

func (a *actor) stopRequest() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopping
}

func (a *actor) run() {
	defer close(a.done)
	defer a.c.remove(a.projectID, a)

	a.c.metrics.ActiveActors.Inc()
	defer a.c.metrics.ActiveActors.Dec()

	if a.prev != nil {
		<-a.prev.done
		a.prev = nil
	}
	a.load()
	a.mu.Lock()
	if a.state == domain.ActorStarting {
		a.state = domain.ActorActive
		a.restate()
	}
	a.mu.Unlock()
	a.publish()
	a.logger.Debug("project actor started")

	var idle <-chan time.Time
	var timer *time.Timer
	if a.c.idleTimeout > 0 {
		timer = time.NewTimer(a.c.idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		if ctx := a.stopRequest(); ctx != nil {
			a.drain(ctx)
			return
		}

		select {
		case env := <-a.inbox:
			a.pending.Add(-1)
			a.handle(env)
			if timer != nil {
				timer.Reset(a.c.idleTimeout)
			}

		case <-a.wake:

		case <-idle:
			if len(a.project.sessions) > 0 || a.pending.Load() > 0 {
				timer.Reset(a.c.idleTimeout)
				continue
			}
			a.logger.Debug("project actor idle")
			ctx, cancel := context.WithTimeout(context.Background(), a.c.drainTimeout)
			a.drain(ctx)
			cancel()
			return
		}
	}
}

// load primes the project state with the stored plans.
func (a *actor) load() {
	plans, err := a.c.store.ListPlans(context.Background(), a.projectID)
	if err != nil {
		a.logger.Warn("failed to load plans", "err", err)
		return
	}
	for _, p := range plans {
		a.project.plans[p.ID] = p
	}
}

// drain stops intake, then handles queued commands until ctx ends.
// Commands still queued afterwards are answered with domain.ErrCancelled.
func (a *actor) drain(ctx context.Context) {
	a.setState(domain.ActorDraining)
	a.publish()

	deadline := ctx.Done()
	expired := false
	cancelled := 0
	for a.pending.Load() > 0 {
		if !expired && ctx.Err() != nil {
			expired = true
			deadline = nil
		}
		select {
		case env := <-a.inbox:
			a.pending.Add(-1)
			if expired {
				env.reply <- reply{err: domain.ErrCancelled}
				cancelled++
				continue
			}
			a.handle(env)
		case <-a.wake:
		case <-deadline:
			expired = true
			deadline = nil
		}
	}

	a.setState(domain.ActorInactive)
	a.publish()
	a.logger.Debug("project actor stopped", "cancelled", cancelled)
}

func (a *actor) handle(env envelope) {
	at := a.c.now()
	a.lastCommandAt = &at

	var res *CommandResult
	err := env.ctx.Err()
	if err == nil {
		res, err = a.dispatch(env.ctx, env.cmd)
	}

	a.c.metrics.ActorCommands.WithLabelValues(env.cmd.Name(), resultLabel(err)).Inc()
	if err != nil {
		a.logger.Debug("command rejected", "command", env.cmd.Name(), "err", err)
	}

	a.publish()
	env.reply <- reply{result: res, err: err}
}

// publish stores a new snapshot and health. It runs on the actor goroutine,
// which owns the project state.
func (a *actor) publish() {
	a.snapshot.Store(a.project.snapshot(a.projectID, a.c.now()))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Store(&domain.Health{
		ProjectID:      a.projectID,
		State:          a.state,
		ActiveSessions: len(a.project.sessions),
		LastCommandAt:  a.lastCommandAt,
	})
}

// restate republishes the last health with the current state. Callers hold mu.
func (a *actor) restate() {
	h := *a.status.Load()
	h.State = a.state
	a.status.Store(&h)
}

// health combines the published health with the live queue length.
// It never blocks on the actor.
func (a *actor) health() domain.Health {
	h := *a.status.Load()
	h.PendingCommands = int(a.pending.Load())
	return h
}

func resultLabel(err error) string {
	var conflict *domain.VersionConflict
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.As(err, &conflict):
		return metrics.ResultConflict
	case errors.Is(err, domain.ErrInvalidPlan), errors.Is(err, domain.ErrInvalidEdit):
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}
