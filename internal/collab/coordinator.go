package collab

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/strata/internal/executor"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/metrics"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

const (
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultDrainTimeout = 10 * time.Second
	DefaultQueueSize    = 64
)

// Coordinator routes commands to one actor per project, spawning actors on
// demand. It never touches project state itself.
type Coordinator struct {
	store        ports.Store
	executor     *executor.Executor
	broadcaster  ports.Broadcaster
	logger       *slog.Logger
	metrics      *metrics.Metrics
	idleTimeout  time.Duration
	drainTimeout time.Duration
	queueSize    int
	now          func() time.Time

	mu     sync.Mutex
	actors map[string]*actor
	closed bool
}

type Option func(*Coordinator)

func WithBroadcaster(b ports.Broadcaster) Option {
	return func(c *Coordinator) { c.broadcaster = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithIdleTimeout sets how long an actor without sessions or queued work
// stays alive. 0 keeps actors until Shutdown.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.idleTimeout = d }
}

// WithDrainTimeout bounds how long an idle actor spends on queued commands
// before it stops.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.drainTimeout = d }
}

// WithQueueSize sets the inbox capacity of each actor.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) { c.queueSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator. exec runs RefreshPlan commands.
func New(store ports.Store, exec *executor.Executor, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		executor:     exec,
		broadcaster:  ports.NopBroadcaster{},
		logger:       logging.NewNop(),
		idleTimeout:  DefaultIdleTimeout,
		drainTimeout: DefaultDrainTimeout,
		queueSize:    DefaultQueueSize,
		now:          time.Now,
		actors:       make(map[string]*actor),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNop()
	}
	if c.queueSize < 1 {
		c.queueSize = 1
	}
	return c
}

// Route forwards cmd to the actor of projectID and waits for its reply.
// A command rejected by an actor that is stopping is retried once on a
// fresh actor.
func (c *Coordinator) Route(ctx context.Context, projectID string, cmd Command) (*CommandResult, error) {
	if projectID == "" {
		return nil, errors.New("project id is required")
	}

	var lastErr error
	for range 2 {
		a, err := c.actorFor(projectID)
		if err != nil {
			return nil, err
		}
		res, err := a.ask(ctx, cmd)
		if errors.Is(err, domain.ErrActorStopped) {
			lastErr = err
			continue
		}
		return res, err
	}
	return nil, lastErr
}

// actorFor returns the running actor of a project or spawns one. A new
// actor replacing a stopping one waits for its predecessor to finish.
func (c *Coordinator) actorFor(projectID string) (*actor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrActorStopped
	}
	prev := c.actors[projectID]
	if prev != nil && prev.accepting() {
		return prev, nil
	}

	a := newActor(c, projectID, prev)
	c.actors[projectID] = a
	go a.run()
	return a, nil
}

// remove deregisters a stopped actor unless it was already replaced.
func (c *Coordinator) remove(projectID string, a *actor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.actors[projectID] == a {
		delete(c.actors, projectID)
	}
}

func (c *Coordinator) lookup(projectID string) *actor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actors[projectID]
}

// Health returns the cached health of a project's actor without blocking
// it. A project without an actor is reported inactive.
func (c *Coordinator) Health(projectID string) domain.Health {
	if a := c.lookup(projectID); a != nil {
		return a.health()
	}
	return domain.Health{ProjectID: projectID, State: domain.ActorInactive}
}

// Snapshot returns the last published snapshot of a project's actor.
func (c *Coordinator) Snapshot(projectID string) (*Snapshot, bool) {
	a := c.lookup(projectID)
	if a == nil {
		return nil, false
	}
	snap := a.snapshot.Load()
	return snap, snap != nil
}

// Projects lists the projects with a live actor.
func (c *Coordinator) Projects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.actors))
}

// Shutdown stops accepting commands and drains every actor. Commands still
// queued when ctx expires are answered with domain.ErrCancelled.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	actors := slices.Collect(maps.Values(c.actors))
	c.mu.Unlock()

	c.logger.Info("draining project actors", "count", len(actors))

	var wg sync.WaitGroup
	for _, a := range actors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.stop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}
