package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for strata.
type Metrics struct {
	// Executor metrics
	NodeExecutions *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec
	Runs           *prometheus.CounterVec

	// Collaboration metrics
	ActorCommands *prometheus.CounterVec
	ActiveActors  prometheus.Gauge

	// Journal metrics
	JournalAppends prometheus.Counter
	ReplayOrphans  prometheus.Counter
}

// New creates a Metrics instance with all metrics registered on registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		NodeExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_node_executions_total",
				Help: "Total number of finished plan node executions",
			},
			[]string{"kind", "status"},
		),
		NodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strata_node_duration_seconds",
				Help:    "Plan node processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_runs_total",
				Help: "Total number of plan runs by outcome",
			},
			[]string{"status"},
		),

		ActorCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_actor_commands_total",
				Help: "Total number of project actor commands by result",
			},
			[]string{"command", "result"},
		),
		ActiveActors: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "strata_active_actors",
				Help: "Number of running project actors",
			},
		),

		JournalAppends: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "strata_journal_appends_total",
				Help: "Total number of graph edits appended to journals",
			},
		),
		ReplayOrphans: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "strata_replay_orphans_total",
				Help: "Total number of edits orphaned by journal replay",
			},
		),
	}
}

// NewNop returns metrics registered on a private registry, for components
// that were not given one.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Command result labels.
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)
