package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/strata/pkg/domain"
)

// Combine fans every event out to each of hooks, in argument order.
// Nil callbacks are skipped.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var starts, finishes []func(context.Context, *domain.NodeEvent)
	var runs []func(context.Context, *domain.RunEvent)
	for _, h := range hooks {
		if h.OnNodeStart != nil {
			starts = append(starts, h.OnNodeStart)
		}
		if h.OnNodeFinish != nil {
			finishes = append(finishes, h.OnNodeFinish)
		}
		if h.OnRunFinish != nil {
			runs = append(runs, h.OnRunFinish)
		}
	}

	var out domain.LifecycleHooks
	if len(starts) > 0 {
		out.OnNodeStart = func(ctx context.Context, e *domain.NodeEvent) {
			for _, fn := range starts {
				fn(ctx, e)
			}
		}
	}
	if len(finishes) > 0 {
		out.OnNodeFinish = func(ctx context.Context, e *domain.NodeEvent) {
			for _, fn := range finishes {
				fn(ctx, e)
			}
		}
	}
	if len(runs) > 0 {
		out.OnRunFinish = func(ctx context.Context, e *domain.RunEvent) {
			for _, fn := range runs {
				fn(ctx, e)
			}
		}
	}
	return out
}

// LoggingHooks logs node transitions at debug level and run results at info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStart: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "Node started", "run_id", e.RunID, "node_id", e.NodeID, "kind", e.Kind)
		},
		OnNodeFinish: func(ctx context.Context, e *domain.NodeEvent) {
			attrs := []any{"run_id", e.RunID, "node_id", e.NodeID, "status", e.Status}
			if e.Reason != "" {
				attrs = append(attrs, "reason", e.Reason)
			}
			logger.DebugContext(ctx, "Node finished", attrs...)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			if e.Result == nil {
				return
			}
			logger.InfoContext(ctx, "Run finished",
				"run_id", e.RunID,
				"plan_id", e.PlanID,
				"status", e.Result.Status,
				"succeeded", e.Result.Succeeded,
				"failed", e.Result.Failed,
				"skipped", e.Result.Skipped,
			)
		},
	}
}
