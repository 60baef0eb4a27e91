package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/compiler"
	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/internal/validator"
	"github.com/aretw0/strata/pkg/domain"
)

// RunOptions contains the configuration of the run command.
type RunOptions struct {
	PlanPath   string
	SourcesDir string
	OutDir     string
	BatchSize  int
	Watch      bool
	Debug      bool

	// Debounce is how long Watch waits for more changes before re-running.
	Debounce time.Duration

	// Mermaid prints the plan annotated with node status after each run.
	Mermaid bool
}

// ErrRunFailed is returned when a run finished with failed nodes.
var ErrRunFailed = errors.New("run failed")

// Run executes a plan file once, or keeps re-executing it on changes when
// opts.Watch is set.
func Run(ctx context.Context, opts RunOptions, out io.Writer, logger *slog.Logger) error {
	if opts.Watch {
		return Watch(ctx, opts, out, logger)
	}
	_, err := RunOnce(ctx, opts, out, logger)
	return err
}

// RunOnce parses, validates and executes the plan file.
func RunOnce(ctx context.Context, opts RunOptions, out io.Writer, logger *slog.Logger) (*domain.RunResult, error) {
	plan, err := compiler.NewParser().ParseFile(opts.PlanPath)
	if err != nil {
		return nil, err
	}

	engine := createEngine(opts, logger)
	defer engine.Close(context.WithoutCancel(ctx))

	if err := engine.Validate(plan.Dag); err != nil {
		return nil, err
	}

	logger.Info("Executing plan", "plan_id", plan.ID, "nodes", len(plan.Dag.Nodes))
	res, err := engine.Execute(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("execute plan %s: %w", plan.ID, err)
	}

	printReport(out, res)
	if opts.Mermaid {
		overlay := &graph.PlanOverlay{Status: make(map[string]domain.ExecutionStatus, len(res.States))}
		for _, st := range res.States {
			overlay.Status[st.NodeID] = st.Status
		}
		fmt.Fprint(out, graph.GeneratePlanMermaid(plan.Dag, overlay))
	}

	if res.Status == domain.RunFailed {
		return res, ErrRunFailed
	}
	return res, nil
}

// Validate parses a plan file and reports every defect of its DAG.
func Validate(path string, out io.Writer) error {
	plan, err := compiler.NewParser().ParseFile(path)
	if err != nil {
		return err
	}

	err = validator.Validate(plan.Dag)
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		for _, d := range verr.Defects {
			fmt.Fprintf(out, "  - %s\n", d)
		}
	}
	return err
}

// PrintGraph writes the plan DAG of a plan file as a Mermaid flowchart.
func PrintGraph(path string, out io.Writer) error {
	plan, err := compiler.NewParser().ParseFile(path)
	if err != nil {
		return err
	}
	fmt.Fprint(out, graph.GeneratePlanMermaid(plan.Dag, nil))
	return nil
}
