package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Request is everything a processor needs to compute one node.
// Inputs are the upstream outputs in declared input order.
type Request struct {
	PlanID string
	NodeID string
	Config domain.NodeConfig
	Inputs []domain.Output
}

// GraphID returns the ID a graph produced by this request carries.
func (r Request) GraphID() string {
	return domain.GraphIDFor(r.PlanID, r.NodeID)
}

// Processor computes the output of a node.
type Processor interface {
	Process(ctx context.Context, req Request) (domain.Output, error)
}

// Dispatcher routes each request to the processor of its config type.
type Dispatcher struct {
	rows   ports.RowSource
	logger *slog.Logger
}

var _ Processor = (*Dispatcher)(nil)

type Option func(*Dispatcher)

// WithLogger sets the logger used for import diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher. rows feeds DataSet nodes.
func New(rows ports.RowSource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		rows:   rows,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Process dispatches on the config type. Every failure is returned as a
// *domain.ProcessorError naming the node.
func (d *Dispatcher) Process(ctx context.Context, req Request) (domain.Output, error) {
	out, err := d.dispatch(ctx, req)
	if err != nil {
		var kind domain.NodeKind
		if req.Config != nil {
			kind = req.Config.Kind()
		}
		return domain.Output{}, &domain.ProcessorError{NodeID: req.NodeID, Kind: kind, Err: err}
	}
	return out, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (domain.Output, error) {
	switch cfg := req.Config.(type) {
	case *domain.DataSetConfig:
		ds, err := d.importDataset(ctx, cfg)
		if err != nil {
			return domain.Output{}, err
		}
		if len(ds.Malformed) > 0 {
			d.logger.Warn("rows rejected during import",
				"node", req.NodeID, "source", ds.Source, "count", len(ds.Malformed))
		}
		return domain.DatasetOutput(ds), nil

	case *domain.GraphConfig:
		datasets, err := datasetInputs(req.Inputs)
		if err != nil {
			return domain.Output{}, err
		}
		g, err := BuildGraph(req.GraphID(), datasets)
		if err != nil {
			return domain.Output{}, err
		}
		return domain.GraphOutput(g), nil

	case *domain.MergeConfig:
		graphs, err := graphInputs(req.Inputs)
		if err != nil {
			return domain.Output{}, err
		}
		g, err := MergeGraphs(req.GraphID(), graphs)
		if err != nil {
			return domain.Output{}, err
		}
		return domain.GraphOutput(g), nil

	case *domain.TransformConfig:
		g, err := singleGraph(req.Inputs)
		if err != nil {
			return domain.Output{}, err
		}
		out, err := Transform(req.GraphID(), g, cfg)
		if err != nil {
			return domain.Output{}, err
		}
		return domain.GraphOutput(out), nil

	case *domain.FilterConfig:
		g, err := singleGraph(req.Inputs)
		if err != nil {
			return domain.Output{}, err
		}
		return domain.GraphOutput(Filter(req.GraphID(), g, cfg)), nil

	case *domain.ProjectionConfig:
		g, err := singleGraph(req.Inputs)
		if err != nil {
			return domain.Output{}, err
		}
		out, err := Project(req.GraphID(), g, cfg)
		if err != nil {
			return domain.Output{}, err
		}
		return domain.GraphOutput(out), nil

	case *domain.StoryConfig:
		g, err := singleGraph(req.Inputs)
		if err != nil {
			return domain.Output{}, err
		}
		s, err := BuildStory(g, cfg)
		if err != nil {
			return domain.Output{}, err
		}
		return domain.StoryOutput(s), nil

	case *domain.GraphArtifactConfig:
		g, err := singleGraph(req.Inputs)
		if err != nil {
			return domain.Output{}, err
		}
		a, err := RenderGraph(req.NodeID, g, cfg)
		if err != nil {
			return domain.Output{}, err
		}
		return domain.ArtifactOutput(a), nil

	case *domain.TreeArtifactConfig:
		g, err := singleGraph(req.Inputs)
		if err != nil {
			return domain.Output{}, err
		}
		return domain.ArtifactOutput(RenderTree(req.NodeID, g, cfg)), nil

	case *domain.SequenceArtifactConfig:
		if len(req.Inputs) != 1 || req.Inputs[0].Kind != domain.DataStory || req.Inputs[0].Story == nil {
			return domain.Output{}, errInput(domain.DataStory, req.Inputs)
		}
		return domain.ArtifactOutput(RenderSequence(req.NodeID, req.Inputs[0].Story, cfg)), nil

	case nil:
		return domain.Output{}, errors.New("missing node config")
	}
	return domain.Output{}, fmt.Errorf("%w: %T", domain.ErrUnknownKind, req.Config)
}

func errInput(want domain.DataKind, inputs []domain.Output) error {
	got := make([]domain.DataKind, len(inputs))
	for i, in := range inputs {
		got[i] = in.Kind
	}
	return fmt.Errorf("expected %s input(s), got %v", want, got)
}

func datasetInputs(inputs []domain.Output) ([]*domain.Dataset, error) {
	if len(inputs) == 0 {
		return nil, errInput(domain.DataDataset, inputs)
	}
	out := make([]*domain.Dataset, len(inputs))
	for i, in := range inputs {
		if in.Kind != domain.DataDataset || in.Dataset == nil {
			return nil, errInput(domain.DataDataset, inputs)
		}
		out[i] = in.Dataset
	}
	return out, nil
}

func graphInputs(inputs []domain.Output) ([]*domain.Graph, error) {
	if len(inputs) == 0 {
		return nil, errInput(domain.DataGraph, inputs)
	}
	out := make([]*domain.Graph, len(inputs))
	for i, in := range inputs {
		if in.Kind != domain.DataGraph || in.Graph == nil {
			return nil, errInput(domain.DataGraph, inputs)
		}
		out[i] = in.Graph
	}
	return out, nil
}

func singleGraph(inputs []domain.Output) (*domain.Graph, error) {
	graphs, err := graphInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(graphs) != 1 {
		return nil, errInput(domain.DataGraph, inputs)
	}
	return graphs[0], nil
}
