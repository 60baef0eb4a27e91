package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// NodeConfig is the typed configuration of a plan node.
// Implementations are limited to the types in this file.
type NodeConfig interface {
	Kind() NodeKind
	setDefaults()
}

// DataSetRole selects how a datasource's rows are interpreted.
type DataSetRole string

const (
	RoleAuto   DataSetRole = "auto"
	RoleNodes  DataSetRole = "nodes"
	RoleEdges  DataSetRole = "edges"
	RoleLayers DataSetRole = "layers"
)

// DataSetConfig maps the columns of a datasource onto graph fields.
type DataSetConfig struct {
	Source       string      `mapstructure:"source" json:"source" validate:"required"`
	Role         DataSetRole `mapstructure:"role" json:"role" validate:"omitempty,oneof=auto nodes edges layers"`
	IDColumn     string      `mapstructure:"id_column" json:"id_column"`
	LabelColumn  string      `mapstructure:"label_column" json:"label_column"`
	LayerColumn  string      `mapstructure:"layer_column" json:"layer_column"`
	WeightColumn string      `mapstructure:"weight_column" json:"weight_column"`
	SourceColumn string      `mapstructure:"source_column" json:"source_column"`
	TargetColumn string      `mapstructure:"target_column" json:"target_column"`
	ParentColumn string      `mapstructure:"parent_column" json:"parent_column"`
	ColorColumn  string      `mapstructure:"color_column" json:"color_column"`
}

func (*DataSetConfig) Kind() NodeKind { return KindDataSet }

func (c *DataSetConfig) setDefaults() {
	if c.Role == "" {
		c.Role = RoleAuto
	}
	setDefault(&c.IDColumn, "id")
	setDefault(&c.LabelColumn, "label")
	setDefault(&c.LayerColumn, "layer")
	setDefault(&c.WeightColumn, "weight")
	setDefault(&c.SourceColumn, "source")
	setDefault(&c.TargetColumn, "target")
	setDefault(&c.ParentColumn, "belongs_to")
	setDefault(&c.ColorColumn, "color")
}

// GraphConfig configures a GraphBuilder step.
type GraphConfig struct {
	Name string `mapstructure:"name" json:"name,omitempty"`
}

func (*GraphConfig) Kind() NodeKind { return KindGraph }
func (*GraphConfig) setDefaults()   {}

// MergeConfig configures a MergeBuilder step.
type MergeConfig struct {
	Name string `mapstructure:"name" json:"name,omitempty"`
}

func (*MergeConfig) Kind() NodeKind { return KindMerge }
func (*MergeConfig) setDefaults()   {}

// Transform operation names.
const (
	OpInvertEdges    = "invert_edges"
	OpAggregateEdges = "aggregate_edges"
	OpDropIsolated   = "drop_isolated"
	OpScaleWeights   = "scale_weights"
	OpSetAttribute   = "set_attribute"
)

// TransformOp is one step of a Transform node, applied in order.
type TransformOp struct {
	Op     string  `mapstructure:"op" json:"op" validate:"required,oneof=invert_edges aggregate_edges drop_isolated scale_weights set_attribute"`
	Factor float64 `mapstructure:"factor" json:"factor,omitempty" validate:"required_if=Op scale_weights"`
	Target string  `mapstructure:"target" json:"target,omitempty" validate:"omitempty,oneof=nodes edges"`
	Key    string  `mapstructure:"key" json:"key,omitempty" validate:"required_if=Op set_attribute"`
	Value  string  `mapstructure:"value" json:"value,omitempty"`
}

// TransformConfig configures a Transform step.
type TransformConfig struct {
	Operations []TransformOp `mapstructure:"operations" json:"operations" validate:"required,min=1,dive"`
}

func (*TransformConfig) Kind() NodeKind { return KindTransform }

func (c *TransformConfig) setDefaults() {
	for i := range c.Operations {
		if c.Operations[i].Op == OpSetAttribute && c.Operations[i].Target == "" {
			c.Operations[i].Target = "nodes"
		}
	}
}

// FilterConfig selects the subset of a graph to keep.
// All criteria are combined with AND.
type FilterConfig struct {
	IncludeLayers   []string          `mapstructure:"include_layers" json:"include_layers,omitempty"`
	ExcludeLayers   []string          `mapstructure:"exclude_layers" json:"exclude_layers,omitempty"`
	ExcludeNodes    []string          `mapstructure:"exclude_nodes" json:"exclude_nodes,omitempty"`
	MinWeight       *float64          `mapstructure:"min_weight" json:"min_weight,omitempty"`
	AttributeEquals map[string]string `mapstructure:"attribute_equals" json:"attribute_equals,omitempty"`
}

func (*FilterConfig) Kind() NodeKind { return KindFilter }
func (*FilterConfig) setDefaults()   {}

// GraphArtifactConfig configures a rendered view of a whole graph.
type GraphArtifactConfig struct {
	Format    string `mapstructure:"format" json:"format" validate:"oneof=mermaid dot json"`
	Direction string `mapstructure:"direction" json:"direction" validate:"oneof=TD LR BT RL"`
}

func (*GraphArtifactConfig) Kind() NodeKind { return KindGraphArtifact }

func (c *GraphArtifactConfig) setDefaults() {
	setDefault(&c.Format, "mermaid")
	setDefault(&c.Direction, "TD")
}

// TreeArtifactConfig configures a rendered view of the partition hierarchy.
type TreeArtifactConfig struct {
	Format string `mapstructure:"format" json:"format" validate:"oneof=text mermaid"`
}

func (*TreeArtifactConfig) Kind() NodeKind { return KindTreeArtifact }
func (c *TreeArtifactConfig) setDefaults() { setDefault(&c.Format, "text") }

// Projection modes.
const (
	ProjectPartition = "partition"
	ProjectLayer     = "layer"
)

// ProjectionConfig configures a Projection step.
type ProjectionConfig struct {
	Mode string `mapstructure:"mode" json:"mode" validate:"oneof=partition layer"`
}

func (*ProjectionConfig) Kind() NodeKind { return KindProjection }
func (c *ProjectionConfig) setDefaults() { setDefault(&c.Mode, ProjectPartition) }

// StorySequenceConfig names an ordered walk over graph edges.
type StorySequenceConfig struct {
	Name  string   `mapstructure:"name" json:"name" validate:"required"`
	Edges []string `mapstructure:"edges" json:"edges" validate:"required,min=1"`
}

// StoryConfig configures a Story step.
type StoryConfig struct {
	Name      string                `mapstructure:"name" json:"name,omitempty"`
	Sequences []StorySequenceConfig `mapstructure:"sequences" json:"sequences" validate:"required,min=1,dive"`
}

func (*StoryConfig) Kind() NodeKind { return KindStory }
func (*StoryConfig) setDefaults()   {}

// SequenceArtifactConfig configures a sequence chart rendering of a story.
type SequenceArtifactConfig struct {
	Title string `mapstructure:"title" json:"title,omitempty"`
}

func (*SequenceArtifactConfig) Kind() NodeKind { return KindSequenceArtifact }
func (*SequenceArtifactConfig) setDefaults()   {}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// NewConfig returns an empty config value for the kind.
func NewConfig(kind NodeKind) (NodeConfig, error) {
	switch kind {
	case KindDataSet:
		return &DataSetConfig{}, nil
	case KindGraph:
		return &GraphConfig{}, nil
	case KindMerge:
		return &MergeConfig{}, nil
	case KindTransform:
		return &TransformConfig{}, nil
	case KindFilter:
		return &FilterConfig{}, nil
	case KindGraphArtifact:
		return &GraphArtifactConfig{}, nil
	case KindTreeArtifact:
		return &TreeArtifactConfig{}, nil
	case KindProjection:
		return &ProjectionConfig{}, nil
	case KindStory:
		return &StoryConfig{}, nil
	case KindSequenceArtifact:
		return &SequenceArtifactConfig{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// DecodeConfig decodes a raw node config into its typed form,
// applies defaults and validates it.
func DecodeConfig(kind NodeKind, raw map[string]any) (NodeConfig, error) {
	cfg, err := NewConfig(kind)
	if err != nil {
		return nil, err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.setDefaults()

	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// DecodeConfig decodes the node's raw config into its typed form.
func (n PlanNode) DecodeConfig() (NodeConfig, error) {
	return DecodeConfig(n.Kind, n.Config)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
