package dto

import "github.com/aretw0/strata/pkg/domain"

// PlanFile is the on-disk form of a plan.
// Edges may be listed explicitly or derived from the from/to keys of nodes.
type PlanFile struct {
	ID        string      `yaml:"id"`
	ProjectID string      `yaml:"project"`
	Name      string      `yaml:"name"`
	Nodes     []NodeEntry `yaml:"nodes"`
	Edges     []EdgeEntry `yaml:"edges"`
}

type NodeEntry struct {
	ID       string          `yaml:"id"`
	Kind     domain.NodeKind `yaml:"kind"`
	Config   map[string]any  `yaml:"config"`
	Position domain.Position `yaml:"position"`

	// From lists upstream nodes, To downstream ones.
	From []string `yaml:"from"`
	To   []string `yaml:"to"`
}

type EdgeEntry struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}
