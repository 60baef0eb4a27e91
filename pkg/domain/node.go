package domain

// Position is the editor layout of a plan node. The executor ignores it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// PlanNode is a single typed step of a plan DAG.
type PlanNode struct {
	ID   string   `json:"id" yaml:"id"`
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Config is the raw kind-specific configuration.
	// Use DecodeConfig to obtain the typed NodeConfig.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	Position Position `json:"position" yaml:"position,omitempty"`
}

// PlanEdge connects the output of Source to the input of Target.
type PlanEdge struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Key returns the edge ID, or a derived "source->target" key when none was given.
func (e PlanEdge) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Source + "->" + e.Target
}

// PlanDag is the user-authored processing graph of a plan.
// The order of Edges is significant: it is the declared input order
// of every node that has more than one input.
type PlanDag struct {
	Nodes []PlanNode `json:"nodes" yaml:"nodes"`
	Edges []PlanEdge `json:"edges" yaml:"edges"`
}

// Node returns the node with the given ID.
func (d *PlanDag) Node(id string) (PlanNode, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return PlanNode{}, false
}

// Inputs returns the IDs of the nodes feeding id, in declared order.
func (d *PlanDag) Inputs(id string) []string {
	var ids []string
	for _, e := range d.Edges {
		if e.Target == id {
			ids = append(ids, e.Source)
		}
	}
	return ids
}

// Terminal reports whether no edge leaves the node.
func (d *PlanDag) Terminal(id string) bool {
	for _, e := range d.Edges {
		if e.Source == id {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the DAG.
func (d PlanDag) Clone() PlanDag {
	out := PlanDag{
		Nodes: make([]PlanNode, len(d.Nodes)),
		Edges: append([]PlanEdge(nil), d.Edges...),
	}
	for i, n := range d.Nodes {
		n.Config = cloneAnyMap(n.Config)
		out.Nodes[i] = n
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAnyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneAny(item)
		}
		return out
	}
	return v
}

// PlanStatus mirrors the outcome of the last run of a plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanReady     PlanStatus = "ready"
	PlanRunning   PlanStatus = "running"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// Plan is a named, versioned plan DAG owned by a project.
type Plan struct {
	ID        string     `json:"id" yaml:"id"`
	ProjectID string     `json:"project_id" yaml:"project_id"`
	Name      string     `json:"name,omitempty" yaml:"name,omitempty"`
	Dag       PlanDag    `json:"dag" yaml:"dag"`
	Status    PlanStatus `json:"status,omitempty" yaml:"status,omitempty"`

	// Version is the optimistic-concurrency counter.
	// Every accepted DAG mutation increments it by exactly one.
	Version int64 `json:"version" yaml:"version,omitempty"`
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.Dag = p.Dag.Clone()
	return &out
}

// GraphID returns the ID of the graph computed by nodeID within this plan.
func (p *Plan) GraphID(nodeID string) string {
	return GraphIDFor(p.ID, nodeID)
}

// GraphIDFor returns the ID of the graph computed by nodeID within planID.
func GraphIDFor(planID, nodeID string) string {
	return planID + "/" + nodeID
}
