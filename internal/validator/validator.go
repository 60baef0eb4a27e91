package validator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// Validate checks a plan DAG and returns a *domain.ValidationError listing
// every defect, or nil.
func Validate(dag domain.PlanDag) error {
	_, err := Compile(dag)
	return err
}

// ValidateDag returns every defect of the DAG, in check order.
func ValidateDag(dag domain.PlanDag) []domain.Defect {
	_, defects := check(dag)
	return defects
}

// Compile validates the DAG and returns the decoded config of every node.
func Compile(dag domain.PlanDag) (map[string]domain.NodeConfig, error) {
	configs, defects := check(dag)
	if len(defects) > 0 {
		return nil, &domain.ValidationError{Defects: defects}
	}
	return configs, nil
}

func check(dag domain.PlanDag) (map[string]domain.NodeConfig, []domain.Defect) {
	var defects []domain.Defect
	nodeDefect := func(id, format string, args ...any) {
		defects = append(defects, domain.Defect{NodeID: id, Message: fmt.Sprintf(format, args...)})
	}
	edgeDefect := func(e domain.PlanEdge, format string, args ...any) {
		defects = append(defects, domain.Defect{EdgeID: e.Key(), Message: fmt.Sprintf(format, args...)})
	}

	// 1. Nodes: ids and kinds
	kinds := make(map[string]domain.NodeKind, len(dag.Nodes))
	for i, n := range dag.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			defects = append(defects, domain.Defect{Message: fmt.Sprintf("node at index %d has an empty id", i)})
			continue
		}
		if _, dup := kinds[n.ID]; dup {
			nodeDefect(n.ID, "duplicate node id")
			continue
		}
		kinds[n.ID] = n.Kind
		if !n.Kind.Valid() {
			nodeDefect(n.ID, "unknown kind %q", n.Kind)
		}
	}

	// 2. Edges: references, self loops, duplicates
	var edges []domain.PlanEdge
	seenIDs := make(map[string]struct{}, len(dag.Edges))
	seenPairs := make(map[[2]string]struct{}, len(dag.Edges))
	for _, e := range dag.Edges {
		ok := true
		if _, known := kinds[e.Source]; !known {
			edgeDefect(e, "source %q does not exist", e.Source)
			ok = false
		}
		if _, known := kinds[e.Target]; !known {
			edgeDefect(e, "target %q does not exist", e.Target)
			ok = false
		}
		if !ok {
			continue
		}
		if e.Source == e.Target {
			edgeDefect(e, "self loop on %s", e.Source)
			continue
		}
		pair := [2]string{e.Source, e.Target}
		if _, dup := seenPairs[pair]; dup {
			edgeDefect(e, "duplicate edge %s -> %s", e.Source, e.Target)
			continue
		}
		if e.ID != "" {
			if _, dup := seenIDs[e.ID]; dup {
				edgeDefect(e, "duplicate edge id")
				continue
			}
			seenIDs[e.ID] = struct{}{}
		}
		seenPairs[pair] = struct{}{}
		edges = append(edges, e)
	}

	// 3. Cycles
	if cycle := findCycle(dag.Nodes, edges); cycle != nil {
		defects = append(defects, domain.Defect{
			NodeID:  cycle[0],
			Message: "cycle: " + strings.Join(cycle, " -> "),
		})
	}

	// 4. Slot compatibility
	inputs := make(map[string]int, len(kinds))
	for _, e := range edges {
		src, dst := kinds[e.Source], kinds[e.Target]
		if !src.Valid() || !dst.Valid() {
			continue
		}
		inputs[e.Target]++
		accepts := dst.Input().Accepts
		if accepts == domain.DataNone {
			edgeDefect(e, "%s nodes accept no inputs", dst)
			continue
		}
		if produced := src.Output(); produced != accepts {
			edgeDefect(e, "%s output (%s) cannot feed %s input (%s)", src, produced, dst, accepts)
		}
	}

	// 5. Arity
	for _, n := range dag.Nodes {
		kind, ok := kinds[n.ID]
		if !ok || kind != n.Kind || !kind.Valid() {
			continue
		}
		spec := kind.Input()
		count := inputs[n.ID]
		switch {
		case count < spec.Min && spec.Min == spec.Max:
			nodeDefect(n.ID, "%s requires exactly %d input(s), has %d", kind, spec.Min, count)
		case count < spec.Min:
			nodeDefect(n.ID, "%s requires at least %d input(s), has %d", kind, spec.Min, count)
		case spec.Max != domain.Unbounded && count > spec.Max:
			nodeDefect(n.ID, "%s accepts at most %d input(s), has %d", kind, spec.Max, count)
		}
	}

	// 6. Configs
	configs := make(map[string]domain.NodeConfig, len(dag.Nodes))
	for _, n := range dag.Nodes {
		kind, ok := kinds[n.ID]
		if !ok || kind != n.Kind || !kind.Valid() {
			continue
		}
		if _, done := configs[n.ID]; done {
			continue
		}
		cfg, err := n.DecodeConfig()
		if err != nil {
			nodeDefect(n.ID, "%s", strings.TrimPrefix(err.Error(), domain.ErrInvalidConfig.Error()+": "))
			continue
		}
		configs[n.ID] = cfg
	}

	return configs, defects
}

// findCycle runs an iterative DFS with colour marks and returns the first
// cycle found as a closed path ("a", "b", "a"), or nil.
// Roots and neighbours are visited in node declaration order.
func findCycle(nodes []domain.PlanNode, edges []domain.PlanEdge) []string {
	order := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, ok := order[n.ID]; !ok {
			order[n.ID] = i
		}
	}
	adj := make(map[string][]string, len(order))
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	for id := range adj {
		slices.SortFunc(adj[id], func(a, b string) int { return order[a] - order[b] })
	}

	const (
		white uint8 = iota
		grey
		black
	)
	colour := make(map[string]uint8, len(order))

	type frame struct {
		id   string
		next int
	}

	for _, root := range nodes {
		if colour[root.ID] != white {
			continue
		}
		stack := []frame{{id: root.ID}}
		colour[root.ID] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(adj[top.id]) {
				colour[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := adj[top.id][top.next]
			top.next++

			switch colour[child] {
			case white:
				colour[child] = grey
				stack = append(stack, frame{id: child})
			case grey:
				var path []string
				for i := len(stack) - 1; i >= 0; i-- {
					path = append(path, stack[i].id)
					if stack[i].id == child {
						break
					}
				}
				slices.Reverse(path)
				return append(path, child)
			}
		}
	}
	return nil
}

// Defects extracts the defect list from a validation error.
func Defects(err error) []domain.Defect {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Defects
	}
	return nil
}
