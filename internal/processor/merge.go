package processor

import (
	"errors"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// MergeGraphs unions graphs in declared order. Elements are matched by ID;
// non-empty fields and attributes of later graphs win.
func MergeGraphs(id string, graphs []*domain.Graph) (*domain.Graph, error) {
	a := newAssembler(id)
	for _, g := range graphs {
		for _, n := range g.Nodes {
			a.putNode(n, false)
		}
		for _, e := range g.Edges {
			a.putEdge(e, false)
		}
		for _, l := range g.Layers {
			a.putLayer(l, false)
		}
	}

	out := a.graph()
	if err := out.CheckPartitions(); err != nil {
		conflict := &domain.MergeConflict{Reason: err.Error(), Err: err}
		if errors.Is(err, domain.ErrPartitionCycle) {
			// "partition cycle: a -> b -> a"
			if _, path, ok := strings.Cut(err.Error(), ": "); ok {
				conflict.NodeID, _, _ = strings.Cut(path, " -> ")
			}
		}
		return nil, conflict
	}
	if err := out.CheckEdges(); err != nil {
		return nil, &domain.MergeConflict{Reason: err.Error(), Err: err}
	}
	return out, nil
}
