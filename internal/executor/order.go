package executor

import (
	"container/heap"

	"github.com/aretw0/strata/pkg/domain"
)

// idHeap is a min-heap of node IDs.
type idHeap []string

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopologicalOrder returns the node IDs of an acyclic DAG in Kahn order.
// Among ready nodes the smallest ID goes first, so the order is stable
// for a given DAG regardless of declaration order.
func TopologicalOrder(dag domain.PlanDag) []string {
	indegree := make(map[string]int, len(dag.Nodes))
	downstream := make(map[string][]string, len(dag.Nodes))
	for _, n := range dag.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range dag.Edges {
		indegree[e.Target]++
		downstream[e.Source] = append(downstream[e.Source], e.Target)
	}

	ready := &idHeap{}
	for _, n := range dag.Nodes {
		if indegree[n.ID] == 0 {
			*ready = append(*ready, n.ID)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(dag.Nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for _, next := range downstream[id] {
			indegree[next]--
			if indegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}
	return order
}
