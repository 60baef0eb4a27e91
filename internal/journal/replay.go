package journal

import (
	"cmp"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// ReplayResult is the outcome of folding a journal over a graph.
type ReplayResult struct {
	Graph      *domain.Graph
	Applied    []domain.GraphEdit
	Superseded []domain.GraphEdit
	Orphans    []domain.ReplayOrphan
}

// Replay folds edits over a copy of base in sequence order. base is not
// modified.
//
// A create of an existing element and a delete of a missing one are no-ops.
// An update whose target is missing becomes an orphan. Creates and updates
// of an element deleted later in the list are superseded, as are updates
// overwritten by a later update of the same field.
//
// Edits undone by a later node delete take their eventual effect at once:
// an edge that will lose an endpoint is dropped and a partition link to the
// deleted node is cleared. Replaying the same edits over the result thus
// yields the same graph.
func Replay(base *domain.Graph, edits []domain.GraphEdit) ReplayResult {
	g := base.Clone()
	if g == nil {
		g = domain.NewGraph("")
	}

	ordered := slices.Clone(edits)
	slices.SortStableFunc(ordered, func(a, b domain.GraphEdit) int {
		return cmp.Compare(a.SequenceNumber, b.SequenceNumber)
	})
	skip := superseded(ordered)
	later := newCascade(ordered)

	res := ReplayResult{Graph: g}
	for i, edit := range ordered {
		if edit.SequenceNumber > g.LastEditSequence {
			g.LastEditSequence = edit.SequenceNumber
		}
		effect, fate := later.fate(g, i, edit)
		if skip[i] || fate == dropped {
			res.Superseded = append(res.Superseded, edit)
			continue
		}
		if fate == detached {
			g.RemoveEdge(edit.TargetID)
			res.Superseded = append(res.Superseded, edit)
			continue
		}

		err := Apply(g, effect)
		switch {
		case err == nil:
		case edit.Operation == domain.OpCreate && errors.Is(err, domain.ErrTargetExists):
		case edit.Operation == domain.OpDelete && errors.Is(err, domain.ErrTargetNotFound):
		default:
			res.Orphans = append(res.Orphans, orphan(edit, err))
			continue
		}
		edit.Applied = true
		res.Applied = append(res.Applied, edit)
	}

	g.HasPendingEdits = len(res.Orphans) > 0
	return res
}

// superseded marks edits made redundant by a later edit in the list.
// It scans backwards, remembering deleted targets and updated fields.
func superseded(edits []domain.GraphEdit) []bool {
	type fieldKey struct{ target, field string }

	skip := make([]bool, len(edits))
	deleted := make(map[string]bool)
	updated := make(map[fieldKey]bool)

	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		key := e.TargetKey()
		switch e.Operation {
		case domain.OpCreate:
			skip[i] = deleted[key]
		case domain.OpUpdate:
			fk := fieldKey{key, e.FieldName}
			skip[i] = deleted[key] || updated[fk]
			updated[fk] = true
		case domain.OpDelete:
			deleted[key] = true
		}
	}
	return skip
}

type outcome int

const (
	// kept edits are applied as returned by cascade.fate.
	kept outcome = iota
	// dropped edits create an edge that a later node delete removes.
	dropped
	// detached edits update an edge that a later node delete removes, so
	// the edge goes now.
	detached
)

// cascade tracks the node deletes of an edit list, so that an edit can be
// matched against the deletes that follow it.
type cascade struct {
	deletes   map[string][]int     // node -> indexes of its deletes
	rewires   map[string][]int     // edge.field -> indexes of source/target updates
	endpoints map[string][2]string // edge -> endpoints seen in creates and rewires
}

func newCascade(edits []domain.GraphEdit) *cascade {
	c := &cascade{
		deletes:   make(map[string][]int),
		rewires:   make(map[string][]int),
		endpoints: make(map[string][2]string),
	}
	for i, e := range edits {
		switch {
		case e.TargetType == domain.TargetNode && e.Operation == domain.OpDelete:
			c.deletes[e.TargetID] = append(c.deletes[e.TargetID], i)
		case e.TargetType == domain.TargetEdge && e.Operation == domain.OpUpdate && isEndpoint(e.FieldName):
			k := e.TargetID + "." + e.FieldName
			c.rewires[k] = append(c.rewires[k], i)
		}
	}
	return c
}

func isEndpoint(field string) bool { return field == "source" || field == "target" }

// fate decides how the edit at index i is replayed over g.
func (c *cascade) fate(g *domain.Graph, i int, e domain.GraphEdit) (domain.GraphEdit, outcome) {
	switch {
	case e.TargetType == domain.TargetEdge && e.Operation == domain.OpCreate:
		var v domain.GraphEdge
		if len(e.NewValue) == 0 || json.Unmarshal(e.NewValue, &v) != nil {
			return e, kept
		}
		c.endpoints[e.TargetID] = [2]string{v.Source, v.Target}
		if c.loses(e.TargetID, "source", v.Source, i) || c.loses(e.TargetID, "target", v.Target, i) {
			return e, dropped
		}

	case e.TargetType == domain.TargetEdge && e.Operation == domain.OpUpdate:
		src, tgt := c.edgeEndpoints(g, e.TargetID)
		switch e.FieldName {
		case "source":
			src, _ = decodeString(e.NewValue)
		case "target":
			tgt, _ = decodeString(e.NewValue)
		}
		if isEndpoint(e.FieldName) {
			c.endpoints[e.TargetID] = [2]string{src, tgt}
		}
		if c.loses(e.TargetID, "source", src, i) || c.loses(e.TargetID, "target", tgt, i) {
			return e, detached
		}

	case e.TargetType == domain.TargetNode && e.Operation == domain.OpUpdate && e.FieldName == "belongs_to":
		parent, err := decodeString(e.NewValue)
		if err == nil && parent != "" {
			if _, ok := c.deletedAfter(parent, i); ok {
				e.NewValue = json.RawMessage("null")
			}
		}
	}
	return e, kept
}

// loses reports whether node, held as field of edge from index i on, is
// deleted before the edge is rewired away from it.
func (c *cascade) loses(edge, field, node string, i int) bool {
	if node == "" {
		return false
	}
	d, ok := c.deletedAfter(node, i)
	if !ok {
		return false
	}
	for _, r := range c.rewires[edge+"."+field] {
		if r > i && r < d {
			return false
		}
	}
	return true
}

func (c *cascade) deletedAfter(node string, i int) (int, bool) {
	for _, d := range c.deletes[node] {
		if d > i {
			return d, true
		}
	}
	return 0, false
}

// edgeEndpoints resolves an edge from the graph, then from earlier edits,
// then from the source->target ID convention.
func (c *cascade) edgeEndpoints(g *domain.Graph, id string) (string, string) {
	if i := g.EdgeIndex(id); i >= 0 {
		return g.Edges[i].Source, g.Edges[i].Target
	}
	if ep, ok := c.endpoints[id]; ok {
		return ep[0], ep[1]
	}
	if src, tgt, ok := strings.Cut(id, "->"); ok {
		return src, tgt
	}
	return "", ""
}

func orphan(edit domain.GraphEdit, err error) domain.ReplayOrphan {
	reason := domain.OrphanInvalid
	var conflict *domain.MergeConflict
	switch {
	case errors.As(err, &conflict):
		reason = domain.OrphanConflict
	case errors.Is(err, domain.ErrTargetNotFound):
		reason = domain.OrphanTargetMissing
	}
	return domain.ReplayOrphan{Edit: edit, Reason: reason, Detail: err.Error()}
}
