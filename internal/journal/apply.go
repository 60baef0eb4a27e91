package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// Apply applies one edit to g in place. On error g is left unchanged.
//
// Errors wrap domain.ErrTargetNotFound, domain.ErrTargetExists or
// domain.ErrInvalidEdit, or are a *domain.MergeConflict when a partition
// change would close a cycle.
func Apply(g *domain.Graph, edit domain.GraphEdit) error {
	if err := Check(edit); err != nil {
		return err
	}
	switch edit.Operation {
	case domain.OpCreate:
		return create(g, edit)
	case domain.OpUpdate:
		return update(g, edit)
	default:
		return remove(g, edit)
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrTargetNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidEdit, fmt.Sprintf(format, args...))
}

// decodeElement reads the element carried by a create edit. An ID inside
// the value must agree with the edit target.
func decodeElement[T any](edit domain.GraphEdit, v *T, id func(*T) *string) error {
	if len(edit.NewValue) > 0 && !isNull(edit.NewValue) {
		if err := json.Unmarshal(edit.NewValue, v); err != nil {
			return invalid("%s %s: %v", edit.TargetType, edit.TargetID, err)
		}
	}
	p := id(v)
	if *p != "" && *p != edit.TargetID {
		return invalid("value id %q does not match target %q", *p, edit.TargetID)
	}
	*p = edit.TargetID
	return nil
}

func create(g *domain.Graph, edit domain.GraphEdit) error {
	id := edit.TargetID
	switch edit.TargetType {
	case domain.TargetNode:
		if g.NodeIndex(id) >= 0 {
			return fmt.Errorf("node %s: %w", id, domain.ErrTargetExists)
		}
		var n domain.GraphNode
		if err := decodeElement(edit, &n, func(n *domain.GraphNode) *string { return &n.ID }); err != nil {
			return err
		}
		if n.BelongsTo == id {
			return &domain.MergeConflict{NodeID: id, Reason: "node cannot belong to itself"}
		}
		if n.BelongsTo != "" && g.NodeIndex(n.BelongsTo) < 0 {
			return notFound("parent", n.BelongsTo)
		}
		g.Nodes = insertSorted(g.Nodes, n, func(n domain.GraphNode) string { return n.ID })

	case domain.TargetEdge:
		if g.EdgeIndex(id) >= 0 {
			return fmt.Errorf("edge %s: %w", id, domain.ErrTargetExists)
		}
		var e domain.GraphEdge
		if err := decodeElement(edit, &e, func(e *domain.GraphEdge) *string { return &e.ID }); err != nil {
			return err
		}
		if e.Source == "" || e.Target == "" {
			return invalid("edge %s needs a source and a target", id)
		}
		if err := checkEndpoints(g, e); err != nil {
			return err
		}
		g.Edges = insertSorted(g.Edges, e, func(e domain.GraphEdge) string { return e.ID })

	case domain.TargetLayer:
		if g.LayerIndex(id) >= 0 {
			return fmt.Errorf("layer %s: %w", id, domain.ErrTargetExists)
		}
		var l domain.GraphLayer
		if err := decodeElement(edit, &l, func(l *domain.GraphLayer) *string { return &l.ID }); err != nil {
			return err
		}
		g.Layers = insertSorted(g.Layers, l, func(l domain.GraphLayer) string { return l.ID })
	}
	return nil
}

func update(g *domain.Graph, edit domain.GraphEdit) error {
	id, field, raw := edit.TargetID, edit.FieldName, edit.NewValue

	switch edit.TargetType {
	case domain.TargetNode:
		i := g.NodeIndex(id)
		if i < 0 {
			return notFound("node", id)
		}
		n := g.Nodes[i]
		var err error
		switch field {
		case "label":
			n.Label, err = decodeString(raw)
		case "layer":
			n.Layer, err = decodeString(raw)
		case "weight":
			n.Weight, err = decodeFloat(raw)
		case "belongs_to":
			n.BelongsTo, err = decodeString(raw)
			if err == nil && n.BelongsTo != "" {
				err = checkParent(g, id, n.BelongsTo)
			}
		default:
			n.Attributes, err = setAttribute(n.Attributes, field, raw)
		}
		if err != nil {
			return err
		}
		g.Nodes[i] = n

	case domain.TargetEdge:
		i := g.EdgeIndex(id)
		if i < 0 {
			return notFound("edge", id)
		}
		e := g.Edges[i]
		var err error
		switch field {
		case "label":
			e.Label, err = decodeString(raw)
		case "layer":
			e.Layer, err = decodeString(raw)
		case "weight":
			e.Weight, err = decodeFloat(raw)
		case "source", "target":
			var v string
			if v, err = decodeString(raw); err == nil {
				if field == "source" {
					e.Source = v
				} else {
					e.Target = v
				}
				err = checkEndpoints(g, e)
			}
		default:
			e.Attributes, err = setAttribute(e.Attributes, field, raw)
		}
		if err != nil {
			return err
		}
		g.Edges[i] = e

	case domain.TargetLayer:
		i := g.LayerIndex(id)
		if i < 0 {
			return notFound("layer", id)
		}
		l := g.Layers[i]
		var err error
		switch field {
		case "label":
			l.Label, err = decodeString(raw)
		case "color":
			l.Color, err = decodeString(raw)
		default:
			l.Attributes, err = setAttribute(l.Attributes, field, raw)
		}
		if err != nil {
			return err
		}
		g.Layers[i] = l
	}
	return nil
}

func remove(g *domain.Graph, edit domain.GraphEdit) error {
	var ok bool
	switch edit.TargetType {
	case domain.TargetNode:
		ok = g.RemoveNode(edit.TargetID)
	case domain.TargetEdge:
		ok = g.RemoveEdge(edit.TargetID)
	case domain.TargetLayer:
		ok = g.RemoveLayer(edit.TargetID)
	}
	if !ok {
		return notFound(string(edit.TargetType), edit.TargetID)
	}
	return nil
}

func checkEndpoints(g *domain.Graph, e domain.GraphEdge) error {
	if e.Source == "" || e.Target == "" {
		return invalid("edge %s needs a source and a target", e.ID)
	}
	if g.NodeIndex(e.Source) < 0 {
		return notFound("source node", e.Source)
	}
	if g.NodeIndex(e.Target) < 0 {
		return notFound("target node", e.Target)
	}
	return nil
}

// checkParent rejects a parent that is missing or that descends from child.
// It walks the ancestors of parent iteratively, bounded by the node count.
func checkParent(g *domain.Graph, child, parent string) error {
	index := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		index[n.ID] = n.BelongsTo
	}
	if _, ok := index[parent]; !ok {
		return notFound("parent", parent)
	}

	cur := parent
	for range len(index) + 1 {
		if cur == "" {
			return nil
		}
		if cur == child {
			return &domain.MergeConflict{
				NodeID: child,
				Reason: fmt.Sprintf("moving under %s would create a partition cycle", parent),
			}
		}
		cur = index[cur]
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeString accepts a JSON string, number or boolean. null clears the field.
func decodeString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", invalid("value: %v", err)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64, bool:
		return strings.TrimSpace(string(raw)), nil
	}
	return "", invalid("value %s is not a scalar", raw)
}

// decodeFloat accepts a JSON number or a numeric string. null resets to 0.
func decodeFloat(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || isNull(raw) {
		return 0, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, invalid("value: %v", err)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, invalid("non-numeric weight %q", t)
		}
		return f, nil
	}
	return 0, invalid("value %s is not a number", raw)
}

// setAttribute returns a copy of attrs with key set, or removed on null.
func setAttribute(attrs map[string]string, key string, raw json.RawMessage) (map[string]string, error) {
	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	if len(raw) == 0 || isNull(raw) {
		delete(out, key)
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	}
	v, err := decodeString(raw)
	if err != nil {
		return nil, err
	}
	out[key] = v
	return out, nil
}

// insertSorted keeps a normalized slice sorted by ID.
func insertSorted[T any](items []T, item T, id func(T) string) []T {
	i, _ := slices.BinarySearchFunc(items, id(item), func(a T, target string) int {
		return strings.Compare(id(a), target)
	})
	return slices.Insert(items, i, item)
}
