package processor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// importDataset streams a datasource and normalizes its rows for the role.
// Bad rows are collected, not fatal. A missing required column is.
func (d *Dispatcher) importDataset(ctx context.Context, cfg *domain.DataSetConfig) (*domain.Dataset, error) {
	if d.rows == nil {
		return nil, &domain.ImportError{Source: cfg.Source, Err: errors.New("no row source configured")}
	}

	imp := newImporter(cfg)
	for batch, err := range d.rows.Batches(ctx, cfg.Source) {
		if err != nil {
			return nil, &domain.ImportError{Source: cfg.Source, Err: err}
		}
		if err := imp.add(batch); err != nil {
			return nil, &domain.ImportError{Source: cfg.Source, Err: err}
		}
	}
	return imp.result(), nil
}

type importer struct {
	cfg     *domain.DataSetConfig
	role    domain.DataSetRole
	known   map[string]bool
	ds      *domain.Dataset
	nodeIdx map[string]int
	edgeIdx map[string]int
	layIdx  map[string]int
}

func newImporter(cfg *domain.DataSetConfig) *importer {
	return &importer{
		cfg: cfg,
		ds: &domain.Dataset{
			Source:     cfg.Source,
			Role:       cfg.Role,
			Nodes:      []domain.GraphNode{},
			Edges:      []domain.GraphEdge{},
			Layers:     []domain.GraphLayer{},
			Provenance: map[string]domain.RowRef{},
		},
		nodeIdx: map[string]int{},
		edgeIdx: map[string]int{},
		layIdx:  map[string]int{},
	}
}

// ResolveRole picks the effective role of a datasource from its schema.
func ResolveRole(cfg *domain.DataSetConfig, columns []string) domain.DataSetRole {
	if cfg.Role != "" && cfg.Role != domain.RoleAuto {
		return cfg.Role
	}
	if slices.Contains(columns, cfg.SourceColumn) && slices.Contains(columns, cfg.TargetColumn) {
		return domain.RoleEdges
	}
	if strings.Contains(strings.ToLower(cfg.Source), "layer") {
		return domain.RoleLayers
	}
	return domain.RoleNodes
}

func (imp *importer) columnsFor(role domain.DataSetRole) (required, known []string) {
	c := imp.cfg
	switch role {
	case domain.RoleEdges:
		return []string{c.SourceColumn, c.TargetColumn},
			[]string{c.IDColumn, c.SourceColumn, c.TargetColumn, c.LabelColumn, c.LayerColumn, c.WeightColumn}
	case domain.RoleLayers:
		return []string{c.IDColumn},
			[]string{c.IDColumn, c.LabelColumn, c.ColorColumn}
	}
	return []string{c.IDColumn},
		[]string{c.IDColumn, c.LabelColumn, c.LayerColumn, c.WeightColumn, c.ParentColumn}
}

// schema fixes the role and checks required columns on the first batch.
func (imp *importer) schema(columns []string) error {
	imp.role = ResolveRole(imp.cfg, columns)
	imp.ds.Role = imp.role

	required, known := imp.columnsFor(imp.role)
	for _, col := range required {
		if !slices.Contains(columns, col) {
			return fmt.Errorf("%w: role %s requires column %q", domain.ErrSchemaMismatch, imp.role, col)
		}
	}
	imp.known = make(map[string]bool, len(known))
	for _, col := range known {
		imp.known[col] = true
	}
	return nil
}

func (imp *importer) add(batch domain.RowBatch) error {
	if imp.known == nil {
		if err := imp.schema(batch.Columns); err != nil {
			return err
		}
	}
	for i, row := range batch.Rows {
		ref := domain.RowRef{Source: imp.cfg.Source, Row: batch.Offset + i + 1}
		switch imp.role {
		case domain.RoleEdges:
			imp.addEdge(ref, row)
		case domain.RoleLayers:
			imp.addLayer(ref, row)
		default:
			imp.addNode(ref, row)
		}
	}
	return nil
}

func (imp *importer) reject(ref domain.RowRef, column, reason string) {
	imp.ds.Malformed = append(imp.ds.Malformed, domain.RowError{Ref: ref, Column: column, Reason: reason})
}

func (imp *importer) attributes(row domain.Row) map[string]string {
	var attrs map[string]string
	for k, v := range row {
		if imp.known[k] || v == "" {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[k] = v
	}
	return attrs
}

func (imp *importer) weight(ref domain.RowRef, row domain.Row) (float64, bool) {
	raw := strings.TrimSpace(row[imp.cfg.WeightColumn])
	if raw == "" {
		return 0, true
	}
	w, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		imp.reject(ref, imp.cfg.WeightColumn, fmt.Sprintf("non-numeric weight %q", raw))
		return 0, false
	}
	return w, true
}

func (imp *importer) addNode(ref domain.RowRef, row domain.Row) {
	id := strings.TrimSpace(row[imp.cfg.IDColumn])
	if id == "" {
		imp.reject(ref, imp.cfg.IDColumn, "empty id")
		return
	}
	w, ok := imp.weight(ref, row)
	if !ok {
		return
	}

	n := domain.GraphNode{
		ID:         id,
		Label:      strings.TrimSpace(row[imp.cfg.LabelColumn]),
		Layer:      strings.TrimSpace(row[imp.cfg.LayerColumn]),
		Weight:     w,
		BelongsTo:  strings.TrimSpace(row[imp.cfg.ParentColumn]),
		Attributes: imp.attributes(row),
	}
	if i, dup := imp.nodeIdx[id]; dup {
		imp.ds.Nodes[i] = n
	} else {
		imp.nodeIdx[id] = len(imp.ds.Nodes)
		imp.ds.Nodes = append(imp.ds.Nodes, n)
	}
	imp.ds.Provenance[id] = ref
}

func (imp *importer) addEdge(ref domain.RowRef, row domain.Row) {
	src := strings.TrimSpace(row[imp.cfg.SourceColumn])
	dst := strings.TrimSpace(row[imp.cfg.TargetColumn])
	if src == "" {
		imp.reject(ref, imp.cfg.SourceColumn, "missing endpoint")
		return
	}
	if dst == "" {
		imp.reject(ref, imp.cfg.TargetColumn, "missing endpoint")
		return
	}
	w, ok := imp.weight(ref, row)
	if !ok {
		return
	}

	id := strings.TrimSpace(row[imp.cfg.IDColumn])
	if id == "" {
		id = domain.EdgeID(src, dst)
	}
	e := domain.GraphEdge{
		ID:         id,
		Source:     src,
		Target:     dst,
		Label:      strings.TrimSpace(row[imp.cfg.LabelColumn]),
		Layer:      strings.TrimSpace(row[imp.cfg.LayerColumn]),
		Weight:     w,
		Attributes: imp.attributes(row),
	}
	if i, dup := imp.edgeIdx[id]; dup {
		imp.ds.Edges[i] = e
	} else {
		imp.edgeIdx[id] = len(imp.ds.Edges)
		imp.ds.Edges = append(imp.ds.Edges, e)
	}
	imp.ds.Provenance[id] = ref
}

func (imp *importer) addLayer(ref domain.RowRef, row domain.Row) {
	id := strings.TrimSpace(row[imp.cfg.IDColumn])
	if id == "" {
		imp.reject(ref, imp.cfg.IDColumn, "empty id")
		return
	}
	l := domain.GraphLayer{
		ID:         id,
		Label:      strings.TrimSpace(row[imp.cfg.LabelColumn]),
		Color:      strings.TrimSpace(row[imp.cfg.ColorColumn]),
		Attributes: imp.attributes(row),
	}
	if i, dup := imp.layIdx[id]; dup {
		imp.ds.Layers[i] = l
	} else {
		imp.layIdx[id] = len(imp.ds.Layers)
		imp.ds.Layers = append(imp.ds.Layers, l)
	}
	imp.ds.Provenance[id] = ref
}

func (imp *importer) result() *domain.Dataset {
	if imp.known == nil {
		// No batch at all: an empty datasource.
		imp.ds.Role = ResolveRole(imp.cfg, nil)
	}
	return imp.ds
}
