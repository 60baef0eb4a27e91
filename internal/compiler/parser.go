// Package compiler turns plan files into domain plans.
package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/strata/internal/dto"
	"github.com/aretw0/strata/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Parser decodes plan files. JSON files are accepted as YAML.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads a plan file. A plan without an id takes the file name.
func (p *Parser) ParseFile(path string) (*domain.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	plan, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if plan.ID == "" {
		plan.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return plan, nil
}

// Parse decodes a plan. Unknown keys are rejected. The DAG is not
// validated here.
func (p *Parser) Parse(data []byte) (*domain.Plan, error) {
	var file dto.PlanFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty plan file")
		}
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	plan := &domain.Plan{
		ID:        file.ID,
		ProjectID: file.ProjectID,
		Name:      file.Name,
		Status:    domain.PlanDraft,
	}

	seen := make(map[string]struct{})
	addEdge := func(e domain.PlanEdge) {
		if _, ok := seen[e.Key()]; ok {
			return
		}
		seen[e.Key()] = struct{}{}
		plan.Dag.Edges = append(plan.Dag.Edges, e)
	}

	for _, n := range file.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: missing id", len(plan.Dag.Nodes))
		}
		plan.Dag.Nodes = append(plan.Dag.Nodes, domain.PlanNode{
			ID:       n.ID,
			Kind:     n.Kind,
			Config:   n.Config,
			Position: n.Position,
		})
		for _, src := range n.From {
			addEdge(domain.PlanEdge{Source: src, Target: n.ID})
		}
		for _, dst := range n.To {
			addEdge(domain.PlanEdge{Source: n.ID, Target: dst})
		}
	}
	for _, e := range file.Edges {
		addEdge(domain.PlanEdge{ID: e.ID, Source: e.Source, Target: e.Target})
	}
	return plan, nil
}
