/*
Package strata turns tabular datasources into layered graphs and renders
them as diagrams, through plans that several people edit at once.

# Concept

A plan is a DAG of typed nodes: DataSet nodes import rows, graph nodes
build, merge, transform, filter and project graphs, and artifact nodes
render them (Mermaid, DOT, JSON, trees and sequence charts). Executing a
plan walks the DAG in a deterministic topological order and records every
node's lifecycle.

Hand edits to generated graphs are kept in an append-only journal per
graph. When a plan is refreshed the journal is replayed over the fresh
output, so edits survive upstream data changes. Edits whose target is gone
are reported as orphans instead of failing the refresh.

Every project is owned by a single actor. Commands for a project are
handled one at a time, plan updates use optimistic versions, and every
accepted change is broadcast to the sessions of the project.

# Usage

	rows := memory.NewRowSource(map[string][]domain.Row{
		"people": {{"id": "alice"}, {"id": "bob", "belongs_to": "alice"}},
	})
	eng := strata.New(strata.WithRowSource(rows))
	defer eng.Close(context.Background())

	b := dsl.New()
	b.DataSet("people").Source("people")
	b.Graph("org").From("people")
	b.TreeArtifact("tree").From("org")

	res, err := eng.Execute(ctx, &domain.Plan{ID: "org", Dag: b.MustBuild()})

Collaborative edits go through Route:

	_, err = eng.Route(ctx, "acme", strata.UpdatePlanDag{PlanID: "org", Dag: dag})
	_, err = eng.Route(ctx, "acme", strata.RefreshPlan{PlanID: "org"})
*/
package strata
