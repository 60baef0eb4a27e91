/*
Package dsl provides a Go DSL for programmatically constructing strata plan DAGs.

It lets developers define processing plans with a fluent builder instead of
YAML files. This is useful for dynamic plan generation, unit testing, and
IDE autocompletion/type-checking.

Example usage:

	b := dsl.New()

	b.DataSet("people").Source("people")
	b.DataSet("links").Source("links").Set("role", "edges")

	b.Graph("org").From("people", "links")

	b.GraphArtifact("diagram").From("org").
		Set("format", "mermaid").
		Set("direction", "LR")

	dag, err := b.Build() // validated domain.PlanDag

Edges are declared in call order, which is the input order seen by nodes
with several inputs (Graph, Merge).
*/
package dsl
