/*
Package domain contains the core domain models of the Strata engine.

It defines the plan DAG that users author, the typed graphs that plans compute,
the edit journal entries users make against those graphs, and the per-node
execution records of a run. This package is kept pure and free of I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Plan / PlanDag: A versioned DAG of typed processing steps (PlanNode, PlanEdge).
  - NodeConfig: The closed set of kind-specific configurations, decoded from PlanNode.Config.
  - Graph: The typed node/edge/layer graph produced by Graph-kind steps.
  - GraphEdit: One entry of a graph's append-only edit journal.
  - ExecutionState: The lifecycle record of one node within one run.
  - RunResult: The aggregate outcome of executing a plan.
*/
package domain
