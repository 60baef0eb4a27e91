/*
Package ports defines the driven ports (interfaces) for the Strata engine.

These interfaces decouple the core logic from external implementations, allowing
the executor and the collaboration actors to work with various storage backends,
row sources and broadcast transports.

# Key Interfaces

  - PlanStore: Persists plans, guarding DAG mutations with a version compare-and-swap.
  - GraphStore: Persists computed and edited graphs.
  - JournalStore: Persists the per-graph edit journal in sequence order.
  - RunStore / ArtifactStore: Persist execution records and rendered artifacts.
  - RowSource: Streams datasource rows in restartable batches.
  - Broadcaster: Pushes project deltas to subscribed sessions.
*/
package ports
