package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/strata/internal/executor"
	"github.com/aretw0/strata/internal/journal"
	"github.com/aretw0/strata/internal/validator"
	"github.com/aretw0/strata/pkg/domain"
)

func (a *actor) dispatch(ctx context.Context, cmd Command) (*CommandResult, error) {
	switch c := deref(cmd).(type) {
	case EditGraph:
		return a.editGraph(ctx, c)
	case UpdatePlanDag:
		return a.updatePlanDag(ctx, c)
	case RefreshPlan:
		return a.refreshPlan(ctx, c)
	case Subscribe:
		return a.subscribe(ctx, c.SessionID, true)
	case Unsubscribe:
		return a.subscribe(ctx, c.SessionID, false)
	}
	return nil, fmt.Errorf("unsupported command %T", cmd)
}

func (a *actor) broadcast(ctx context.Context, delta domain.ProjectDelta) {
	delta.ProjectID = a.projectID
	delta.At = a.c.now().UTC()
	a.c.broadcaster.Broadcast(context.WithoutCancel(ctx), delta)
}

// plan returns a plan of this project, loading it on first use.
func (a *actor) plan(ctx context.Context, planID string) (*domain.Plan, error) {
	if p, ok := a.project.plans[planID]; ok {
		return p, nil
	}
	p, err := a.c.store.LoadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.ProjectID != a.projectID {
		return nil, fmt.Errorf("plan %s: %w", planID, domain.ErrForeignPlan)
	}
	a.project.plans[planID] = p
	return p, nil
}

// graph returns a graph computed by a plan of this project.
func (a *actor) graph(ctx context.Context, graphID string) (*domain.Graph, error) {
	if g, ok := a.project.graphs[graphID]; ok {
		return g, nil
	}
	if err := a.owns(ctx, graphID); err != nil {
		return nil, err
	}
	g, err := a.c.store.LoadGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	a.project.graphs[graphID] = g
	return g, nil
}

// owns checks that graphID is computed by a node of one of this project's
// plans. Node IDs may contain '/', so every split of the ID is tried.
func (a *actor) owns(ctx context.Context, graphID string) error {
	for i := range len(graphID) {
		if graphID[i] != '/' {
			continue
		}
		p, err := a.plan(ctx, graphID[:i])
		switch {
		case errors.Is(err, domain.ErrPlanNotFound):
			continue
		case err != nil:
			return err
		}
		if _, ok := p.Dag.Node(graphID[i+1:]); ok {
			return nil
		}
	}
	return fmt.Errorf("graph %s is not part of project %s: %w", graphID, a.projectID, domain.ErrGraphNotFound)
}

func (a *actor) journal(ctx context.Context, graphID string) (*journal.Journal, error) {
	if j, ok := a.project.journals[graphID]; ok {
		return j, nil
	}
	j, err := journal.Open(ctx, a.c.store, graphID, journal.WithMetrics(a.c.metrics), journal.WithClock(a.c.now))
	if err != nil {
		return nil, err
	}
	a.project.journals[graphID] = j
	return j, nil
}

// editGraph validates the edit against the live graph, appends it to the
// journal and publishes the new graph.
func (a *actor) editGraph(ctx context.Context, c EditGraph) (*CommandResult, error) {
	current, err := a.graph(ctx, c.GraphID)
	if err != nil {
		return nil, err
	}

	edit := domain.GraphEdit{
		GraphID:    c.GraphID,
		TargetType: c.TargetType,
		TargetID:   c.TargetID,
		Operation:  c.Operation,
		FieldName:  c.Field,
		OldValue:   currentValue(current, c),
		NewValue:   c.Value,
		CreatedBy:  c.Author,
	}

	next := current.Clone()
	if err := journal.Apply(next, edit); err != nil {
		return nil, err
	}

	j, err := a.journal(ctx, c.GraphID)
	if err != nil {
		return nil, err
	}
	edit.Applied = true
	edit, err = j.Append(ctx, edit)
	if err != nil {
		return nil, err
	}
	next.LastEditSequence = edit.SequenceNumber

	if err := a.c.store.SaveGraph(ctx, next); err != nil {
		return nil, err
	}
	a.project.graphs[c.GraphID] = next

	diff := domain.DiffGraphs(current, next)
	a.broadcast(ctx, domain.ProjectDelta{
		Type:    domain.DeltaGraphEdit,
		GraphID: c.GraphID,
		Edits:   []domain.GraphEdit{edit},
		Diffs:   nonNil(diff),
	})
	return &CommandResult{Command: c.Name(), Edit: &edit, Diff: diff}, nil
}

// updatePlanDag accepts a new DAG only on the expected version.
func (a *actor) updatePlanDag(ctx context.Context, c UpdatePlanDag) (*CommandResult, error) {
	current, err := a.plan(ctx, c.PlanID)
	switch {
	case errors.Is(err, domain.ErrForeignPlan):
		return nil, err
	case errors.Is(err, domain.ErrPlanNotFound):
		current = &domain.Plan{ID: c.PlanID, ProjectID: a.projectID, Name: c.PlanName, Status: domain.PlanDraft}
	case err != nil:
		return nil, err
	}

	if c.ExpectedVersion != current.Version {
		return nil, a.conflict(current, c.ExpectedVersion)
	}
	if err := validator.Validate(c.Dag); err != nil {
		return nil, err
	}

	next := current.Clone()
	next.Dag = c.Dag.Clone()
	next.Version = current.Version + 1
	next.Status = domain.PlanReady
	if c.PlanName != "" {
		next.Name = c.PlanName
	}

	if err := a.c.store.SavePlan(ctx, next, c.ExpectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Written behind our back: adopt the stored plan if it is ours.
			if stored, lerr := a.c.store.LoadPlan(ctx, c.PlanID); lerr == nil {
				if stored.ProjectID != a.projectID {
					return nil, fmt.Errorf("plan %s: %w", c.PlanID, domain.ErrForeignPlan)
				}
				a.project.plans[c.PlanID] = stored
				return nil, a.conflict(stored, c.ExpectedVersion)
			}
		}
		return nil, err
	}
	a.project.plans[c.PlanID] = next

	a.broadcast(ctx, domain.ProjectDelta{
		Type:    domain.DeltaPlan,
		PlanID:  next.ID,
		Version: next.Version,
	})
	return &CommandResult{Command: c.Name(), Plan: next.Clone()}, nil
}

func (a *actor) conflict(current *domain.Plan, expected int64) error {
	var snapshot *domain.Plan
	if current.Version > 0 {
		snapshot = current.Clone()
	}
	return &domain.VersionConflict{
		PlanID:   current.ID,
		Expected: expected,
		Actual:   current.Version,
		Current:  snapshot,
	}
}

// refreshPlan recomputes a plan. Each graph output has its journal replayed
// before downstream nodes consume it, so artifacts reflect the edits.
// Orphans are reported, not fatal.
func (a *actor) refreshPlan(ctx context.Context, c RefreshPlan) (*CommandResult, error) {
	plan, err := a.plan(ctx, c.PlanID)
	if err != nil {
		return nil, err
	}

	var replayed []journal.ReplayResult
	rc := executor.RunContext{
		SkipGraphPersist: true,
		Rewrite: func(ctx context.Context, _ string, out domain.Output) (domain.Output, error) {
			if out.Graph == nil {
				return out, nil
			}
			j, err := a.journal(ctx, out.Graph.ID)
			if err != nil {
				return out, err
			}
			edits, err := j.Since(ctx, 0)
			if err != nil {
				return out, err
			}
			r := journal.Replay(out.Graph, edits)
			replayed = append(replayed, r)
			out.Graph = r.Graph
			return out, nil
		},
	}

	res, err := a.c.executor.Execute(ctx, plan, rc)
	if err != nil {
		return nil, err
	}

	var diffs []*domain.GraphDiff
	var orphans []domain.ReplayOrphan
	for _, r := range replayed {
		graphID := r.Graph.ID
		a.c.metrics.ReplayOrphans.Add(float64(len(r.Orphans)))

		previous := a.project.graphs[graphID]
		if previous == nil {
			previous, _ = a.c.store.LoadGraph(ctx, graphID)
		}
		if err := a.c.store.SaveGraph(ctx, r.Graph); err != nil {
			return nil, err
		}
		if d := domain.DiffGraphs(previous, r.Graph); d != nil {
			diffs = append(diffs, d)
		}
		a.project.graphs[graphID] = r.Graph
		orphans = append(orphans, r.Orphans...)
	}

	next := plan.Clone()
	next.Status = domain.PlanCompleted
	if res.Status != domain.RunSucceeded {
		next.Status = domain.PlanFailed
	}
	if err := a.c.store.SavePlan(ctx, next, plan.Version); err != nil {
		return nil, err
	}
	a.project.plans[plan.ID] = next
	a.project.runs[plan.ID] = res

	if len(orphans) > 0 {
		a.logger.Info("journal replay left orphans", "plan_id", plan.ID, "orphans", len(orphans))
	}
	a.broadcast(ctx, domain.ProjectDelta{
		Type:      domain.DeltaRefresh,
		PlanID:    plan.ID,
		Version:   next.Version,
		RunID:     res.RunID,
		RunStatus: res.Status,
		Diffs:     diffs,
		Orphans:   orphans,
	})
	return &CommandResult{Command: c.Name(), Plan: next.Clone(), Run: res, Orphans: orphans}, nil
}

func (a *actor) subscribe(ctx context.Context, sessionID string, join bool) (*CommandResult, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	name := CmdSubscribe
	if join {
		a.project.sessions[sessionID] = struct{}{}
	} else {
		name = CmdUnsubscribe
		delete(a.project.sessions, sessionID)
	}

	a.broadcast(ctx, domain.ProjectDelta{
		Type:      domain.DeltaSession,
		SessionID: sessionID,
		Sessions:  len(a.project.sessions),
	})
	return &CommandResult{Command: name, Sessions: len(a.project.sessions)}, nil
}

// currentValue captures what an edit overwrites: the field for updates and
// the whole element for deletes.
func currentValue(g *domain.Graph, c EditGraph) json.RawMessage {
	var elem any
	var attrs map[string]string
	switch c.TargetType {
	case domain.TargetNode:
		if i := g.NodeIndex(c.TargetID); i >= 0 {
			elem, attrs = g.Nodes[i], g.Nodes[i].Attributes
		}
	case domain.TargetEdge:
		if i := g.EdgeIndex(c.TargetID); i >= 0 {
			elem, attrs = g.Edges[i], g.Edges[i].Attributes
		}
	case domain.TargetLayer:
		if i := g.LayerIndex(c.TargetID); i >= 0 {
			elem, attrs = g.Layers[i], g.Layers[i].Attributes
		}
	}
	if elem == nil || c.Operation == domain.OpCreate {
		return nil
	}

	data, err := json.Marshal(elem)
	if err != nil || c.Operation == domain.OpDelete {
		return data
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	if v, ok := fields[c.Field]; ok && c.Field != "attributes" {
		return v
	}
	if v, ok := attrs[c.Field]; ok {
		data, _ := json.Marshal(v)
		return data
	}
	return nil
}

func nonNil(d *domain.GraphDiff) []*domain.GraphDiff {
	if d == nil {
		return nil
	}
	return []*domain.GraphDiff{d}
}
