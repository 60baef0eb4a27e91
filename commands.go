package strata

import "github.com/aretw0/strata/internal/collab"

// Collaboration commands and their replies.
type (
	Command       = collab.Command
	CommandResult = collab.CommandResult
	Envelope      = collab.Envelope
	Snapshot      = collab.Snapshot
	Coordinator   = collab.Coordinator

	EditGraph     = collab.EditGraph
	UpdatePlanDag = collab.UpdatePlanDag
	RefreshPlan   = collab.RefreshPlan
	Subscribe     = collab.Subscribe
	Unsubscribe   = collab.Unsubscribe
)
