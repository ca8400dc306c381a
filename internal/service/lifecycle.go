package service

import "espacio/internal/models"

// transition describes one legal edge of the status state machine.
type transition struct {
	From         string
	To           string
	Action       string
	RequireNotes bool
}

// transitionTable enumerates every legal status change. Deletion is not a
// transition: it is a terminal operation allowed from any status, gated
// by ownership in the policy.
var transitionTable = []transition{
	{From: models.StatusPending, To: models.StatusConfirmed, Action: models.ActionApprove},
	{From: models.StatusPending, To: models.StatusRejected, Action: models.ActionReject, RequireNotes: true},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Action: models.ActionCancel, RequireNotes: true},
	// Time-driven edges applied by the sweeper, not by actors.
	{From: models.StatusConfirmed, To: models.StatusCompleted},
	{From: models.StatusConfirmed, To: models.StatusNoShow},
}

// findTransition returns the rule for a from→to pair, or a
// *TransitionError naming the attempted pair.
func findTransition(from, to string) (transition, error) {
	for _, t := range transitionTable {
		if t.From == from && t.To == to {
			return t, nil
		}
	}
	return transition{}, &TransitionError{From: from, To: to}
}
