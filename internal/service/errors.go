package service

import (
	"fmt"
	"time"
)

// ValidationError reports a malformed or out-of-policy candidate. Not
// retryable without changing the input.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Message)
}

// Validation rule identifiers.
const (
	RulePurposeRequired = "purpose_required"
	RuleTimeOrdering    = "time_ordering"
	RuleOperatingHours  = "operating_hours"
	RuleSingleDay       = "single_day"
	RuleSpaceExists     = "space_exists"
	RuleReasonRequired  = "reason_required"
	RuleUserName        = "user_name"
	RuleUserEmail       = "user_email"
	RuleUserRole        = "user_role"
)

// ConflictError reports space/time contention, carrying the colliding
// reservation. Retryable with a different window.
type ConflictError struct {
	ReservationID int64
	SpaceID       int64
	Start         time.Time
	End           time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("space %d already reserved by reservation %d for [%s, %s)",
		e.SpaceID, e.ReservationID,
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// AuthorizationError reports a denied action. Not retryable.
type AuthorizationError struct {
	ActorID int64
	Action  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %d is not allowed to %s", e.ActorID, e.Action)
}

// TransitionError names an illegal status change attempt. Not retryable.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
