package service

import (
	"fmt"
	"strings"
	"time"

	"espacio/internal/config"
	"espacio/internal/models"
)

// SpaceChecker is the reference-data collaborator consulted for space
// existence.
type SpaceChecker interface {
	SpaceExists(spaceID int64) bool
}

// RequestValidator checks a candidate's shape and business rules before
// it reaches storage. No side effects; fails fast on the first violation.
type RequestValidator struct {
	openMinutes  int
	closeMinutes int
	spaces       SpaceChecker
}

func NewRequestValidator(hours config.OperatingHours, spaces SpaceChecker) (*RequestValidator, error) {
	open, close, err := hours.Minutes()
	if err != nil {
		return nil, err
	}
	return &RequestValidator{openMinutes: open, closeMinutes: close, spaces: spaces}, nil
}

// Validate returns nil or the first *ValidationError encountered.
func (v *RequestValidator) Validate(candidate *models.Reservation) error {
	if strings.TrimSpace(candidate.Purpose) == "" {
		return &ValidationError{Rule: RulePurposeRequired, Message: "purpose must not be empty"}
	}

	if !candidate.StartTime.Before(candidate.EndTime) {
		return &ValidationError{Rule: RuleTimeOrdering, Message: "start time must precede end time"}
	}

	sy, sm, sd := candidate.StartTime.Date()
	ey, em, ed := candidate.EndTime.Date()
	if sy != ey || sm != em || sd != ed {
		return &ValidationError{Rule: RuleSingleDay, Message: "reservation must start and end on the same day"}
	}

	// Compare full clock offsets, not truncated minutes: 20:00:59 is
	// past a 20:00 close. The window is [open, close]: starts at open
	// are fine, and a reservation may end exactly at close because ends
	// are exclusive.
	opensAt := time.Duration(v.openMinutes) * time.Minute
	closesAt := time.Duration(v.closeMinutes) * time.Minute
	if clockOffset(candidate.StartTime) < opensAt || clockOffset(candidate.EndTime) > closesAt {
		return &ValidationError{
			Rule: RuleOperatingHours,
			Message: fmt.Sprintf("reservation must fall within operating hours %02d:%02d-%02d:%02d",
				v.openMinutes/60, v.openMinutes%60, v.closeMinutes/60, v.closeMinutes%60),
		}
	}

	if !v.spaces.SpaceExists(candidate.SpaceID) {
		return &ValidationError{Rule: RuleSpaceExists, Message: fmt.Sprintf("space %d does not exist", candidate.SpaceID)}
	}

	return nil
}

// clockOffset is the elapsed time since the instant's midnight.
func clockOffset(t time.Time) time.Duration {
	y, m, d := t.Date()
	return t.Sub(time.Date(y, m, d, 0, 0, 0, 0, t.Location()))
}
