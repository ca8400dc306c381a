package service

import "espacio/internal/models"

// Decide is the pure authorization policy gating every mutation. The
// reservation argument is the candidate for creates and the stored row
// for everything else.
func Decide(actor *models.User, action string, reservation *models.Reservation) bool {
	if actor == nil || !actor.Role.Valid() {
		return false
	}

	if actor.Role == models.RoleAdmin {
		return true
	}

	// Guests are read-only.
	if actor.Role == models.RoleGuest {
		return action == models.ActionList
	}

	// Members and staff.
	switch action {
	case models.ActionCreate:
		// Only as themselves.
		return reservation != nil && reservation.RequesterID == actor.ID
	case models.ActionDelete, models.ActionCheckIn:
		return reservation != nil && reservation.RequesterID == actor.ID
	case models.ActionList:
		return true
	default:
		// approve, reject, cancel stay admin-only.
		return false
	}
}

// CanListAll reports whether the actor sees every reservation or only
// their own rows. Enforced at the query boundary, not in the state
// machine.
func CanListAll(actor *models.User) bool {
	return actor != nil && actor.Role == models.RoleAdmin
}
