package domain

import (
	"context"
	"time"

	"espacio/internal/models"
)

// Repository is the transactional storage contract the admission and
// lifecycle core requires. The SQLite implementation serializes the
// check-then-insert; any replacement must preserve that atomicity.
type Repository interface {
	CreateReservationWithLock(ctx context.Context, r *models.Reservation) (*models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	CompareAndSwapStatus(ctx context.Context, id int64, expectedStatus, newStatus, notes string) error
	SetCheckedIn(ctx context.Context, id int64) error
	DeleteReservation(ctx context.Context, id int64) error
	FindActiveReservationsForSpace(ctx context.Context, spaceID int64) ([]*models.Reservation, error)
	ListAllReservations(ctx context.Context) ([]*models.Reservation, error)
	ListReservationsByRequester(ctx context.Context, requesterID int64) ([]*models.Reservation, error)
	ListReservationsForSpaceRange(ctx context.Context, spaceID int64, from, to time.Time) ([]*models.Reservation, error)
	ListExpiredConfirmed(ctx context.Context, now time.Time) ([]*models.Reservation, error)
	GetStatusCounts(ctx context.Context) (*models.StatusCounts, error)

	SpaceExists(spaceID int64) bool
	GetSpace(spaceID int64) (models.Space, error)
	GetSpaces() []models.Space

	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	RoleOf(ctx context.Context, id int64) (models.Role, error)
}

// ScheduleCache holds eventually-consistent per-space schedule snapshots
// for the unlocked read path. A miss returns (nil, nil).
type ScheduleCache interface {
	GetSchedule(ctx context.Context, spaceID int64, day time.Time) ([]*models.Reservation, error)
	SetSchedule(ctx context.Context, spaceID int64, day time.Time, reservations []*models.Reservation) error
	InvalidateSpace(ctx context.Context, spaceID int64) error
}

// EventPublisher is the seam a notifier subscribes to.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
