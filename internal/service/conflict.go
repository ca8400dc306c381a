package service

import (
	"context"
	"time"

	"espacio/internal/domain"
	"espacio/internal/models"
)

// ConflictDetector decides whether a window collides with any active
// reservation for a space. A linear scan is enough: the contending set
// per space is small, and the storage contract allows swapping in an
// interval index without changing this surface.
type ConflictDetector struct {
	repo domain.Repository
}

func NewConflictDetector(repo domain.Repository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// FindConflict returns the first active reservation overlapping
// [start, end) on the space, or nil. excludeID skips one reservation when
// re-validating an existing row; pass 0 for creations.
func (d *ConflictDetector) FindConflict(ctx context.Context, spaceID int64, start, end time.Time, excludeID int64) (*models.Reservation, error) {
	active, err := d.repo.FindActiveReservationsForSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	for _, r := range active {
		if r.ID == excludeID {
			continue
		}
		if r.Overlaps(start, end) {
			return r, nil
		}
	}
	return nil, nil
}
