package database

import "errors"

var (
	// ErrNotFound signals the reservation id does not exist.
	ErrNotFound = errors.New("reservation not found")

	// ErrSpaceOccupied signals the admission transaction found an active
	// reservation overlapping the requested window.
	ErrSpaceOccupied = errors.New("space already reserved for this window")

	// ErrConcurrentModification signals a compare-and-swap lost to a
	// concurrent transition on the same reservation.
	ErrConcurrentModification = errors.New("reservation was modified concurrently")

	// ErrLockTimeout signals the per-space admission lock was not acquired
	// within the configured timeout. Safe to retry.
	ErrLockTimeout = errors.New("timed out waiting for space lock")

	// ErrSpaceUnknown signals a space id absent from the reference catalog.
	ErrSpaceUnknown = errors.New("space not found")
)

// IsTransient reports whether the error is worth retrying without
// changing the request. A lost compare-and-swap is not transient: the
// reservation really is in another status now.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
