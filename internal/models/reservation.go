package models

import "time"

type Reservation struct {
	ID          int64     `json:"id"`
	RequesterID int64     `json:"requester_id"`
	SpaceID     int64     `json:"space_id"`
	CourseID    *int64    `json:"course_id,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"` // pending, confirmed, rejected, cancelled, completed, no_show
	Purpose     string    `json:"purpose"`
	Notes       string    `json:"notes,omitempty"`
	CheckedIn   bool      `json:"checked_in"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Active reports whether the reservation still contends for its space.
func (r *Reservation) Active() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// Overlaps tests the reservation's [start, end) window against another
// half-open interval. Back-to-back windows do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

// StatusCounts aggregates reservations per status for the admin dashboard.
type StatusCounts struct {
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Rejected  int64 `json:"rejected"`
	Cancelled int64 `json:"cancelled"`
	Completed int64 `json:"completed"`
	NoShow    int64 `json:"no_show"`
}
