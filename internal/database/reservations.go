package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"espacio/internal/models"
)

const reservationColumns = `id, requester_id, space_id, course_id, start_time, end_time,
                 status, purpose, notes, checked_in, created_at, updated_at`

// CreateReservationWithLock runs the check-then-insert for a candidate as
// one transaction: re-check the overlap against active reservations for
// the same space, then insert as pending. On contention the colliding
// reservation is returned alongside ErrSpaceOccupied.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) (*models.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Conflict re-check inside the transaction. Half-open intervals:
	// [s1,e1) and [s2,e2) overlap iff s1 < e2 AND s2 < e1.
	queryConflict := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE space_id = ? AND status IN (?, ?)
                AND start_time < ? AND end_time > ?
              ORDER BY start_time ASC LIMIT 1`
	row := tx.QueryRowContext(ctx, queryConflict,
		r.SpaceID, models.StatusPending, models.StatusConfirmed,
		r.EndTime.UTC(), r.StartTime.UTC())
	conflict, err := scanReservation(row)
	if err == nil {
		return conflict, ErrSpaceOccupied
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check conflicts in tx: %w", err)
	}

	// 2. Insert as pending
	queryInsert := `INSERT INTO reservations (
				requester_id, space_id, course_id, start_time, end_time,
				status, purpose, notes, checked_in, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, queryInsert,
		r.RequesterID,
		r.SpaceID,
		nullableID(r.CourseID),
		r.StartTime.UTC(),
		r.EndTime.UTC(),
		models.StatusPending,
		r.Purpose,
		r.Notes,
		r.CheckedIn,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	r.ID = id
	r.Status = models.StatusPending
	r.CreatedAt = now
	r.UpdatedAt = now

	return nil, tx.Commit()
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// CompareAndSwapStatus moves a reservation from expectedStatus to
// newStatus, optionally recording notes. A reservation already out of
// expectedStatus loses the swap and keeps its state.
func (db *DB) CompareAndSwapStatus(ctx context.Context, id int64, expectedStatus, newStatus, notes string) error {
	query := `UPDATE reservations
              SET status = ?, notes = CASE WHEN ? <> '' THEN ? ELSE notes END, updated_at = ?
              WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, newStatus, notes, notes, time.Now().UTC(), id, expectedStatus)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetReservation(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}
	return nil
}

// SetCheckedIn marks a confirmed reservation as attended.
func (db *DB) SetCheckedIn(ctx context.Context, id int64) error {
	query := `UPDATE reservations SET checked_in = 1, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, time.Now().UTC(), id, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to set checked_in: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetReservation(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}
	return nil
}

// DeleteReservation removes the record. Distinct from cancellation:
// nothing is preserved.
func (db *DB) DeleteReservation(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// FindActiveReservationsForSpace returns the contending set for a space:
// pending and confirmed rows only, ordered by start time.
func (db *DB) FindActiveReservationsForSpace(ctx context.Context, spaceID int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE space_id = ? AND status IN (?, ?)
              ORDER BY start_time ASC`
	return db.queryReservations(ctx, query, spaceID, models.StatusPending, models.StatusConfirmed)
}

// ListAllReservations returns every reservation, newest window first.
// Admin visibility only; callers scope everyone else by requester.
func (db *DB) ListAllReservations(ctx context.Context) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations ORDER BY start_time DESC`
	return db.queryReservations(ctx, query)
}

// ListReservationsByRequester returns one user's reservations.
func (db *DB) ListReservationsByRequester(ctx context.Context, requesterID int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations WHERE requester_id = ? ORDER BY start_time DESC`
	return db.queryReservations(ctx, query, requesterID)
}

// ListReservationsForSpaceRange returns reservations for a space whose
// windows intersect [from, to), any status. Drives the schedule view and
// the export.
func (db *DB) ListReservationsForSpaceRange(ctx context.Context, spaceID int64, from, to time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE space_id = ? AND start_time < ? AND end_time > ?
              ORDER BY start_time ASC`
	return db.queryReservations(ctx, query, spaceID, to.UTC(), from.UTC())
}

// ListExpiredConfirmed returns confirmed reservations whose window has
// fully elapsed. Input for the completion sweep.
func (db *DB) ListExpiredConfirmed(ctx context.Context, now time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE status = ? AND end_time <= ?
              ORDER BY end_time ASC`
	return db.queryReservations(ctx, query, models.StatusConfirmed, now.UTC())
}

// GetStatusCounts tallies reservations per status.
func (db *DB) GetStatusCounts(ctx context.Context) (*models.StatusCounts, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM reservations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	defer rows.Close()

	counts := &models.StatusCounts{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		switch status {
		case models.StatusPending:
			counts.Pending = n
		case models.StatusConfirmed:
			counts.Confirmed = n
		case models.StatusRejected:
			counts.Rejected = n
		case models.StatusCancelled:
			counts.Cancelled = n
		case models.StatusCompleted:
			counts.Completed = n
		case models.StatusNoShow:
			counts.NoShow = n
		}
	}
	return counts, rows.Err()
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...any) ([]*models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanReservation is the single conversion point from raw rows to the
// typed entity; malformed rows surface as errors instead of propagating
// loosely-typed data inward.
func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var courseID sql.NullInt64
	if err := row.Scan(
		&r.ID, &r.RequesterID, &r.SpaceID, &courseID, &r.StartTime, &r.EndTime,
		&r.Status, &r.Purpose, &r.Notes, &r.CheckedIn, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if courseID.Valid {
		r.CourseID = &courseID.Int64
	}
	return &r, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
