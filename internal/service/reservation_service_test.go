package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"espacio/internal/config"
	"espacio/internal/database"
	"espacio/internal/events"
	"espacio/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*ReservationService, *database.DB) {
	t.Helper()
	logger := zerolog.New(zerolog.NewConsoleWriter())
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetSpaces([]models.Space{
		{ID: 1, Name: "Aula Magna", Type: "classroom", IsActive: true},
		{ID: 2, Name: "Sala de Juntas", Type: "meeting_room", IsActive: true},
	})

	validator, err := NewRequestValidator(config.OperatingHours{Open: "08:00", Close: "20:00"}, db)
	require.NoError(t, err)

	svc := NewReservationService(db, nil, events.NewEventBus(), validator, 3*time.Second, &logger)
	return svc, db
}

func seedUser(t *testing.T, db *database.DB, name string, role models.Role) int64 {
	t.Helper()
	user := &models.User{Name: name, Email: name + "@example.com", Role: role}
	require.NoError(t, db.CreateOrUpdateUser(context.Background(), user))
	return user.ID
}

func window(hour int) (time.Time, time.Time) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(hour) * time.Hour), day.Add(time.Duration(hour+2) * time.Hour)
}

func candidateFor(requesterID int64, spaceID int64, hour int) *models.Reservation {
	start, end := window(hour)
	return &models.Reservation{
		RequesterID: requesterID,
		SpaceID:     spaceID,
		StartTime:   start,
		EndTime:     end,
		Purpose:     "study group",
	}
}

func TestCreateReservationPending(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.NotZero(t, created.ID)
}

func TestCreateReservationConflictNamesWinner(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)
	otherID := seedUser(t, db, "other", models.RoleMember)

	first, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	overlapping := candidateFor(otherID, 1, 11)
	_, err = svc.CreateReservation(ctx, overlapping, otherID)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, first.ID, conflictErr.ReservationID)
	assert.Equal(t, int64(1), conflictErr.SpaceID)
	assert.True(t, conflictErr.Start.Equal(first.StartTime))
}

func TestCreateReservationAdjacentAllowed(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)

	_, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	// [10,12) and [12,14) share only the boundary instant.
	_, err = svc.CreateReservation(ctx, candidateFor(memberID, 1, 12), memberID)
	require.NoError(t, err)

	// Same window on another space is free too.
	_, err = svc.CreateReservation(ctx, candidateFor(memberID, 2, 10), memberID)
	require.NoError(t, err)
}

func TestCreateReservationValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)

	tests := []struct {
		name   string
		mutate func(r *models.Reservation)
		rule   string
	}{
		{
			name:   "empty purpose",
			mutate: func(r *models.Reservation) { r.Purpose = "   " },
			rule:   RulePurposeRequired,
		},
		{
			name:   "start equals end",
			mutate: func(r *models.Reservation) { r.EndTime = r.StartTime },
			rule:   RuleTimeOrdering,
		},
		{
			name:   "start after end",
			mutate: func(r *models.Reservation) { r.StartTime, r.EndTime = r.EndTime, r.StartTime },
			rule:   RuleTimeOrdering,
		},
		{
			name:   "crosses midnight",
			mutate: func(r *models.Reservation) { r.EndTime = r.EndTime.AddDate(0, 0, 1) },
			rule:   RuleSingleDay,
		},
		{
			name: "before opening",
			mutate: func(r *models.Reservation) {
				day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
				r.StartTime = day.Add(7*time.Hour + 59*time.Minute)
				r.EndTime = day.Add(9 * time.Hour)
			},
			rule: RuleOperatingHours,
		},
		{
			name: "past closing",
			mutate: func(r *models.Reservation) {
				day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
				r.StartTime = day.Add(19 * time.Hour)
				r.EndTime = day.Add(20*time.Hour + 1*time.Minute)
			},
			rule: RuleOperatingHours,
		},
		{
			name:   "unknown space",
			mutate: func(r *models.Reservation) { r.SpaceID = 99 },
			rule:   RuleSpaceExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := candidateFor(memberID, 1, 10)
			tt.mutate(candidate)

			_, err := svc.CreateReservation(ctx, candidate, memberID)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.rule, validationErr.Rule)
		})
	}
}

func TestCreateReservationBoundaryHours(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)

	// Opening 08:00 to closing 20:00 exactly is valid: ends are exclusive.
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	candidate := &models.Reservation{
		RequesterID: memberID,
		SpaceID:     1,
		StartTime:   day.Add(8 * time.Hour),
		EndTime:     day.Add(20 * time.Hour),
		Purpose:     "all day event",
	}
	_, err := svc.CreateReservation(ctx, candidate, memberID)
	require.NoError(t, err)
}

func TestCreateReservationForSomeoneElseDenied(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)
	otherID := seedUser(t, db, "other", models.RoleMember)

	_, err := svc.CreateReservation(ctx, candidateFor(otherID, 1, 10), memberID)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, memberID, authErr.ActorID)
}

func TestAdminCreatesOnBehalf(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), adminID)
	require.NoError(t, err)
	assert.Equal(t, memberID, created.RequesterID)
}

func TestGuestCannotCreate(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	guestID := seedUser(t, db, "guest", models.RoleGuest)

	_, err := svc.CreateReservation(ctx, candidateFor(guestID, 1, 10), guestID)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestApproveReservation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	updated, err := svc.ApproveReservation(ctx, created.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
}

func TestMemberCannotApprove(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	_, err = svc.ApproveReservation(ctx, created.ID, memberID)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, models.ActionApprove, authErr.Action)

	stored, err := db.GetReservation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestRejectRequiresReason(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	_, err = svc.RejectReservation(ctx, created.ID, adminID, "   ")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, RuleReasonRequired, validationErr.Rule)

	stored, err := db.GetReservation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestRejectRecordsReason(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	updated, err := svc.RejectReservation(ctx, created.ID, adminID, "space closed for repairs")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)
	assert.Equal(t, "space closed for repairs", updated.Notes)
}

func TestRejectAlreadyRejected(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	_, err = svc.RejectReservation(ctx, created.ID, adminID, "first")
	require.NoError(t, err)

	_, err = svc.RejectReservation(ctx, created.ID, adminID, "second")

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, models.StatusRejected, transitionErr.From)
	assert.Equal(t, models.StatusRejected, transitionErr.To)
}

func TestCancelConfirmedWithReason(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	_, err = svc.ApproveReservation(ctx, created.ID, adminID)
	require.NoError(t, err)

	updated, err := svc.CancelReservation(ctx, created.ID, adminID, "emergency maintenance")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
	assert.Equal(t, "emergency maintenance", updated.Notes)
}

func TestCancelPendingIsIllegal(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	_, err = svc.CancelReservation(ctx, created.ID, adminID, "wrong path")

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, models.StatusPending, transitionErr.From)
	assert.Equal(t, models.StatusCancelled, transitionErr.To)
}

func TestConcurrentTransitionsOneWinner(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	const attempts = 6
	var wg sync.WaitGroup
	wg.Add(attempts)
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = svc.ApproveReservation(ctx, created.ID, adminID)
			} else {
				_, err = svc.RejectReservation(ctx, created.ID, adminID, "no")
			}
			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		// Losers observe the transition that actually failed, never a
		// retryable error.
		var transitionErr *TransitionError
		assert.ErrorAs(t, err, &transitionErr)
		assert.False(t, database.IsTransient(err))
	}
	assert.Equal(t, 1, winners)
}

func TestDeleteReservationOwnership(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)
	otherID := seedUser(t, db, "other", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	err = svc.DeleteReservation(ctx, created.ID, otherID)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	require.NoError(t, svc.DeleteReservation(ctx, created.ID, memberID))

	mine, err := svc.ListReservations(ctx, memberID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestDeletedWindowBecomesFree(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)
	otherID := seedUser(t, db, "other", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteReservation(ctx, created.ID, memberID))

	_, err = svc.CreateReservation(ctx, candidateFor(otherID, 1, 10), otherID)
	require.NoError(t, err)
}

func TestListReservationsVisibility(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)
	otherID := seedUser(t, db, "other", models.RoleMember)

	_, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)
	_, err = svc.CreateReservation(ctx, candidateFor(otherID, 1, 14), otherID)
	require.NoError(t, err)

	all, err := svc.ListReservations(ctx, adminID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ListReservations(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, memberID, mine[0].RequesterID)
}

func TestCheckInLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	// Check-in requires a confirmed reservation.
	_, err = svc.CheckIn(ctx, created.ID, memberID)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)

	_, err = svc.ApproveReservation(ctx, created.ID, adminID)
	require.NoError(t, err)

	updated, err := svc.CheckIn(ctx, created.ID, memberID)
	require.NoError(t, err)
	assert.True(t, updated.CheckedIn)
}

func TestSweepExpiredResolvesConfirmed(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	attended, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 9), memberID)
	require.NoError(t, err)
	skipped, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 12), memberID)
	require.NoError(t, err)
	pending, err := svc.CreateReservation(ctx, candidateFor(memberID, 2, 9), memberID)
	require.NoError(t, err)

	_, err = svc.ApproveReservation(ctx, attended.ID, adminID)
	require.NoError(t, err)
	_, err = svc.ApproveReservation(ctx, skipped.ID, adminID)
	require.NoError(t, err)

	_, err = svc.CheckIn(ctx, attended.ID, memberID)
	require.NoError(t, err)

	now := time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC)
	swept, err := svc.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	stored, err := db.GetReservation(ctx, attended.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	stored, err = db.GetReservation(ctx, skipped.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, stored.Status)

	// Pending rows are not the sweeper's business.
	stored, err = db.GetReservation(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)

	// Second pass has nothing left to do.
	swept, err = svc.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestStatusCountsAdminOnly(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	memberID := seedUser(t, db, "member", models.RoleMember)

	_, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	_, err = svc.StatusCounts(ctx, memberID)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	counts, err := svc.StatusCounts(ctx, adminID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Pending)
}

func TestSpaceSchedule(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	memberID := seedUser(t, db, "member", models.RoleMember)

	created, err := svc.CreateReservation(ctx, candidateFor(memberID, 1, 10), memberID)
	require.NoError(t, err)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	schedule, err := svc.SpaceSchedule(ctx, 1, day, memberID)
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, created.ID, schedule[0].ID)

	other, err := svc.SpaceSchedule(ctx, 2, day, memberID)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = svc.SpaceSchedule(ctx, 99, day, memberID)
	assert.ErrorIs(t, err, database.ErrSpaceUnknown)
}

func TestSpaceScheduleScopedForNonAdmins(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	adminID := seedUser(t, db, "admin", models.RoleAdmin)
	ownerID := seedUser(t, db, "owner", models.RoleMember)
	viewerID := seedUser(t, db, "viewer", models.RoleMember)

	owned, err := svc.CreateReservation(ctx, candidateFor(ownerID, 1, 10), ownerID)
	require.NoError(t, err)

	rejected, err := svc.CreateReservation(ctx, candidateFor(viewerID, 1, 14), viewerID)
	require.NoError(t, err)
	_, err = svc.RejectReservation(ctx, rejected.ID, adminID, "double booked")
	require.NoError(t, err)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	// Another member sees the occupied window but nothing identifying:
	// no requester, no purpose, and no rejection reason anywhere.
	schedule, err := svc.SpaceSchedule(ctx, 1, day, viewerID)
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, owned.ID, schedule[0].ID)
	assert.Zero(t, schedule[0].RequesterID)
	assert.Empty(t, schedule[0].Purpose)
	assert.Empty(t, schedule[0].Notes)
	assert.True(t, schedule[0].StartTime.Equal(owned.StartTime))

	// The owner sees their own row unredacted.
	schedule, err = svc.SpaceSchedule(ctx, 1, day, ownerID)
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, ownerID, schedule[0].RequesterID)
	assert.Equal(t, "study group", schedule[0].Purpose)

	// Admins see everything, rejected rows and reasons included.
	schedule, err = svc.SpaceSchedule(ctx, 1, day, adminID)
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	statuses := map[string]string{}
	for _, r := range schedule {
		statuses[r.Status] = r.Notes
	}
	assert.Equal(t, "double booked", statuses[models.StatusRejected])
}
