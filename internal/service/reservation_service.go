package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"espacio/internal/database"
	"espacio/internal/domain"
	"espacio/internal/events"
	"espacio/internal/metrics"
	"espacio/internal/models"

	"github.com/rs/zerolog"
)

// ReservationService is the admission controller and lifecycle engine:
// every reservation mutation funnels through here, where authorization,
// validation, conflict detection and the status state machine meet the
// storage contract.
type ReservationService struct {
	repo        domain.Repository
	cache       domain.ScheduleCache
	eventBus    domain.EventPublisher
	validator   *RequestValidator
	conflicts   *ConflictDetector
	locks       *spaceLocks
	lockTimeout time.Duration
	logger      *zerolog.Logger
}

func NewReservationService(
	repo domain.Repository,
	cache domain.ScheduleCache,
	eventBus domain.EventPublisher,
	validator *RequestValidator,
	lockTimeout time.Duration,
	logger *zerolog.Logger,
) *ReservationService {
	if lockTimeout <= 0 {
		lockTimeout = models.DefaultLockTimeoutSeconds * time.Second
	}
	return &ReservationService{
		repo:        repo,
		cache:       cache,
		eventBus:    eventBus,
		validator:   validator,
		conflicts:   NewConflictDetector(repo),
		locks:       newSpaceLocks(),
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

// CreateReservation admits a candidate or rejects it. Steps: authorize,
// validate, then conflict-check and insert as one atomic unit under the
// per-space lock. Exactly one of any set of mutually-overlapping
// concurrent candidates commits as pending.
func (s *ReservationService) CreateReservation(ctx context.Context, candidate *models.Reservation, actorID int64) (*models.Reservation, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if !Decide(actor, models.ActionCreate, candidate) {
		return nil, &AuthorizationError{ActorID: actorID, Action: models.ActionCreate}
	}

	if err := s.validator.Validate(candidate); err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	release, err := s.locks.Acquire(lockCtx, candidate.SpaceID)
	if err != nil {
		s.logger.Warn().Int64("space_id", candidate.SpaceID).Msg("space lock timeout on create")
		return nil, err
	}
	defer release()

	conflict, err := s.conflicts.FindConflict(ctx, candidate.SpaceID, candidate.StartTime, candidate.EndTime, 0)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		metrics.IncConflict()
		return nil, conflictErrorFrom(conflict)
	}

	// The storage transaction re-checks the overlap as a backstop, so the
	// invariant holds even if the keyed lock were ever bypassed.
	conflict, err = s.repo.CreateReservationWithLock(ctx, candidate)
	if errors.Is(err, database.ErrSpaceOccupied) {
		metrics.IncConflict()
		return nil, conflictErrorFrom(conflict)
	}
	if err != nil {
		return nil, err
	}

	metrics.IncCreated()
	s.invalidateSchedule(ctx, candidate.SpaceID)
	s.publishEvent(events.EventReservationCreated, candidate, actorID)

	s.logger.Info().
		Int64("reservation_id", candidate.ID).
		Int64("space_id", candidate.SpaceID).
		Int64("requester_id", candidate.RequesterID).
		Time("start", candidate.StartTime).
		Time("end", candidate.EndTime).
		Msg("reservation created")

	return candidate, nil
}

// ApproveReservation moves a pending reservation to confirmed. Admin only.
func (s *ReservationService) ApproveReservation(ctx context.Context, id, actorID int64) (*models.Reservation, error) {
	return s.transition(ctx, id, actorID, models.ActionApprove, models.StatusConfirmed, "", events.EventReservationConfirmed)
}

// RejectReservation moves a pending reservation to rejected, recording
// the reason. Admin only.
func (s *ReservationService) RejectReservation(ctx context.Context, id, actorID int64, reason string) (*models.Reservation, error) {
	return s.transition(ctx, id, actorID, models.ActionReject, models.StatusRejected, reason, events.EventReservationRejected)
}

// CancelReservation moves a confirmed reservation to cancelled, recording
// the reason. Admin only (emergency cancellation).
func (s *ReservationService) CancelReservation(ctx context.Context, id, actorID int64, reason string) (*models.Reservation, error) {
	return s.transition(ctx, id, actorID, models.ActionCancel, models.StatusCancelled, reason, events.EventReservationCancelled)
}

func (s *ReservationService) transition(ctx context.Context, id, actorID int64, action, target, reason, eventType string) (*models.Reservation, error) {
	reservation, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if !Decide(actor, action, reservation) {
		return nil, &AuthorizationError{ActorID: actorID, Action: action}
	}

	rule, err := findTransition(reservation.Status, target)
	if err != nil {
		return nil, err
	}
	if rule.RequireNotes && strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Rule: RuleReasonRequired, Message: "a non-empty reason is required"}
	}

	err = s.repo.CompareAndSwapStatus(ctx, id, reservation.Status, target, strings.TrimSpace(reason))
	if errors.Is(err, database.ErrConcurrentModification) {
		// A concurrent transition won; report the state change that
		// actually failed instead of overwriting.
		current, getErr := s.repo.GetReservation(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &TransitionError{From: current.Status, To: target}
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(target)
	s.invalidateSchedule(ctx, updated.SpaceID)
	s.publishEvent(eventType, updated, actorID)

	s.logger.Info().
		Int64("reservation_id", id).
		Str("from", reservation.Status).
		Str("to", target).
		Int64("actor_id", actorID).
		Msg("reservation transitioned")

	return updated, nil
}

// CheckIn records attendance on a confirmed reservation. Owner or admin.
func (s *ReservationService) CheckIn(ctx context.Context, id, actorID int64) (*models.Reservation, error) {
	reservation, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if !Decide(actor, models.ActionCheckIn, reservation) {
		return nil, &AuthorizationError{ActorID: actorID, Action: models.ActionCheckIn}
	}

	if reservation.Status != models.StatusConfirmed {
		return nil, &TransitionError{From: reservation.Status, To: models.StatusConfirmed}
	}

	if err := s.repo.SetCheckedIn(ctx, id); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			current, getErr := s.repo.GetReservation(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, &TransitionError{From: current.Status, To: models.StatusConfirmed}
		}
		return nil, err
	}

	return s.repo.GetReservation(ctx, id)
}

// DeleteReservation hard-removes a record. Owner or admin, any status.
func (s *ReservationService) DeleteReservation(ctx context.Context, id, actorID int64) error {
	reservation, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return err
	}

	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}

	if !Decide(actor, models.ActionDelete, reservation) {
		return &AuthorizationError{ActorID: actorID, Action: models.ActionDelete}
	}

	if err := s.repo.DeleteReservation(ctx, id); err != nil {
		return err
	}

	s.invalidateSchedule(ctx, reservation.SpaceID)
	s.publishEvent(events.EventReservationDeleted, reservation, actorID)

	s.logger.Info().Int64("reservation_id", id).Int64("actor_id", actorID).Msg("reservation deleted")
	return nil
}

// ListReservations returns reservations visible to the actor: all rows
// for admins, own rows for everyone else.
func (s *ReservationService) ListReservations(ctx context.Context, actorID int64) ([]*models.Reservation, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if CanListAll(actor) {
		return s.repo.ListAllReservations(ctx)
	}
	return s.repo.ListReservationsByRequester(ctx, actorID)
}

// SpaceSchedule returns one day of reservations for a space from the
// cache, falling back to storage on a miss. The read is an unlocked,
// eventually-consistent snapshot. Admins see every row; everyone else
// sees their own rows plus the occupied windows of others, with the
// requester, purpose and notes of foreign rows stripped.
func (s *ReservationService) SpaceSchedule(ctx context.Context, spaceID int64, day time.Time, actorID int64) ([]*models.Reservation, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if !s.repo.SpaceExists(spaceID) {
		return nil, database.ErrSpaceUnknown
	}

	var reservations []*models.Reservation
	if s.cache != nil {
		if cached, err := s.cache.GetSchedule(ctx, spaceID, day); err == nil && cached != nil {
			reservations = cached
		}
	}

	if reservations == nil {
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		reservations, err = s.repo.ListReservationsForSpaceRange(ctx, spaceID, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.SetSchedule(ctx, spaceID, day, reservations); err != nil {
				s.logger.Warn().Err(err).Int64("space_id", spaceID).Msg("schedule cache write failed")
			}
		}
	}

	if CanListAll(actor) {
		return reservations, nil
	}
	return scopeSchedule(reservations, actorID), nil
}

// scopeSchedule narrows a day view for non-admin callers: inactive rows
// drop out entirely, the caller's own rows pass through, and other
// users' rows shrink to an anonymous occupied window.
func scopeSchedule(reservations []*models.Reservation, actorID int64) []*models.Reservation {
	scoped := make([]*models.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if !r.Active() {
			continue
		}
		if r.RequesterID == actorID {
			scoped = append(scoped, r)
			continue
		}
		scoped = append(scoped, &models.Reservation{
			ID:        r.ID,
			SpaceID:   r.SpaceID,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Status:    r.Status,
		})
	}
	return scoped
}

// Spaces lists all active spaces from the reference-data cache.
func (s *ReservationService) Spaces() []models.Space {
	return s.repo.GetSpaces()
}

// StatusCounts returns the admin dashboard tallies.
func (s *ReservationService) StatusCounts(ctx context.Context, actorID int64) (*models.StatusCounts, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !CanListAll(actor) {
		return nil, &AuthorizationError{ActorID: actorID, Action: models.ActionList}
	}
	return s.repo.GetStatusCounts(ctx)
}

// SweepExpired is the time-driven pass resolving confirmed reservations
// whose window has elapsed: checked-in ones complete, the rest are
// no-shows. Idempotent: a reservation already moved by a concurrent pass
// is skipped, not an error.
func (s *ReservationService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpiredConfirmed(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, r := range expired {
		target := models.StatusNoShow
		eventType := events.EventReservationNoShow
		if r.CheckedIn {
			target = models.StatusCompleted
			eventType = events.EventReservationCompleted
		}

		err := s.repo.CompareAndSwapStatus(ctx, r.ID, models.StatusConfirmed, target, "")
		if errors.Is(err, database.ErrConcurrentModification) || errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return swept, err
		}

		r.Status = target
		metrics.IncTransition(target)
		s.invalidateSchedule(ctx, r.SpaceID)
		s.publishEvent(eventType, r, 0)
		swept++
	}

	metrics.IncSweep()
	return swept, nil
}

func (s *ReservationService) invalidateSchedule(ctx context.Context, spaceID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSpace(ctx, spaceID); err != nil {
		s.logger.Warn().Err(err).Int64("space_id", spaceID).Msg("schedule cache invalidation failed")
	}
}

func (s *ReservationService) publishEvent(eventType string, r *models.Reservation, actorID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		RequesterID:   r.RequesterID,
		SpaceID:       r.SpaceID,
		Status:        r.Status,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Notes:         r.Notes,
		ChangedBy:     actorID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}

func conflictErrorFrom(conflict *models.Reservation) *ConflictError {
	if conflict == nil {
		return &ConflictError{}
	}
	return &ConflictError{
		ReservationID: conflict.ID,
		SpaceID:       conflict.SpaceID,
		Start:         conflict.StartTime,
		End:           conflict.EndTime,
	}
}
