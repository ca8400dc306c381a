package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"espacio/internal/database"
	"espacio/internal/metrics"
	"espacio/internal/models"
	"espacio/internal/service"
)

type createReservationRequest struct {
	RequesterID int64  `json:"requester_id"`
	SpaceID     int64  `json:"space_id"`
	CourseID    *int64 `json:"course_id,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Purpose     string `json:"purpose"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")

	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body createReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := time.Parse(time.RFC3339, body.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time; expected RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, body.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time; expected RFC3339")
		return
	}

	candidate := &models.Reservation{
		RequesterID: body.RequesterID,
		SpaceID:     body.SpaceID,
		CourseID:    body.CourseID,
		StartTime:   start,
		EndTime:     end,
		Purpose:     body.Purpose,
	}

	created, err := s.service.CreateReservation(r.Context(), candidate, actorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_reservations")

	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservations, err := s.service.ListReservations(r.Context(), actorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if reservations == nil {
		reservations = []*models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("approve_reservation")
	s.handleTransition(w, r, func(id, actorID int64) (*models.Reservation, error) {
		return s.service.ApproveReservation(r.Context(), id, actorID)
	})
}

func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reject_reservation")
	s.handleTransitionWithReason(w, r, s.service.RejectReservation)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_reservation")
	s.handleTransitionWithReason(w, r, s.service.CancelReservation)
}

func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkin_reservation")
	s.handleTransition(w, r, func(id, actorID int64) (*models.Reservation, error) {
		return s.service.CheckIn(r.Context(), id, actorID)
	})
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request, fn func(id, actorID int64) (*models.Reservation, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := fn(id, actorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleTransitionWithReason(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actorID int64, reason string) (*models.Reservation, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := fn(r.Context(), id, actorID, body.Reason)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_reservation")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.DeleteReservation(r.Context(), id, actorID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "deleted"})
}

func (s *HTTPServer) handleSpaces(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_spaces")
	writeJSON(w, http.StatusOK, map[string]any{"spaces": s.service.Spaces()})
}

func (s *HTTPServer) handleSpaceSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("space_schedule")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dateStr := r.URL.Query().Get("date")
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	reservations, err := s.service.SpaceSchedule(r.Context(), id, day, actorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if reservations == nil {
		reservations = []*models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"space_id": id, "date": dateStr, "reservations": reservations})
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_stats")

	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := s.service.StatusCounts(r.Context(), actorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_export")

	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Export shares the admin-only stats gate.
	if _, err := s.service.StatusCounts(r.Context(), actorID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	startDate, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
		return
	}
	endDate, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
		return
	}

	path, err := s.exporter.Export(r.Context(), startDate, endDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Every
// typed error carries a human-readable reason; nothing is swallowed.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	var authErr *service.AuthorizationError
	var conflictErr *service.ConflictError
	var transitionErr *service.TransitionError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &authErr):
		writeError(w, http.StatusForbidden, authErr.Error())
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                   conflictErr.Error(),
			"conflicting_reservation": conflictErr.ReservationID,
			"conflicting_start":       conflictErr.Start,
			"conflicting_end":         conflictErr.End,
		})
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, transitionErr.Error())
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrSpaceUnknown):
		writeError(w, http.StatusNotFound, err.Error())
	case database.IsTransient(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error().Err(err).Msg("unexpected service error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
