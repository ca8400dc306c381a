package api

import (
	"encoding/json"
	"net/http"

	"espacio/internal/metrics"
	"espacio/internal/models"
)

type upsertUserRequest struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role,omitempty"`
}

type setRoleRequest struct {
	Role models.Role `json:"role"`
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_list_users")

	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := s.users.ListUsers(r.Context(), actorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_upsert_user")

	actorID, err := s.actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body upsertUserRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user := &models.User{Name: body.Name, Email: body.Email, Role: body.Role}
	saved, err := s.users.UpsertUser(r.Context(), actorID, user)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *HTTPServer) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_set_user_role")

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

	var body setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := s.users.SetRole(r.Context(), actorID, id, body.Role)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
