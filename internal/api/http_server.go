package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"espacio/internal/config"
	"espacio/internal/export"
	"espacio/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the reservation API. Authentication of end users is
// the identity collaborator's job; requests arrive with an API key
// identifying the client application and a user id header identifying
// the acting user.
type HTTPServer struct {
	cfg      config.APIConfig
	service  *service.ReservationService
	users    *service.UserService
	exporter *export.ExcelExporter
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc *service.ReservationService, users *service.UserService, exporter *export.ExcelExporter, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, service: svc, users: users, exporter: exporter, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("POST /api/v1/reservations", srv.handleCreateReservation)
	mux.HandleFunc("GET /api/v1/reservations", srv.handleListReservations)
	mux.HandleFunc("POST /api/v1/reservations/{id}/approve", srv.handleApprove)
	mux.HandleFunc("POST /api/v1/reservations/{id}/reject", srv.handleReject)
	mux.HandleFunc("POST /api/v1/reservations/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("POST /api/v1/reservations/{id}/checkin", srv.handleCheckIn)
	mux.HandleFunc("DELETE /api/v1/reservations/{id}", srv.handleDelete)
	mux.HandleFunc("GET /api/v1/spaces", srv.handleSpaces)
	mux.HandleFunc("GET /api/v1/spaces/{id}/schedule", srv.handleSpaceSchedule)
	mux.HandleFunc("GET /api/v1/admin/stats", srv.handleStats)
	mux.HandleFunc("GET /api/v1/admin/export", srv.handleExport)
	mux.HandleFunc("GET /api/v1/admin/users", srv.handleListUsers)
	mux.HandleFunc("POST /api/v1/admin/users", srv.handleUpsertUser)
	mux.HandleFunc("PUT /api/v1/admin/users/{id}/role", srv.handleSetUserRole)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the configured handler chain, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// actorID extracts the acting user from the configured header.
func (s *HTTPServer) actorID(r *http.Request) (int64, error) {
	header := s.cfg.Auth.HeaderUserID
	if header == "" {
		header = "x-user-id"
	}
	raw := strings.TrimSpace(r.Header.Get(header))
	if raw == "" {
		return 0, fmt.Errorf("missing %s header", header)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s header", header)
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id in path")
	}
	return id, nil
}

// HTTPAuth provides API-key auth and per-key rate limiting.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled && len(a.clients) > 0 {
			if err := a.checkAuth(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKeyHeader := headerOrDefault(a.cfg.Auth.HeaderAPIKey, "x-api-key")
	extraHeader := headerOrDefault(a.cfg.Auth.HeaderExtra, "x-api-extra")

	apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	extra := strings.TrimSpace(r.Header.Get(extraHeader))
	if apiKey == "" || extra == "" {
		return fmt.Errorf("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return fmt.Errorf("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return fmt.Errorf("invalid extra header")
	}
	return nil
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	lim := a.getLimiter(a.clientKey(r))
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	apiKeyHeader := headerOrDefault(a.cfg.Auth.HeaderAPIKey, "x-api-key")
	if apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func headerOrDefault(name, fallback string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return fallback
	}
	return name
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
