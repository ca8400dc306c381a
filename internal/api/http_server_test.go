package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"espacio/internal/config"
	"espacio/internal/database"
	"espacio/internal/events"
	"espacio/internal/export"
	"espacio/internal/models"
	"espacio/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *HTTPServer
	db     *database.DB
	ts     *httptest.Server
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()
	logger := zerolog.New(zerolog.NewConsoleWriter())

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetSpaces([]models.Space{
		{ID: 1, Name: "Aula Magna", Type: "classroom", IsActive: true},
		{ID: 2, Name: "Lab", Type: "lab", IsActive: true},
	})

	validator, err := service.NewRequestValidator(config.OperatingHours{Open: "08:00", Close: "20:00"}, db)
	require.NoError(t, err)

	svc := service.NewReservationService(db, nil, events.NewEventBus(), validator, 3*time.Second, &logger)
	userSvc := service.NewUserService(db, &logger)
	exporter := export.NewExcelExporter(db, t.TempDir())

	server := NewHTTPServer(cfg, svc, userSvc, exporter, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: server, db: db, ts: ts}
}

func seedAPIUser(t *testing.T, db *database.DB, name string, role models.Role) int64 {
	t.Helper()
	user := &models.User{Name: name, Email: name + "@example.com", Role: role}
	require.NoError(t, db.CreateOrUpdateUser(context.Background(), user))
	return user.ID
}

func TestAuthRejectsMissingKey(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k1", Extra: "e1", Name: "frontend"}},
		},
	})

	resp, err := http.Get(env.ts.URL + "/api/v1/spaces")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRejectsWrongExtra(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k1", Extra: "e1", Name: "frontend"}},
		},
	})

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/v1/spaces", nil)
	req.Header.Set("x-api-key", "k1")
	req.Header.Set("x-api-extra", "wrong")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthAcceptsValidKey(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k1", Extra: "e1", Name: "frontend"}},
		},
	})

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/v1/spaces", nil)
	req.Header.Set("x-api-key", "k1")
	req.Header.Set("x-api-extra", "e1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitPerClient(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 2},
	})

	got429 := false
	for i := 0; i < 5; i++ {
		resp, err := http.Get(env.ts.URL + "/api/v1/spaces")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			got429 = true
		}
	}
	assert.True(t, got429, "burst exhaustion should return 429")
}
