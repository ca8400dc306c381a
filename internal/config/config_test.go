package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"espacio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  name: espacio
  environment: test
  version: "1.0.0"
database:
  path: /tmp/espacio-test.db
api:
  enabled: true
  http:
    port: 9000
booking:
  operating_hours:
    open: "09:00"
    close: "18:00"
  lock_timeout_seconds: 5
admins:
  - 1
  - 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "espacio", cfg.App.Name)
	assert.Equal(t, "/tmp/espacio-test.db", cfg.Database.Path)
	assert.Equal(t, 9000, cfg.API.HTTP.Port)
	assert.Equal(t, "09:00", cfg.Booking.OperatingHours.Open)
	assert.Equal(t, 5*time.Second, cfg.Booking.LockTimeout())
	assert.Equal(t, []int64{1, 2}, cfg.Admins)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/espacio-test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "x-user-id", cfg.API.Auth.HeaderUserID)
	assert.Equal(t, "08:00", cfg.Booking.OperatingHours.Open)
	assert.Equal(t, "20:00", cfg.Booking.OperatingHours.Close)
	assert.Equal(t, 3*time.Second, cfg.Booking.LockTimeout())
	assert.Equal(t, 60*time.Second, cfg.Booking.SweepInterval())
	assert.Equal(t, 300*time.Second, cfg.Booking.CacheTTL())
	assert.Equal(t, float64(10), cfg.API.RateLimit.RPS)
	assert.Equal(t, 5, cfg.API.RateLimit.Burst)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("ESPACIO_TEST_DB", "/tmp/from-env.db")
	path := writeConfig(t, `
database:
  path: ${ESPACIO_TEST_DB}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
}

func TestLoadRejectsMissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
app:
  name: espacio
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadOperatingHours(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/espacio-test.db
booking:
  operating_hours:
    open: "21:00"
    close: "08:00"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestOperatingHoursMinutes(t *testing.T) {
	open, close, err := OperatingHours{Open: "08:00", Close: "20:30"}.Minutes()
	require.NoError(t, err)
	assert.Equal(t, 480, open)
	assert.Equal(t, 1230, close)

	_, _, err = OperatingHours{Open: "8am", Close: "20:00"}.Minutes()
	assert.Error(t, err)
}

func TestValidateSpaces(t *testing.T) {
	err := ValidateSpaces([]models.Space{
		{ID: 1, Name: "Aula"},
		{ID: 2, Name: "Lab"},
	})
	assert.NoError(t, err)

	err = ValidateSpaces([]models.Space{
		{ID: 1, Name: "Aula"},
		{ID: 1, Name: "Duplicate"},
	})
	assert.Error(t, err)

	err = ValidateSpaces([]models.Space{{ID: 0, Name: "Zero"}})
	assert.Error(t, err)
}
