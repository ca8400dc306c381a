package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"espacio/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Admins     []int64          `yaml:"admins"`
	Exports    ExportConfig     `yaml:"exports"`
}

// BookingConfig holds admission-control policy knobs. Durations are
// plain seconds in the YAML.
type BookingConfig struct {
	OperatingHours       OperatingHours `yaml:"operating_hours"`
	LockTimeoutSeconds   int            `yaml:"lock_timeout_seconds"`
	SweepIntervalSeconds int            `yaml:"sweep_interval_seconds"`
	CacheTTLSeconds      int            `yaml:"cache_ttl_seconds"`
}

func (c BookingConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

func (c BookingConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c BookingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// OperatingHours is the daily window reservations must fall inside.
// Open is inclusive, Close is exclusive for starts and inclusive for ends,
// so a reservation may end exactly at closing time.
type OperatingHours struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// Minutes parses "HH:MM" into minutes since midnight.
func (h OperatingHours) Minutes() (open, close int, err error) {
	open, err = parseClock(h.Open)
	if err != nil {
		return 0, 0, fmt.Errorf("operating_hours.open: %w", err)
	}
	close, err = parseClock(h.Close)
	if err != nil {
		return 0, 0, fmt.Errorf("operating_hours.close: %w", err)
	}
	if open >= close {
		return 0, 0, errors.New("operating_hours: open must precede close")
	}
	return open, close, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	HeaderUserID string         `yaml:"header_user_id"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables referenced in the YAML are
	// expanded before parsing.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if _, _, err := c.Booking.OperatingHours.Minutes(); err != nil {
		return err
	}
	return nil
}

// ValidateSpaces rejects catalogs with missing or duplicate IDs.
func ValidateSpaces(spaces []models.Space) error {
	seen := make(map[int64]bool)
	for _, space := range spaces {
		if space.ID == 0 {
			return fmt.Errorf("space '%s' has invalid ID 0", space.Name)
		}
		if seen[space.ID] {
			return fmt.Errorf("duplicate space ID found: %d", space.ID)
		}
		seen[space.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.Auth.HeaderUserID == "" {
		c.API.Auth.HeaderUserID = "x-user-id"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = models.RateLimitRPS
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = models.RateLimitBurst
	}

	if c.Booking.OperatingHours.Open == "" {
		c.Booking.OperatingHours.Open = "08:00"
	}
	if c.Booking.OperatingHours.Close == "" {
		c.Booking.OperatingHours.Close = "20:00"
	}
	if c.Booking.LockTimeoutSeconds == 0 {
		c.Booking.LockTimeoutSeconds = models.DefaultLockTimeoutSeconds
	}
	if c.Booking.SweepIntervalSeconds == 0 {
		c.Booking.SweepIntervalSeconds = models.DefaultSweepIntervalSeconds
	}
	if c.Booking.CacheTTLSeconds == 0 {
		c.Booking.CacheTTLSeconds = models.DefaultScheduleCacheTTL
	}
}
