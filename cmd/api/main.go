package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"espacio/internal/api"
	"espacio/internal/config"
	"espacio/internal/database"
	"espacio/internal/domain"
	"espacio/internal/events"
	"espacio/internal/export"
	"espacio/internal/logging"
	"espacio/internal/metrics"
	"espacio/internal/models"
	"espacio/internal/repository"
	"espacio/internal/service"
	"espacio/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	spaces, err := loadSpaces(logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, spaces, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedAdmins(cfg, db, logger); err != nil {
		return err
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	cache := initScheduleCache(cfg, redisClient, logger)
	eventBus := events.NewEventBus()

	validator, err := service.NewRequestValidator(cfg.Booking.OperatingHours, db)
	if err != nil {
		return fmt.Errorf("init validator: %w", err)
	}

	svc := service.NewReservationService(db, cache, eventBus, validator, cfg.Booking.LockTimeout(), logger)
	userSvc := service.NewUserService(db, logger)
	exporter := export.NewExcelExporter(db, cfg.Exports.Path)
	httpServer := api.NewHTTPServer(cfg.API, svc, userSvc, exporter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := worker.NewSweeper(svc, cfg.Booking.SweepInterval(), worker.RetryPolicy{}, logger)
	go sweeper.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

func loadSpaces(logger *zerolog.Logger) ([]models.Space, error) {
	spacesPath := os.Getenv("SPACES_PATH")
	if spacesPath == "" {
		spacesPath = "configs/spaces.yaml"
	}
	spacesData, err := os.ReadFile(spacesPath)
	if err != nil {
		logger.Error().Err(err).Str("spaces_path", spacesPath).Msg("read spaces")
		return nil, err
	}

	var spacesConfig struct {
		Spaces []models.Space `yaml:"spaces"`
	}
	if err := yaml.Unmarshal(spacesData, &spacesConfig); err != nil {
		logger.Error().Err(err).Str("spaces_path", spacesPath).Msg("parse spaces")
		return nil, err
	}

	if err := config.ValidateSpaces(spacesConfig.Spaces); err != nil {
		return nil, err
	}
	return spacesConfig.Spaces, nil
}

func initDatabase(cfg *config.Config, spaces []models.Space, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	db.SetSpaces(spaces)
	return db, nil
}

// seedAdmins guarantees the configured admin IDs exist with the admin
// role, so a fresh database has at least one actor able to approve.
func seedAdmins(cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, adminID := range cfg.Admins {
		if err := db.EnsureAdmin(ctx, adminID); err != nil {
			return err
		}
	}

	if len(cfg.Admins) > 0 {
		logger.Info().Int("count", len(cfg.Admins)).Msg("admin users seeded")
	}
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initScheduleCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.ScheduleCache {
	memory := repository.NewMemoryScheduleCache(cfg.Booking.CacheTTL())
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisScheduleCache(redisClient, cfg.Booking.CacheTTL())
	return repository.NewFailoverScheduleCache(primary, memory, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
