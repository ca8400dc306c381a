package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"espacio/internal/config"

	"github.com/rs/zerolog"
)

// BackupService snapshots the reservations database on a schedule using
// VACUUM INTO over the live connection.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{db: db, config: cfg, logger: logger}
}

func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("backup service disabled")
		return
	}

	interval := 24 * time.Hour
	if s.config.Schedule != "" {
		if d, err := time.ParseDuration(s.config.Schedule); err == nil {
			interval = d
		} else {
			s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("unparsable backup schedule, using 24h")
		}
	}

	s.logger.Info().Dur("interval", interval).Msg("backup service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.Backup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Backup(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.cleanupOldBackups()
		}
	}
}

// Backup writes one snapshot file named by timestamp.
func (s *BackupService) Backup(ctx context.Context) error {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("reservations_%s.db", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.config.StoragePath, name)

	// VACUUM INTO is a consistent online snapshot; no writer lock needed.
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", path)); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("backup completed")
	return nil
}

func (s *BackupService) cleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup directory for cleanup")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("deleting old backup")
			os.Remove(filepath.Join(s.config.StoragePath, file.Name()))
		}
	}
}
