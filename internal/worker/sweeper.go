package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper drives the time-based lifecycle edges: confirmed reservations
// whose window has elapsed become completed or no-show. The pass is
// idempotent, so overlapping or repeated runs are harmless.
type Sweeper struct {
	service  SweepService
	interval time.Duration
	retry    RetryPolicy
	logger   *zerolog.Logger
}

// SweepService is the slice of the reservation service the sweeper needs.
type SweepService interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

func NewSweeper(service SweepService, interval time.Duration, retry RetryPolicy, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{service: service, interval: interval, retry: retry.withDefaults(), logger: logger}
}

// Start blocks until ctx is cancelled, sweeping every interval.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("completion sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("completion sweeper stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		swept, err := s.service.SweepExpired(ctx, time.Now())
		if err == nil {
			if swept > 0 {
				s.logger.Info().Int("swept", swept).Msg("resolved expired reservations")
			}
			return
		}

		if attempt > s.retry.MaxRetries || ctx.Err() != nil {
			s.logger.Error().Err(err).Int("attempts", attempt).Msg("sweep failed")
			return
		}

		delay := s.retry.NextDelay(attempt)
		s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("sweep error, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
