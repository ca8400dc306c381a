package repository

import (
	"context"
	"sync/atomic"
	"time"

	"espacio/internal/domain"
	"espacio/internal/models"

	"github.com/rs/zerolog"
)

// FailoverScheduleCache prefers the primary (Redis) cache and falls back
// to the in-memory cache while the primary is down, probing for recovery
// once a minute.
type FailoverScheduleCache struct {
	primary   domain.ScheduleCache
	fallback  domain.ScheduleCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed probe
}

func NewFailoverScheduleCache(primary, fallback domain.ScheduleCache, logger *zerolog.Logger) *FailoverScheduleCache {
	return &FailoverScheduleCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FailoverScheduleCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("primary schedule cache failed, falling back to memory")
	c.isDown.Store(true)
	c.lastCheck.Store(time.Now().UnixNano())
}

// shouldProbe reports whether enough time has passed to retry the primary.
func (c *FailoverScheduleCache) shouldProbe() bool {
	return time.Since(time.Unix(0, c.lastCheck.Load())) > time.Minute
}

func (c *FailoverScheduleCache) GetSchedule(ctx context.Context, spaceID int64, day time.Time) ([]*models.Reservation, error) {
	if !c.isDown.Load() {
		reservations, err := c.primary.GetSchedule(ctx, spaceID, day)
		if err == nil {
			return reservations, nil
		}
		c.markDown(err)
	} else if c.shouldProbe() {
		reservations, err := c.primary.GetSchedule(ctx, spaceID, day)
		if err == nil {
			c.isDown.Store(false)
			return reservations, nil
		}
		c.lastCheck.Store(time.Now().UnixNano())
	}

	return c.fallback.GetSchedule(ctx, spaceID, day)
}

func (c *FailoverScheduleCache) SetSchedule(ctx context.Context, spaceID int64, day time.Time, reservations []*models.Reservation) error {
	if !c.isDown.Load() {
		err := c.primary.SetSchedule(ctx, spaceID, day, reservations)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}

	return c.fallback.SetSchedule(ctx, spaceID, day, reservations)
}

func (c *FailoverScheduleCache) InvalidateSpace(ctx context.Context, spaceID int64) error {
	// Invalidation must reach both sides; stale fallback snapshots would
	// survive a primary recovery otherwise.
	var primaryErr error
	if !c.isDown.Load() {
		if primaryErr = c.primary.InvalidateSpace(ctx, spaceID); primaryErr != nil {
			c.markDown(primaryErr)
		}
	}

	if err := c.fallback.InvalidateSpace(ctx, spaceID); err != nil {
		return err
	}
	return primaryErr
}
