package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"espacio/internal/config"
	"espacio/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisScheduleCache stores per-space per-day schedule snapshots.
// Snapshots feed the unlocked read path and are invalidated on every
// mutation touching the space.
type RedisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisScheduleCache(client *redis.Client, ttl time.Duration) *RedisScheduleCache {
	return &RedisScheduleCache{client: client, ttl: ttl}
}

func scheduleKey(spaceID int64, day time.Time) string {
	return fmt.Sprintf("schedule:%d:%s", spaceID, day.Format("2006-01-02"))
}

func spaceIndexKey(spaceID int64) string {
	return fmt.Sprintf("schedule_days:%d", spaceID)
}

func (r *RedisScheduleCache) GetSchedule(ctx context.Context, spaceID int64, day time.Time) ([]*models.Reservation, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, scheduleKey(spaceID, day)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule from redis: %w", err)
	}

	var reservations []*models.Reservation
	if err := json.Unmarshal([]byte(val), &reservations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	if reservations == nil {
		reservations = []*models.Reservation{}
	}
	return reservations, nil
}

func (r *RedisScheduleCache) SetSchedule(ctx context.Context, spaceID int64, day time.Time, reservations []*models.Reservation) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if reservations == nil {
		reservations = []*models.Reservation{}
	}
	data, err := json.Marshal(reservations)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	key := scheduleKey(spaceID, day)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set schedule in redis: %w", err)
	}

	// Track the day keys per space so invalidation can find them.
	index := spaceIndexKey(spaceID)
	if err := r.client.SAdd(ctx, index, key).Err(); err != nil {
		return fmt.Errorf("failed to index schedule key: %w", err)
	}
	r.client.Expire(ctx, index, r.ttl)

	return nil
}

func (r *RedisScheduleCache) InvalidateSpace(ctx context.Context, spaceID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	index := spaceIndexKey(spaceID)
	keys, err := r.client.SMembers(ctx, index).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read schedule index: %w", err)
	}
	keys = append(keys, index)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate schedules: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
