package repository

import (
	"context"
	"sync"
	"time"

	"espacio/internal/models"
)

// MemoryScheduleCache is the in-process fallback cache used when Redis is
// unavailable or not configured.
type MemoryScheduleCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	bySpace map[int64][]string
	ttl     time.Duration
}

type memoryEntry struct {
	reservations []*models.Reservation
	expiresAt    time.Time
}

func NewMemoryScheduleCache(ttl time.Duration) *MemoryScheduleCache {
	return &MemoryScheduleCache{
		entries: make(map[string]memoryEntry),
		bySpace: make(map[int64][]string),
		ttl:     ttl,
	}
}

func (m *MemoryScheduleCache) GetSchedule(ctx context.Context, spaceID int64, day time.Time) ([]*models.Reservation, error) {
	key := scheduleKey(spaceID, day)

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	if entry.reservations == nil {
		return []*models.Reservation{}, nil
	}
	return entry.reservations, nil
}

func (m *MemoryScheduleCache) SetSchedule(ctx context.Context, spaceID int64, day time.Time, reservations []*models.Reservation) error {
	key := scheduleKey(spaceID, day)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		m.bySpace[spaceID] = append(m.bySpace[spaceID], key)
	}
	m.entries[key] = memoryEntry{reservations: reservations, expiresAt: time.Now().Add(m.ttl)}
	return nil
}

func (m *MemoryScheduleCache) InvalidateSpace(ctx context.Context, spaceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.bySpace[spaceID] {
		delete(m.entries, key)
	}
	delete(m.bySpace, spaceID)
	return nil
}
