package service

import (
	"context"
	"sync"

	"espacio/internal/database"
)

// spaceLocks serializes admission per space so concurrent creates for the
// same space queue instead of racing, while different spaces proceed
// independently. Acquisition is bounded by the caller's context; a
// blocked creator surfaces a retryable timeout instead of starving.
type spaceLocks struct {
	mu    sync.Mutex
	locks map[int64]chan struct{}
}

func newSpaceLocks() *spaceLocks {
	return &spaceLocks{locks: make(map[int64]chan struct{})}
}

func (l *spaceLocks) lockFor(spaceID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[spaceID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[spaceID] = ch
	}
	return ch
}

// Acquire blocks until the per-space token is held or ctx expires.
// The returned release function must be called exactly once.
func (l *spaceLocks) Acquire(ctx context.Context, spaceID int64) (func(), error) {
	ch := l.lockFor(spaceID)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, database.ErrLockTimeout
	}
}
