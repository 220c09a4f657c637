package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mfi/backend/internal/domain/shared"
)

// InMemoryIdempotencyStore keeps processed-event marks in a local map.
// State is not shared across instances, so it only suits single-instance
// deployments and tests. A background sweep drops expired marks.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	marks     map[string]time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		marks: make(map[string]time.Time),
		stop:  make(chan struct{}),
	}
	store.wg.Add(1)
	go store.sweepLoop()
	return store
}

// MarkProcessed records the event ID for ttl. The first caller gets true,
// later callers get false until the mark expires.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.marks[eventID]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	s.marks[eventID] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed reports whether the event ID carries an unexpired mark.
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.marks[eventID]
	return ok && time.Now().Before(expiry), nil
}

// Size returns the number of marks, expired ones included.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.marks)
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for eventID, expiry := range s.marks {
		if now.After(expiry) {
			delete(s.marks, eventID)
		}
	}
}
