package cache

import (
	"context"
	"sync"
	"time"
)

type attemptWindow struct {
	count     int
	expiresAt time.Time
}

// MemoryAttemptStore is the in-process AttemptStore. A fixed window per
// IP: the first attempt opens it, later attempts bump the counter, and
// count and deadline vanish together when the window closes.
type MemoryAttemptStore struct {
	mu          sync.Mutex
	windows     map[string]*attemptWindow
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewMemoryAttemptStore creates an attempt store blocking an IP after
// maxAttempts hits inside one window.
func NewMemoryAttemptStore(maxAttempts int, window time.Duration) *MemoryAttemptStore {
	return &MemoryAttemptStore{
		windows:     make(map[string]*attemptWindow),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// WithClock overrides the store's clock. Intended for tests.
func (s *MemoryAttemptStore) WithClock(now func() time.Time) *MemoryAttemptStore {
	s.now = now
	return s
}

// Record implements AttemptStore.Record.
func (s *MemoryAttemptStore) Record(_ context.Context, ip string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[ip]
	if !ok || !now.Before(w.expiresAt) {
		s.windows[ip] = &attemptWindow{count: 1, expiresAt: now.Add(s.window)}
		return nil
	}
	w.count++
	return nil
}

// IsBlocked implements AttemptStore.IsBlocked.
func (s *MemoryAttemptStore) IsBlocked(_ context.Context, ip string) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[ip]
	if !ok {
		return false, nil
	}
	if !now.Before(w.expiresAt) {
		delete(s.windows, ip)
		return false, nil
	}
	return w.count >= s.maxAttempts, nil
}

var _ AttemptStore = (*MemoryAttemptStore)(nil)
