package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

// window counts requests for one key until resetAt, like the INCR and
// PEXPIRE pair in the redis store.
type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps fixed windows per key in process. A window opens on the
// first counted request and admits Limit requests until Window has passed.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	ops     int
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{windows: map[string]*window{}, now: now}
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) Peek(_ context.Context, key string, q Quota) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.live(key, now)
	if w == nil {
		return windowResult(0, 0, q, true), nil
	}
	return windowResult(w.count, w.resetAt.Sub(now), q, w.count < int64(q.Limit)), nil
}

func (s *MemoryStore) Take(_ context.Context, key string, q Quota) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.ops++
	if s.ops%sweepEvery == 0 {
		s.sweep(now)
	}

	w := s.live(key, now)
	if w == nil {
		w = &window{resetAt: now.Add(q.Window)}
		s.windows[key] = w
	}
	w.count++
	return windowResult(w.count-1, w.resetAt.Sub(now), q, w.count <= int64(q.Limit)), nil
}

// live returns the open window of key, or nil once it has reset.
func (s *MemoryStore) live(key string, now time.Time) *window {
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		return nil
	}
	return w
}

func (s *MemoryStore) sweep(now time.Time) {
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}
