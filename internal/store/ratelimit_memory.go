package store

import (
	"context"
	"sync"
	"time"
)

// RateLimitMemoryStore is an in-memory ratelimit.Store. Keys whose window
// has emptied are dropped on the next sweep, so idle clients do not pile up.
type RateLimitMemoryStore struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	now       func() time.Time
	lastSweep time.Time
	sweepEach time.Duration
	windows   map[string]time.Duration
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return NewRateLimitMemoryStoreWithClock(time.Now)
}

// NewRateLimitMemoryStoreWithClock creates a store reading time from now.
func NewRateLimitMemoryStoreWithClock(now func() time.Time) *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		requests:  make(map[string][]time.Time),
		windows:   make(map[string]time.Duration),
		now:       now,
		lastSweep: now(),
		sweepEach: time.Minute,
	}
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	valid := prune(s.requests[key], now.Add(-window))
	valid = append(valid, now)

	s.requests[key] = valid
	s.windows[key] = window

	if now.Sub(s.lastSweep) >= s.sweepEach {
		s.sweep(now)
	}

	return int64(len(valid)), nil
}

// Keys returns how many keys are tracked.
func (s *RateLimitMemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

func (s *RateLimitMemoryStore) sweep(now time.Time) {
	for key, timestamps := range s.requests {
		if valid := prune(timestamps, now.Add(-s.windows[key])); len(valid) == 0 {
			delete(s.requests, key)
			delete(s.windows, key)
		} else {
			s.requests[key] = valid
		}
	}

	s.lastSweep = now
}

// prune keeps timestamps strictly after cutoff. Timestamps are ascending.
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}

	return timestamps[i:]
}
