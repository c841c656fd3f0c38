package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps one sliding window of timestamps per key. It is not
// shared between processes; use RedisStore when running more than one.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	stamps  []time.Time
	expires time.Time
}

type MemoryOption func(*InMemoryStore)

func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{windows: make(map[string]*slidingWindow), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok {
		w = &slidingWindow{}
	}
	w.stamps = trim(w.stamps, now.Add(-window))
	if len(w.stamps) >= limit {
		reset := now.Add(window)
		if len(w.stamps) > 0 {
			reset = w.stamps[0].Add(window)
		}
		s.keep(key, w, window)
		return &Result{Limit: limit, ResetAt: reset, RetryAfter: retryAfter(now, reset)}, nil
	}

	w.stamps = append(w.stamps, now)
	s.keep(key, w, window)
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.stamps),
		ResetAt:   w.stamps[0].Add(window),
	}, nil
}

// keep stores w until its newest timestamp leaves the window; an empty
// window is dropped straight away.
func (s *InMemoryStore) keep(key string, w *slidingWindow, window time.Duration) {
	if len(w.stamps) == 0 {
		delete(s.windows, key)
		return
	}
	w.expires = w.stamps[len(w.stamps)-1].Add(window)
	s.windows[key] = w
}

func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// PurgeExpired drops keys with no timestamp left in their window and
// returns how many went.
func (s *InMemoryStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for key, w := range s.windows {
		if !now.Before(w.expires) {
			delete(s.windows, key)
			n++
		}
	}
	return n
}

// Len reports how many keys are tracked.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// trim drops timestamps at or before cutoff.
func trim(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
