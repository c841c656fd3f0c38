// Package store persists wizard entries between requests.
//
// Both implementations share the same contract: Load returns
// sentinel.ErrNotFound for missing or expired entries; Save is optimistic and
// compares entry.Version against the stored version (0 overwrites), bumping
// the version on success; Delete is idempotent.
package store

import (
	"context"
	"sync"
	"time"

	"taxportal/internal/wizard/models"
	"taxportal/pkg/platform/sentinel"
)

type memoryItem struct {
	data      []byte
	version   int64
	expiresAt time.Time
}

// InMemoryStore keeps encoded entries in process memory. Entries are stored
// encoded so callers never share maps with the store.
type InMemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{items: make(map[string]memoryItem), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Load(_ context.Context, key models.Key) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key.String())
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return models.DecodeEntry(item.data)
}

func (s *InMemoryStore) Save(_ context.Context, key models.Key, entry *models.Entry, ttl time.Duration) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	current, exists := s.live(k)
	if entry.Version != 0 {
		if !exists {
			return sentinel.ErrNotFound
		}
		if current.version != entry.Version {
			return sentinel.ErrConflict
		}
	}

	next := *entry
	next.Version = current.version + 1
	data, err := models.EncodeEntry(&next)
	if err != nil {
		return err
	}
	s.items[k] = memoryItem{data: data, version: next.Version, expiresAt: s.now().Add(ttl)}
	entry.Version = next.Version
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key.String())
	return nil
}

// PurgeExpired drops expired entries and returns how many went.
func (s *InMemoryStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for k, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// live returns the unexpired item at k. Caller holds mu.
func (s *InMemoryStore) live(k string) (memoryItem, bool) {
	item, ok := s.items[k]
	if !ok {
		return memoryItem{}, false
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, k)
		return memoryItem{}, false
	}
	return item, true
}
