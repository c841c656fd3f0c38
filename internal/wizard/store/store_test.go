package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"taxportal/internal/wizard/models"
	"taxportal/pkg/platform/sentinel"
)

type entryStore interface {
	Load(ctx context.Context, key models.Key) (*models.Entry, error)
	Save(ctx context.Context, key models.Key, entry *models.Entry, ttl time.Duration) error
	Delete(ctx context.Context, key models.Key) error
}

// StoreContractSuite runs the same cache semantics against every store.
// expire moves the store's notion of time past ttl.
type StoreContractSuite struct {
	suite.Suite
	newStore func() (entryStore, func(time.Duration))
	store    entryStore
	expire   func(time.Duration)
	key      models.Key
}

func (s *StoreContractSuite) SetupTest() {
	s.store, s.expire = s.newStore()
	s.key = models.Key{Wizard: "lbtt-return", Session: "session-1"}
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newStore: func() (entryStore, func(time.Duration)) {
		now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
		st := NewInMemory(WithClock(func() time.Time { return now }))
		return st, func(d time.Duration) { now = now.Add(d) }
	}})
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newStore: func() (entryStore, func(time.Duration)) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return NewRedis(client), mr.FastForward
	}})
}

func (s *StoreContractSuite) newEntry() *models.Entry {
	return &models.Entry{
		Wizard: "lbtt-return",
		Step:   "property",
		History: []string{
			"return_type",
		},
		Model: models.Document{"return_type": "conveyance"},
	}
}

func (s *StoreContractSuite) TestLoadMissing() {
	_, err := s.store.Load(context.Background(), s.key)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestSaveAndLoad() {
	ctx := context.Background()
	entry := s.newEntry()

	s.Require().NoError(s.store.Save(ctx, s.key, entry, time.Hour))
	s.Equal(int64(1), entry.Version)

	got, err := s.store.Load(ctx, s.key)
	s.Require().NoError(err)
	s.Equal("property", got.Step)
	s.Equal([]string{"return_type"}, got.History)
	s.Equal("conveyance", got.Model["return_type"])
	s.Equal(int64(1), got.Version)
}

func (s *StoreContractSuite) TestScopedBySession() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.key, s.newEntry(), time.Hour))

	_, err := s.store.Load(ctx, models.Key{Wizard: s.key.Wizard, Session: "session-2"})
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Load(ctx, models.Key{Wizard: "slft-return", Session: s.key.Session})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestOptimisticSave() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.key, s.newEntry(), time.Hour))

	s.Run("matching version advances", func() {
		first, err := s.store.Load(ctx, s.key)
		s.Require().NoError(err)
		first.Step = "transaction"
		s.Require().NoError(s.store.Save(ctx, s.key, first, time.Hour))
		s.Equal(int64(2), first.Version)
	})

	s.Run("stale version conflicts", func() {
		stale := s.newEntry()
		stale.Version = 1
		s.ErrorIs(s.store.Save(ctx, s.key, stale, time.Hour), sentinel.ErrConflict)
		s.Equal(int64(1), stale.Version)

		got, err := s.store.Load(ctx, s.key)
		s.Require().NoError(err)
		s.Equal("transaction", got.Step)
	})

	s.Run("version zero overwrites and keeps counting", func() {
		fresh := s.newEntry()
		s.Require().NoError(s.store.Save(ctx, s.key, fresh, time.Hour))
		s.Equal(int64(3), fresh.Version)
	})

	s.Run("saving a vanished entry is not found", func() {
		s.Require().NoError(s.store.Delete(ctx, s.key))
		gone := s.newEntry()
		gone.Version = 3
		s.ErrorIs(s.store.Save(ctx, s.key, gone, time.Hour), sentinel.ErrNotFound)
	})
}

func (s *StoreContractSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.key, s.newEntry(), time.Minute))

	s.expire(2 * time.Minute)

	_, err := s.store.Load(ctx, s.key)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestDeleteIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.key, s.newEntry(), time.Hour))
	s.Require().NoError(s.store.Delete(ctx, s.key))
	s.Require().NoError(s.store.Delete(ctx, s.key))

	_, err := s.store.Load(ctx, s.key)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestRejectsIncompleteKey() {
	err := s.store.Save(context.Background(), models.Key{Wizard: "lbtt-return"}, s.newEntry(), time.Hour)
	s.Error(err)
}

func TestPurgeExpired(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	st := NewInMemory(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_ = st.Save(ctx, models.Key{Wizard: "w", Session: "a"}, &models.Entry{}, time.Minute)
	_ = st.Save(ctx, models.Key{Wizard: "w", Session: "b"}, &models.Entry{}, time.Hour)
	now = now.Add(10 * time.Minute)

	if n := st.PurgeExpired(); n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
}
