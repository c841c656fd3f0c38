package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 3
	testWindow = time.Minute
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// StoreSuite runs the same window checks against every Store.
type StoreSuite struct {
	suite.Suite
	newStore func(now func() time.Time) Store
	clock    *clock
	store    Store
	ctx      context.Context
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(now func() time.Time) Store {
		return NewInMemory(WithClock(now))
	}})
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	suite.Run(t, &StoreSuite{newStore: func(now func() time.Time) Store {
		mr.FlushAll()
		return NewRedis(client, WithRedisClock(now))
	}})
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	s.store = s.newStore(s.clock.now)
}

func (s *StoreSuite) allow(key string) *Result {
	res, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
	s.Require().NoError(err)
	return res
}

func (s *StoreSuite) TestAllowsUpToLimit() {
	for i := range testLimit {
		res := s.allow("resume:10.0.0.1")
		s.True(res.Allowed)
		s.Equal(testLimit-i-1, res.Remaining)
		s.clock.advance(time.Second)
	}

	res := s.allow("resume:10.0.0.1")
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.Equal(57, res.RetryAfter)
}

func (s *StoreSuite) TestKeysAreIndependent() {
	for range testLimit {
		s.allow("resume:10.0.0.1")
	}
	s.True(s.allow("resume:10.0.0.2").Allowed)
}

func (s *StoreSuite) TestWindowSlides() {
	s.allow("k")
	s.clock.advance(30 * time.Second)
	s.allow("k")
	s.allow("k")
	s.False(s.allow("k").Allowed)

	s.clock.advance(31 * time.Second)
	res := s.allow("k")
	s.True(res.Allowed, "the first request left the window")
	s.Equal(0, res.Remaining)
}

func (s *StoreSuite) TestReset() {
	for range testLimit {
		s.allow("k")
	}
	s.Require().NoError(s.store.Reset(s.ctx, "k"))
	s.True(s.allow("k").Allowed)
}

func TestInMemoryPurgeExpired(t *testing.T) {
	c := &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	st := NewInMemory(WithClock(c.now))
	ctx := context.Background()

	for _, ip := range []string{"reference:10.0.0.1", "reference:10.0.0.2"} {
		_, err := st.Allow(ctx, ip, testLimit, testWindow)
		require.NoError(t, err)
	}
	c.advance(30 * time.Second)
	_, err := st.Allow(ctx, "reference:10.0.0.2", testLimit, testWindow)
	require.NoError(t, err)

	assert.Equal(t, 0, st.PurgeExpired(), "both windows still hold a request")

	c.advance(31 * time.Second)
	assert.Equal(t, 1, st.PurgeExpired())
	assert.Equal(t, 1, st.Len())

	c.advance(30 * time.Second)
	assert.Equal(t, 1, st.PurgeExpired())
	assert.Equal(t, 0, st.Len())

	res, err := st.Allow(ctx, "reference:10.0.0.1", testLimit, testWindow)
	require.NoError(t, err)
	assert.Equal(t, testLimit-1, res.Remaining, "a purged key starts a fresh window")
}
