package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxRetries = 3

// RedisStore keeps each window as a sorted set scored by request time in
// microseconds, so every process behind the load balancer shares the count.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisStore)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "taxportal:ratelimit:", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	k := s.prefix + key
	for range maxRetries {
		res, err := s.allow(ctx, k, limit, window)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", key, err)
		}
		return res, nil
	}
	return nil, fmt.Errorf("rate limit %s: too much contention", key)
}

func (s *RedisStore) allow(ctx context.Context, k string, limit int, window time.Duration) (*Result, error) {
	var res *Result
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		now := s.now()
		cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)
		live := &redis.ZRangeBy{Min: "(" + cutoff, Max: "+inf"}
		count, err := tx.ZCount(ctx, k, live.Min, live.Max).Result()
		if err != nil {
			return err
		}

		oldest := now
		if count > 0 {
			live.Count = 1
			first, err := tx.ZRangeByScoreWithScores(ctx, k, live).Result()
			if err != nil {
				return err
			}
			if len(first) == 1 {
				oldest = time.UnixMicro(int64(first[0].Score))
			}
		}
		reset := oldest.Add(window)

		if int(count) >= limit {
			res = &Result{Limit: limit, ResetAt: reset, RetryAfter: retryAfter(now, reset)}
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
			pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
			pipe.PExpire(ctx, k, window)
			return nil
		})
		if err != nil {
			return err
		}
		res = &Result{Allowed: true, Limit: limit, Remaining: limit - int(count) - 1, ResetAt: reset}
		return nil
	}, k)
	return res, err
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("reset rate limit %s: %w", key, err)
	}
	return nil
}
