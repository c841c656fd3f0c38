package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taxportal/internal/wizard/models"
	"taxportal/pkg/platform/sentinel"
)

// RedisStore keeps entries as JSON strings with a TTL. Save runs the
// version check and the write inside WATCH/MULTI so concurrent tabs cannot
// both win.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces keys when the Redis instance is shared.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "taxportal:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(key models.Key) string {
	return s.prefix + key.String()
}

func (s *RedisStore) Load(ctx context.Context, key models.Key) (*models.Entry, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load wizard entry: %w", err)
	}
	return models.DecodeEntry(data)
}

func (s *RedisStore) Save(ctx context.Context, key models.Key, entry *models.Entry, ttl time.Duration) error {
	if err := key.Validate(); err != nil {
		return err
	}
	k := s.key(key)
	var saved int64

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		data, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if entry.Version != 0 {
				return sentinel.ErrNotFound
			}
		case err != nil:
			return err
		default:
			stored, err := models.DecodeEntry(data)
			if err != nil {
				return err
			}
			current = stored.Version
			if entry.Version != 0 && entry.Version != current {
				return sentinel.ErrConflict
			}
		}

		next := *entry
		next.Version = current + 1
		payload, err := models.EncodeEntry(&next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, payload, ttl)
			return nil
		})
		if err == nil {
			saved = next.Version
		}
		return err
	}, k)

	if errors.Is(err, redis.TxFailedErr) {
		return sentinel.ErrConflict
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		return fmt.Errorf("save wizard entry: %w", err)
	}
	entry.Version = saved
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key models.Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete wizard entry: %w", err)
	}
	return nil
}
