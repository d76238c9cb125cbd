package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/megcare/caseflow/pkg/metrics"
)

const redisKeyPrefix = "session:"

// RedisStore keeps each session in a Redis hash that expires with the
// session TTL. Update touches single fields, so concurrent requests on one
// session only conflict on a key both of them wrote; the last write wins.
type RedisStore struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

func NewRedisStore(client *redis.Client, m *metrics.Metrics) *RedisStore {
	return &RedisStore{client: client, metrics: m}
}

func (s *RedisStore) Load(ctx context.Context, id string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, redisKeyPrefix+id).Result()
	s.metrics.RedisOperation("session_load", err)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return values, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error {
	key := redisKeyPrefix + id
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	s.metrics.RedisOperation("session_save", err)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, id string, set map[string]string, removed []string, ttl time.Duration) error {
	if len(set) == 0 && len(removed) == 0 {
		return nil
	}
	key := redisKeyPrefix + id
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(removed) > 0 {
			pipe.HDel(ctx, key, removed...)
		}
		if len(set) > 0 {
			pipe.HSet(ctx, key, set)
		}
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	s.metrics.RedisOperation("session_update", err)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	err := s.client.Del(ctx, redisKeyPrefix+id).Err()
	s.metrics.RedisOperation("session_delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
