package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the token under "<prefix>:<name>" so several processes can share one
// logged-in session.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	name   string
	ttl    time.Duration
}

// NewRedisStore builds a store. An empty name defaults to KeyAccessToken; ttl <= 0 stores
// the token without expiry.
func NewRedisStore(client redis.UniversalClient, prefix, name string, ttl time.Duration) *RedisStore {
	if name == "" {
		name = KeyAccessToken
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		name:   name,
		ttl:    ttl,
	}
}

func (s *RedisStore) key() string {
	if s.prefix == "" {
		return s.name
	}
	return s.prefix + ":" + s.name
}

func (s *RedisStore) Get(ctx context.Context) (string, error) {
	token, err := s.redis.Get(ctx, s.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (s *RedisStore) Set(ctx context.Context, token string) error {
	if err := s.redis.Set(ctx, s.key(), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
