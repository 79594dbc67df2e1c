package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

const DefaultRedisKeyPrefix = "fittrack||"

var _ Store = (*RedisStore)(nil)
var _ Lister = (*RedisStore)(nil)

type RedisStore struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisStore(redisClient *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	cmd := s.redisClient.Get(ctx, s.keyPrefix+key)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get [%s]: %w", key, err)
	}
	return cmd.Val(), nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	// no expiration, collections live until overwritten
	if err := s.redisClient.Set(ctx, s.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set [%s]: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		cmd := s.redisClient.Scan(ctx, cursor, s.keyPrefix+prefix+"*", 100)
		page, next, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range page {
			keys = append(keys, strings.TrimPrefix(k, s.keyPrefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}
