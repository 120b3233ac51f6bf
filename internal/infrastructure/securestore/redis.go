package securestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mycheff/engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the values in a redis hash, for bridges that serve a
// session from more than one process.
type RedisStore struct {
	client            *redis.Client
	key               string
	createdInternally bool
}

// RedisOptions configures a RedisStore
type RedisOptions struct {
	URL       string
	KeyPrefix string
	Session   string
}

// NewRedisStore creates a redis-backed store. If client is nil one is
// created from opts.URL and closed by Close.
func NewRedisStore(client *redis.Client, opts RedisOptions) (*RedisStore, error) {
	created := false
	if client == nil {
		if opts.URL == "" {
			return nil, errors.New("redis store url is required")
		}
		redisOpts, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(redisOpts)
		created = true
	}

	return &RedisStore{
		client:            client,
		key:               hashKey(opts.KeyPrefix, opts.Session),
		createdInternally: created,
	}, nil
}

// hashKey names the redis hash holding one session's values
func hashKey(prefix, session string) string {
	if prefix == "" {
		prefix = "mycheff"
	}
	if session == "" {
		session = "default"
	}
	return prefix + ":session:" + session
}

// Get retrieves a value
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrStoreKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set stores all values in one HSET
func (s *RedisStore) Set(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}
	if err := s.client.HSet(ctx, s.key, args...).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the given keys
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close releases the redis client if the store created it
func (s *RedisStore) Close() error {
	if s.createdInternally {
		return s.client.Close()
	}
	return nil
}
