package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
)

// RedisOptions configures a RedisStore
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps cursors in Redis so several processes (or restarts of
// one) share the same position
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.Prefix == "" {
		opts.Prefix = "solfeed"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		PoolSize:     4,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("Cursor store connected to Redis", "addr", opts.Addr, "prefix", opts.Prefix)
	return NewRedisStoreFromClient(client, opts.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(channel feed.Channel) string {
	return fmt.Sprintf("%s:cursor:%s", s.prefix, channel)
}

func (s *RedisStore) Get(ctx context.Context, channel feed.Channel) (string, error) {
	v, err := s.client.Get(ctx, s.key(channel)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s cursor: %w", channel, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, channel feed.Channel, signature string) error {
	if signature == "" {
		return s.Clear(ctx, channel)
	}
	if err := s.client.Set(ctx, s.key(channel), signature, 0).Err(); err != nil {
		return fmt.Errorf("set %s cursor: %w", channel, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, channel feed.Channel) error {
	if err := s.client.Del(ctx, s.key(channel)).Err(); err != nil {
		return fmt.Errorf("clear %s cursor: %w", channel, err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
