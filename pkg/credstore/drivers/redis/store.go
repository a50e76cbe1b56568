// Package redis is a durable credstore.Store backed by a Redis hash, for
// sessions shared between processes or hosts.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/credstore"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the credential hash.
const DefaultKeyPrefix = "autocheck:"

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// TTL bounds how long credentials survive without a write. Zero keeps
	// them until cleared.
	TTL time.Duration
}

type Store struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ credstore.Store = (*Store)(nil)

// NewClient builds a go-redis client from cfg.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewStore wraps an existing client.
func NewStore(client *redis.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{
		client: client,
		key:    prefix + "credentials",
		ttl:    cfg.TTL,
	}
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := NewClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewStore(client, cfg), nil
}

func (s *Store) Close() error { return s.client.Close() }

// Ping verifies the connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", credstore.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Put applies every change inside MULTI/EXEC.
func (s *Store) Put(ctx context.Context, values map[string]string) error {
	if err := credstore.CheckKeys(values); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			if v == "" {
				pipe.HDel(ctx, s.key, k)
				continue
			}
			pipe.HSet(ctx, s.key, k, v)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
