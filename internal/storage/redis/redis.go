// Package redis implements storage.Backend on a redis server so that several
// daemons can share one alarm store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oshokin/wake-alarm/internal/storage"
)

const (
	// pingTimeout bounds the connectivity check in Open.
	pingTimeout = 5 * time.Second
	// scanBatch is the COUNT hint passed to SCAN.
	scanBatch = 100
)

// Options configures the redis connection.
type Options struct {
	// Addr is the host:port of the server.
	Addr string
	// Password authenticates the connection when set.
	Password string
	// DB selects the logical database.
	DB int
	// Namespace prefixes every key written by the backend.
	Namespace string
}

// Store implements storage.Backend using redis.
type Store struct {
	client    *redis.Client
	namespace string
}

// Open connects to redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:    client,
		namespace: opts.Namespace,
	}, nil
}

// Put stores value under key without expiration.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.namespace+key, value, 0).Err()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return value, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	removed, err := s.client.Del(ctx, s.namespace+key).Result()
	if err != nil {
		return err
	}

	if removed == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// List returns all values whose key starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	result := make(map[string][]byte)

	iter := s.client.Scan(ctx, 0, s.namespace+prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()

		value, err := s.client.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			// Deleted between SCAN and GET.
			continue
		}

		if err != nil {
			return nil, err
		}

		result[fullKey[len(s.namespace):]] = value
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Close closes the redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
