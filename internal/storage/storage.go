package storage

import (
	"context"
	"errors"
	"os"
)

// ErrNotFound is returned when a key is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Backend is a durable key/value store. Every call is atomic per key.
type Backend interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	Close() error
}

// Type names a backend implementation in configuration.
type Type string

const (
	// TypeFile is the single JSON file backend.
	TypeFile Type = "file"
	// TypeBolt is the embedded bbolt backend.
	TypeBolt Type = "bolt"
	// TypeRedis is the shared redis backend.
	TypeRedis Type = "redis"
	// TypeMemory keeps data for the process lifetime only.
	TypeMemory Type = "memory"
)

// EnsureDir creates the directory for a storage file.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}

	return os.MkdirAll(dir, 0o700)
}
