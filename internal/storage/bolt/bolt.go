// Package bolt implements storage.Backend on an embedded bbolt database.
package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/oshokin/wake-alarm/internal/storage"
)

const (
	// bucketRecords holds every key written through the backend.
	bucketRecords = "records"
	// openTimeout bounds waiting for the file lock held by another process.
	openTimeout = 2 * time.Second
)

// Store implements storage.Backend using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a bbolt-backed store at path.
func Open(path string) (*Store, error) {
	if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketRecords)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketRecords, err)
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Store{db: db}, nil
}

// Put stores value under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return tx.Bucket([]byte(bucketRecords)).Put([]byte(key), value)
	})
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		value := tx.Bucket([]byte(bucketRecords)).Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}

		// Values are only valid for the life of the transaction.
		result = append([]byte(nil), value...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b := tx.Bucket([]byte(bucketRecords))
		if b.Get([]byte(key)) == nil {
			return storage.ErrNotFound
		}

		return b.Delete([]byte(key))
	})
}

// List returns all values whose key starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	result := make(map[string][]byte)

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket([]byte(bucketRecords)).Cursor()
		p := []byte(prefix)

		for k, v := cursor.Seek(p); k != nil && hasPrefix(k, p); k, v = cursor.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			result[string(k)] = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func hasPrefix(key, prefix []byte) bool {
	return len(key) >= len(prefix) && string(key[:len(prefix)]) == string(prefix)
}
