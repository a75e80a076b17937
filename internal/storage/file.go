package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// filePermissions restricts the store file to its owner.
const filePermissions = 0o600

// errNotJSON is returned when a value is not a JSON document.
var errNotJSON = errors.New("file storage accepts JSON values only")

// File persists all keys in one JSON document on disk.
// Each write goes to a temporary file that is synced and renamed over the
// previous document, so a crash leaves either the old or the new contents.
type File struct {
	// path is the filesystem location of the JSON document.
	path string
	// mu protects concurrent access to the document.
	mu sync.Mutex
}

// NewFile creates a backend that reads and writes JSON at the provided path.
func NewFile(path string) (*File, error) {
	path = filepath.Clean(path)

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &File{
		path: path,
	}, nil
}

// Put stores value under key.
func (f *File) Put(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return errNotJSON
	}

	return f.update(ctx, func(doc map[string]json.RawMessage) error {
		doc[key] = append(json.RawMessage(nil), value...)

		return nil
	})
}

// Get returns the value stored under key.
func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}

	value, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}

	return value, nil
}

// Delete removes key.
func (f *File) Delete(ctx context.Context, key string) error {
	return f.update(ctx, func(doc map[string]json.RawMessage) error {
		if _, ok := doc[key]; !ok {
			return ErrNotFound
		}

		delete(doc, key)

		return nil
	})
}

// List returns all values whose key starts with prefix.
func (f *File) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(doc))

	for key, value := range doc {
		if strings.HasPrefix(key, prefix) {
			result[key] = value
		}
	}

	return result, nil
}

// Close is a no-op; every write is already durable.
func (f *File) Close() error {
	return nil
}

// update applies mutate to the document and writes it back atomically.
func (f *File) update(ctx context.Context, mutate func(map[string]json.RawMessage) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}

	if err = mutate(doc); err != nil {
		return err
	}

	return f.write(doc)
}

// read loads the document; a missing file is an empty document.
func (f *File) read() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)

	contents, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}

		return nil, fmt.Errorf("read storage file: %w", err)
	}

	if len(contents) == 0 {
		return doc, nil
	}

	if err = json.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode storage file: %w", err)
	}

	return doc, nil
}

// write replaces the document through a synced temporary file.
func (f *File) write(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary storage file: %w", err)
	}

	tmpPath := tmp.Name()

	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temporary storage file: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync temporary storage file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temporary storage file: %w", err)
	}

	if err = os.Chmod(tmpPath, filePermissions); err != nil {
		return fmt.Errorf("restrict storage file: %w", err)
	}

	if err = os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}

	return nil
}
