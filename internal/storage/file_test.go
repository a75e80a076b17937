package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFile_NotFound verifies Get and Delete return ErrNotFound for a missing key and file.
func TestFile_NotFound(t *testing.T) {
	t.Parallel()

	backend, err := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	_, err = backend.Get(context.Background(), "alarm/a1")
	require.ErrorIs(t, err, ErrNotFound)

	err = backend.Delete(context.Background(), "alarm/a1")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFile_PutGetListDelete exercises the full contract against one file.
func TestFile_PutGetListDelete(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "store.json")
	ctx := context.Background()

	backend, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, backend.Put(ctx, "alarm/a1", []byte(`{"id":"a1"}`)))
	require.NoError(t, backend.Put(ctx, "alarm/a2", []byte(`{"id":"a2"}`)))
	require.NoError(t, backend.Put(ctx, "meta/version", []byte(`1`)))

	value, err := backend.Get(ctx, "alarm/a1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"a1"}`, string(value))

	listed, err := backend.List(ctx, "alarm/")
	require.NoError(t, err)
	require.Len(t, listed, 2)

	require.NoError(t, backend.Delete(ctx, "alarm/a1"))

	listed, err = backend.List(ctx, "alarm/")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Contains(t, listed, "alarm/a2")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())
}

// TestFile_SurvivesReopen ensures data written by one instance is read by the next.
func TestFile_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	first, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "alarm/a1", []byte(`{"id":"a1"}`)))
	require.NoError(t, first.Close())

	second, err := NewFile(path)
	require.NoError(t, err)

	value, err := second.Get(ctx, "alarm/a1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"a1"}`, string(value))
}

// TestFile_RejectsNonJSON verifies values must be JSON documents.
func TestFile_RejectsNonJSON(t *testing.T) {
	t.Parallel()

	backend, err := NewFile(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)

	require.Error(t, backend.Put(context.Background(), "alarm/a1", []byte("not json")))
}

// TestMemory_CopiesValues ensures callers cannot mutate stored bytes.
func TestMemory_CopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemory()

	value := []byte(`{"id":"a1"}`)
	require.NoError(t, backend.Put(ctx, "alarm/a1", value))

	value[2] = 'X'

	got, err := backend.Get(ctx, "alarm/a1")
	require.NoError(t, err)
	require.Equal(t, `{"id":"a1"}`, string(got))

	require.ErrorIs(t, backend.Delete(ctx, "alarm/missing"), ErrNotFound)
}
