package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/wake-alarm/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "alarms.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestStore_PutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Put(ctx, "alarm/a1", []byte(`{"id":"a1"}`)))

	value, err := store.Get(ctx, "alarm/a1")
	require.NoError(t, err)
	require.Equal(t, `{"id":"a1"}`, string(value))

	require.NoError(t, store.Delete(ctx, "alarm/a1"))

	_, err = store.Get(ctx, "alarm/a1")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "alarm/a1"), storage.ErrNotFound)
}

func TestStore_ListByPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Put(ctx, "alarm/a1", []byte(`1`)))
	require.NoError(t, store.Put(ctx, "alarm/a2", []byte(`2`)))
	require.NoError(t, store.Put(ctx, "alarmx", []byte(`3`)))
	require.NoError(t, store.Put(ctx, "zzz", []byte(`4`)))

	listed, err := store.List(ctx, "alarm/")
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{
		"alarm/a1": []byte(`1`),
		"alarm/a2": []byte(`2`),
	}, listed)
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alarms.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "alarm/a1", []byte(`1`)))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	value, err := store.Get(ctx, "alarm/a1")
	require.NoError(t, err)
	require.Equal(t, `1`, string(value))
}
