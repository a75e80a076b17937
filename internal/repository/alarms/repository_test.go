package alarms

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/storage"
)

func testDefinition(id string, triggerAt time.Time) *domain.Definition {
	def := &domain.Definition{
		ID:               id,
		TriggerAt:        triggerAt,
		Label:            "wake up",
		VibrationEnabled: true,
	}
	def.ApplyDefaults()

	return def
}

// TestRepository_SaveLoadDelete verifies the round trip through a file backend.
func TestRepository_SaveLoadDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	backend, err := storage.NewFile(filepath.Join(t.TempDir(), "alarms.json"))
	require.NoError(t, err)

	repo := NewRepository(backend)
	triggerAt := time.Date(2030, time.January, 2, 7, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, testDefinition("a1", triggerAt)))

	loaded, err := repo.Load(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "a1", loaded.ID)
	require.True(t, loaded.TriggerAt.Equal(triggerAt))
	require.Equal(t, domain.SoundProfileDefault, loaded.SoundProfile)
	require.Equal(t, domain.DefaultMaxRingDuration, loaded.MaxRingDuration)

	require.NoError(t, repo.Delete(ctx, "a1"))
	require.NoError(t, repo.Delete(ctx, "a1"))

	_, err = repo.Load(ctx, "a1")
	require.ErrorIs(t, err, domain.ErrAlarmNotFound)
}

// TestRepository_ListOrdersAndSkipsCorrupt ensures List sorts by trigger time and ignores junk.
func TestRepository_ListOrdersAndSkipsCorrupt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewMemory()
	repo := NewRepository(backend)
	base := time.Date(2030, time.January, 2, 7, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, testDefinition("late", base.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, testDefinition("early", base)))
	require.NoError(t, backend.Put(ctx, Key("broken"), []byte("{")))
	require.NoError(t, backend.Put(ctx, "other/ignored", []byte(`{"id":"x"}`)))

	defs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	require.Equal(t, "early", defs[0].ID)
	require.Equal(t, "late", defs[1].ID)
}

// TestRepository_SaveReplaces verifies a second save overwrites the record.
func TestRepository_SaveReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewRepository(storage.NewMemory())
	base := time.Date(2030, time.January, 2, 7, 0, 0, 0, time.UTC)

	def := testDefinition("a1", base)
	require.NoError(t, repo.Save(ctx, def))

	def.TriggerAt = base.Add(5 * time.Minute)
	require.NoError(t, repo.Save(ctx, def))

	loaded, err := repo.Load(ctx, "a1")
	require.NoError(t, err)
	require.True(t, loaded.TriggerAt.Equal(base.Add(5*time.Minute)))
}
