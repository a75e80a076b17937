package alarms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	domain "github.com/oshokin/wake-alarm/internal/domain/alarm"
	"github.com/oshokin/wake-alarm/internal/logger"
	"github.com/oshokin/wake-alarm/internal/storage"
)

// keyPrefix namespaces alarm definitions inside the backend.
const keyPrefix = "alarm/"

// Store defines persistence operations for alarm definitions.
type Store interface {
	Save(ctx context.Context, def *domain.Definition) error
	Load(ctx context.Context, id string) (*domain.Definition, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Definition, error)
}

// Repository persists definitions in a storage.Backend.
type Repository struct {
	// backend is the crash-consistent key/value store.
	backend storage.Backend
}

// NewRepository creates a repository on top of the backend.
func NewRepository(backend storage.Backend) *Repository {
	return &Repository{
		backend: backend,
	}
}

// Key returns the backend key for an alarm id.
func Key(id string) string {
	return keyPrefix + id
}

// Save writes the definition, replacing any previous record with the same id.
func (r *Repository) Save(ctx context.Context, def *domain.Definition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode alarm %s: %w", def.ID, err)
	}

	if err = r.backend.Put(ctx, Key(def.ID), data); err != nil {
		return fmt.Errorf("save alarm %s: %w", def.ID, err)
	}

	return nil
}

// Load reads one definition. Missing records return domain.ErrAlarmNotFound.
func (r *Repository) Load(ctx context.Context, id string) (*domain.Definition, error) {
	data, err := r.backend.Get(ctx, Key(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrAlarmNotFound
		}

		return nil, fmt.Errorf("load alarm %s: %w", id, err)
	}

	return decode(data)
}

// Delete removes a definition; deleting a missing record is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.backend.Delete(ctx, Key(id))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete alarm %s: %w", id, err)
	}

	return nil
}

// List returns every stored definition ordered by trigger time.
// Records that cannot be decoded are logged and skipped.
func (r *Repository) List(ctx context.Context) ([]*domain.Definition, error) {
	records, err := r.backend.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}

	result := make([]*domain.Definition, 0, len(records))

	for key, data := range records {
		def, decodeErr := decode(data)
		if decodeErr != nil {
			logger.WarnKV(ctx, "Skipping unreadable alarm record",
				"key", key,
				"error", decodeErr)

			continue
		}

		result = append(result, def)
	}

	slices.SortFunc(result, func(a, b *domain.Definition) int {
		if c := a.TriggerAt.Compare(b.TriggerAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return result, nil
}

func decode(data []byte) (*domain.Definition, error) {
	var def domain.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode alarm record: %w", err)
	}

	if def.ID == "" {
		return nil, errors.New("decode alarm record: missing id")
	}

	return &def, nil
}
