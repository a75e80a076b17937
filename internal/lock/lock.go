// Package lock provides a keyed mutex that serializes work per identifier
// while letting different identifiers proceed concurrently.
package lock

import "sync"

// entry is a mutex shared by every holder and waiter of one key.
type entry struct {
	mu   sync.Mutex
	refs int
}

// MutexMap hands out one mutex per key and forgets keys nobody holds.
type MutexMap struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMutexMap creates an empty MutexMap.
func NewMutexMap() *MutexMap {
	return &MutexMap{
		entries: make(map[string]*entry),
	}
}

// Lock blocks until key is free and returns the function that releases it.
func (m *MutexMap) Lock(key string) (unlock func()) {
	m.mu.Lock()

	e, ok := m.entries[key]
	if !ok {
		e = new(entry)
		m.entries[key] = e
	}

	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once

	return func() {
		once.Do(func() {
			e.mu.Unlock()

			m.mu.Lock()
			defer m.mu.Unlock()

			e.refs--
			if e.refs == 0 {
				delete(m.entries, key)
			}
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (m *MutexMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}
