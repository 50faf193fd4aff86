package store

import (
	"context"
	"sync"

	"github.com/serroba/redirect-engine/internal/shortener"
)

// MemoryStore is an in-memory shortener.Repository.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[shortener.Code]shortener.Mapping
}

// NewMemoryStore creates an empty in-memory mapping store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mappings: make(map[shortener.Code]shortener.Mapping),
	}
}

func (m *MemoryStore) InsertIfAbsent(ctx context.Context, mapping *shortener.Mapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mappings[mapping.Code]; ok {
		return shortener.ErrAlreadyExists
	}

	m.mappings[mapping.Code] = clone(mapping)

	return nil
}

func (m *MemoryStore) Get(ctx context.Context, code shortener.Code) (*shortener.Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.mappings[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	out := clone(&mapping)

	return &out, nil
}

func (m *MemoryStore) Deactivate(ctx context.Context, code shortener.Code) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[code]
	if !ok {
		return shortener.ErrNotFound
	}

	mapping.Active = false
	m.mappings[code] = mapping

	return nil
}

func (m *MemoryStore) IncrementClickCount(ctx context.Context, code shortener.Code, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[code]
	if !ok {
		return shortener.ErrNotFound
	}

	mapping.ClickCount += delta
	m.mappings[code] = mapping

	return nil
}

// Len returns the number of stored mappings, active or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.mappings)
}

func clone(mapping *shortener.Mapping) shortener.Mapping {
	out := *mapping

	if mapping.ExpiresAt != nil {
		expiresAt := *mapping.ExpiresAt
		out.ExpiresAt = &expiresAt
	}

	return out
}
