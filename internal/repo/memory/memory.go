package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/uptimemonitor/internal/repo"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func New() *Store {
	return &Store{collections: make(map[string]map[string][]byte)}
}

func (m *Store) Create(ctx context.Context, collection, key string, value []byte) error {
	if !repo.ValidKey(key) {
		return repo.ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[collection]
	if c == nil {
		c = make(map[string][]byte)
		m.collections[collection] = c
	}
	if _, ok := c[key]; ok {
		return repo.ErrAlreadyExists
	}
	c[key] = clone(value)
	return nil
}

func (m *Store) Read(ctx context.Context, collection, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.collections[collection][key]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(v), nil
}

func (m *Store) Update(ctx context.Context, collection, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[collection]
	if _, ok := c[key]; !ok {
		return repo.ErrNotFound
	}
	c[key] = clone(value)
	return nil
}

func (m *Store) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[collection]
	if _, ok := c[key]; !ok {
		return repo.ErrNotFound
	}
	delete(c, key)
	return nil
}

func (m *Store) List(ctx context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.collections[collection]))
	for k := range m.collections[collection] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func clone(b []byte) []byte { return append([]byte(nil), b...) }

var _ repo.RecordStore = (*Store)(nil)
