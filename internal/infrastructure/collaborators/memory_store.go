package collaborators

import (
	"context"
	"sort"
	"sync"

	"github.com/plantsaathi/market-intelligence/internal/application/market"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// MemoryFieldStore is a map-backed market.FieldStore for deployments that
// run without a database (demo mode, local development).
type MemoryFieldStore struct {
	mu     sync.RWMutex
	fields map[string]market.Field
}

var _ market.FieldStore = (*MemoryFieldStore)(nil)

func NewMemoryFieldStore(seed []market.Field) *MemoryFieldStore {
	s := &MemoryFieldStore{fields: make(map[string]market.Field, len(seed))}
	for _, f := range seed {
		s.fields[f.ID] = f
	}
	return s
}

func (s *MemoryFieldStore) GetField(_ context.Context, id string) (*market.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[id]
	if !ok {
		return nil, errors.Newf(errors.CodeFieldNotFound, "field %s not found", id)
	}
	return &f, nil
}

func (s *MemoryFieldStore) ListFields(_ context.Context) ([]market.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]market.Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryFieldStore) UpsertField(_ context.Context, f *market.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[f.ID] = *f
	return nil
}

func (s *MemoryFieldStore) DeleteField(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[id]; !ok {
		return errors.Newf(errors.CodeFieldNotFound, "field %s not found", id)
	}
	delete(s.fields, id)
	return nil
}
