package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/QTMarketing/cps-sub000/internal/common"
)

// MemoryStore is a generic in-memory protect.Store implementation for tests
// and local runs. Records are cloned on the way in and out so the map never
// shares memory with callers; that mirrors how a real database round-trips
// rows and is what lets the encrypting wrapper restore the caller's
// plaintext after a write.
type MemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
	key   func(*T) *string
	clone func(*T) *T
}

// NewMemoryStore builds a store keyed by the field key points at. clone must
// deep-copy any nested pointers the entity carries.
func NewMemoryStore[T any](key func(*T) *string, clone func(*T) *T) *MemoryStore[T] {
	return &MemoryStore[T]{items: map[string]*T{}, key: key, clone: clone}
}

func (s *MemoryStore[T]) Create(_ context.Context, rec *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *s.key(rec) == "" {
		*s.key(rec) = uuid.NewString()
	}
	s.items[*s.key(rec)] = s.clone(rec)
	return nil
}

func (s *MemoryStore[T]) Update(_ context.Context, rec *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := *s.key(rec)
	if _, ok := s.items[id]; !ok {
		return common.ErrNotFound
	}
	s.items[id] = s.clone(rec)
	return nil
}

func (s *MemoryStore[T]) Upsert(ctx context.Context, rec *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *s.key(rec) == "" {
		*s.key(rec) = uuid.NewString()
	}
	s.items[*s.key(rec)] = s.clone(rec)
	return nil
}

func (s *MemoryStore[T]) Find(_ context.Context, id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return s.clone(rec), nil
}

func (s *MemoryStore[T]) List(_ context.Context) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.items))
	for _, rec := range s.items {
		out = append(out, s.clone(rec))
	}
	return out, nil
}
