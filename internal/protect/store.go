package protect

import (
	"context"
	"fmt"
)

// Store is the narrow persistence contract the decorator composes around.
// Repositories implement it per entity type; the decorator stays ignorant of
// the storage engine behind it.
type Store[T any] interface {
	Create(ctx context.Context, rec *T) error
	Update(ctx context.Context, rec *T) error
	Upsert(ctx context.Context, rec *T) error
	Find(ctx context.Context, id string) (*T, error)
	List(ctx context.Context) ([]*T, error)
}

type ptrProtected[T any] interface {
	Protected
	*T
}

// ProtectedStore decorates a Store so that protected fields are encrypted on
// every write and decrypted on every read. It adds no suspension points of
// its own beyond the wrapped call, but the KDF makes writes CPU-expensive;
// keep it off latency-critical loops.
type ProtectedStore[T any, PT ptrProtected[T]] struct {
	inner Store[T]
	p     *Protector
}

// Wrap builds the encrypting decorator around inner.
func Wrap[T any, PT ptrProtected[T]](inner Store[T], p *Protector) *ProtectedStore[T, PT] {
	return &ProtectedStore[T, PT]{inner: inner, p: p}
}

func (s *ProtectedStore[T, PT]) write(ctx context.Context, rec *T, op string, call func(context.Context, *T) error) error {
	restore, err := s.p.sealFields(PT(rec))
	if err != nil {
		// a write-time encryption failure is fatal to the operation
		return fmt.Errorf("%s: %w", op, err)
	}
	defer restore()
	return call(ctx, rec)
}

func (s *ProtectedStore[T, PT]) Create(ctx context.Context, rec *T) error {
	return s.write(ctx, rec, "create", s.inner.Create)
}

func (s *ProtectedStore[T, PT]) Update(ctx context.Context, rec *T) error {
	return s.write(ctx, rec, "update", s.inner.Update)
}

func (s *ProtectedStore[T, PT]) Upsert(ctx context.Context, rec *T) error {
	return s.write(ctx, rec, "upsert", s.inner.Upsert)
}

func (s *ProtectedStore[T, PT]) Find(ctx context.Context, id string) (*T, error) {
	rec, err := s.inner.Find(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	s.p.openFields(ctx, PT(rec))
	return rec, nil
}

func (s *ProtectedStore[T, PT]) List(ctx context.Context) ([]*T, error) {
	recs, err := s.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec != nil {
			s.p.openFields(ctx, PT(rec))
		}
	}
	return recs, nil
}
