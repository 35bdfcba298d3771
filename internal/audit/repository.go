package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrImmutable is returned by any attempt to mutate an existing entry.
var ErrImmutable = errors.New("audit entries are immutable")

// Repository is the append-only store contract. There is deliberately no
// update operation; DeleteOlderThan exists only for the retention sweep.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Query(ctx context.Context, f Filter, page, pageSize int) ([]*Entry, error)
	Summarize(ctx context.Context, actorID string, since time.Time) ([]Summary, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryRepository is the in-memory Repository used by tests and local runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

// Update exists only to document and enforce immutability at the store
// layer: it always fails.
func (r *MemoryRepository) Update(_ context.Context, _ *Entry) error {
	return ErrImmutable
}

func (r *MemoryRepository) Query(_ context.Context, f Filter, page, pageSize int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Entry
	for _, e := range r.entries {
		if matches(e, f) {
			cp := *e
			matched = append(matched, &cp)
		}
	}
	// newest first
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (r *MemoryRepository) Summarize(_ context.Context, actorID string, since time.Time) ([]Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type key struct{ action, entityType string }
	counts := map[key]int64{}
	for _, e := range r.entries {
		if actorID != "" && e.ActorID != actorID {
			continue
		}
		if e.CreatedAt.Before(since) {
			continue
		}
		counts[key{e.Action, e.EntityType}]++
	}

	out := make([]Summary, 0, len(counts))
	for k, n := range counts {
		out = append(out, Summary{Action: k.action, EntityType: k.entityType, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].EntityType < out[j].EntityType
	})
	return out, nil
}

func (r *MemoryRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*Entry
	var deleted int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

func matches(e *Entry, f Filter) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}
