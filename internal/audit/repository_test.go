package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEntry(t *testing.T, r *MemoryRepository, action, actor string, at time.Time) *Entry {
	t.Helper()
	e := &Entry{
		ID:         uuid.New(),
		ActorID:    actor,
		Action:     action,
		EntityType: "check",
		EntityID:   "c-1",
		CreatedAt:  at,
	}
	require.NoError(t, r.Create(t.Context(), e))
	return e
}

func TestMemoryRepository_UpdateAlwaysFails(t *testing.T) {
	r := NewMemoryRepository()
	e := seedEntry(t, r, ActionVoidCheck, "u-1", time.Now())

	e.Action = "TAMPERED"
	err := r.Update(t.Context(), e)
	assert.ErrorIs(t, err, ErrImmutable)

	// the stored entry is untouched
	got, err := r.Query(t.Context(), Filter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ActionVoidCheck, got[0].Action)
}

func TestMemoryRepository_QueryNewestFirst(t *testing.T) {
	r := NewMemoryRepository()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	seedEntry(t, r, ActionCreateCheck, "u-1", base)
	seedEntry(t, r, ActionVoidCheck, "u-1", base.Add(time.Hour))
	seedEntry(t, r, ActionCreateBank, "u-2", base.Add(2*time.Hour))

	got, err := r.Query(t.Context(), Filter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ActionCreateBank, got[0].Action)
	assert.Equal(t, ActionCreateCheck, got[2].Action)
}

func TestMemoryRepository_QueryFilters(t *testing.T) {
	r := NewMemoryRepository()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	seedEntry(t, r, ActionCreateCheck, "u-1", base)
	seedEntry(t, r, ActionVoidCheck, "u-1", base.Add(time.Hour))
	seedEntry(t, r, ActionVoidCheck, "u-2", base.Add(2*time.Hour))

	got, err := r.Query(t.Context(), Filter{Action: ActionVoidCheck, ActorID: "u-1"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u-1", got[0].ActorID)

	got, err = r.Query(t.Context(), Filter{From: base.Add(90 * time.Minute)}, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u-2", got[0].ActorID)
}

func TestMemoryRepository_QueryPaging(t *testing.T) {
	r := NewMemoryRepository()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedEntry(t, r, ActionCreateCheck, "u-1", base.Add(time.Duration(i)*time.Minute))
	}

	page1, err := r.Query(t.Context(), Filter{}, 1, 2)
	require.NoError(t, err)
	page3, err := r.Query(t.Context(), Filter{}, 3, 2)
	require.NoError(t, err)
	page4, err := r.Query(t.Context(), Filter{}, 4, 2)
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page3, 1)
	assert.Empty(t, page4)
}

func TestMemoryRepository_Summarize(t *testing.T) {
	r := NewMemoryRepository()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	seedEntry(t, r, ActionVoidCheck, "u-1", base)
	seedEntry(t, r, ActionVoidCheck, "u-1", base.Add(time.Minute))
	seedEntry(t, r, ActionCreateCheck, "u-2", base.Add(2*time.Minute))

	rows, err := r.Summarize(t.Context(), "", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ActionCreateCheck, rows[0].Action)
	assert.Equal(t, int64(1), rows[0].Count)
	assert.Equal(t, ActionVoidCheck, rows[1].Action)
	assert.Equal(t, int64(2), rows[1].Count)

	rows, err = r.Summarize(t.Context(), "u-1", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Count)
}

func TestMemoryRepository_DeleteOlderThan(t *testing.T) {
	r := NewMemoryRepository()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	seedEntry(t, r, ActionCreateCheck, "u-1", base)
	seedEntry(t, r, ActionCreateCheck, "u-1", base.Add(48*time.Hour))

	n, err := r.DeleteOlderThan(t.Context(), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := r.Query(t.Context(), Filter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, base.Add(48*time.Hour), got[0].CreatedAt)
}
