package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/QTMarketing/cps-sub000/internal/logging"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	// export scans pages until exhausted; pages are capped so one export
	// cannot hold a connection indefinitely
	exportPageSize = maxPageSize
)

// Event is what callers hand to Record. Old and New are arbitrary
// serializable snapshots of entity state around the action.
type Event struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Old        any
	New        any
	SourceAddr string
}

// Service records and reads the audit trail.
type Service struct {
	repo Repository
	log  logging.Logger
	now  func() time.Time
}

func NewService(repo Repository, log logging.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Record appends one entry. It never returns an error: an audit store outage
// must not block the business operation it trails, so persistence failures
// are logged and swallowed. This is a deliberate availability-over-
// completeness trade-off, not a bug.
func (s *Service) Record(ctx context.Context, ev Event) {
	e := &Entry{
		ID:         uuid.New(),
		ActorID:    ev.ActorID,
		Action:     ev.Action,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		OldState:   marshalState(ev.Old),
		NewState:   marshalState(ev.New),
		SourceAddr: ev.SourceAddr,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.Create(ctx, e); err != nil {
		s.log.Error(ctx, "audit write failed, continuing",
			"action", ev.Action, "entity_type", ev.EntityType, "entity_id", ev.EntityID, "error", err)
	}
}

// Query returns one page of entries, newest first. Page numbers start at 1;
// out-of-range sizes are clamped.
func (s *Service) Query(ctx context.Context, f Filter, page, pageSize int) ([]*Entry, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.repo.Query(ctx, f, page, pageSize)
}

// Summarize groups activity by (action, entityType) over the trailing
// window. An empty actorID summarizes all actors.
func (s *Service) Summarize(ctx context.Context, actorID string, windowDays int) ([]Summary, error) {
	if windowDays < 1 {
		windowDays = 1
	}
	since := s.now().UTC().AddDate(0, 0, -windowDays)
	return s.repo.Summarize(ctx, actorID, since)
}

// Export renders matching entries as CSV for offline review.
func (s *Service) Export(ctx context.Context, f Filter) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"id", "actor_id", "action", "entity_type", "entity_id", "old_state", "new_state", "source_addr", "created_at"}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for page := 1; ; page++ {
		entries, err := s.repo.Query(ctx, f, page, exportPageSize)
		if err != nil {
			return "", fmt.Errorf("export query: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			row := []string{
				e.ID.String(), e.ActorID, e.Action, e.EntityType, e.EntityID,
				string(e.OldState), string(e.NewState), e.SourceAddr,
				e.CreatedAt.Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
		if len(entries) < exportPageSize {
			break
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}

// RetentionSweep deletes entries older than maxAgeDays and returns the count
// removed. It is the only deletion path over the audit store.
func (s *Service) RetentionSweep(ctx context.Context, maxAgeDays int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -maxAgeDays)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "audit retention sweep", "deleted", n, "cutoff", cutoff)
	return n, nil
}

func marshalState(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		// state snapshots are best-effort; a marshal failure must not
		// block recording the action itself
		return []byte(fmt.Sprintf("%q", fmt.Sprint(v)))
	}
	return b
}
