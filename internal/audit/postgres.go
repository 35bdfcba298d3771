package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/QTMarketing/cps-sub000/internal/dbx"
)

// PostgresRepository persists audit entries. The audit_entries table carries
// a trigger that rejects UPDATE, so immutability holds even against raw SQL.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *Entry) error {
	query := `INSERT INTO audit_entries
	            (id, actor_id, action, entity_type, entity_id, old_state, new_state, source_addr, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.ActorID, e.Action, e.EntityType, e.EntityID, e.OldState, e.NewState, e.SourceAddr, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Query(ctx context.Context, f Filter, page, pageSize int) ([]*Entry, error) {
	where, args := buildWhere(f)

	query := fmt.Sprintf(
		`SELECT id, actor_id, action, entity_type, entity_id, old_state, new_state, source_addr, created_at
	       FROM audit_entries%s
	      ORDER BY created_at DESC
	      LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID,
			&e.OldState, &e.NewState, &e.SourceAddr, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Summarize(ctx context.Context, actorID string, since time.Time) ([]Summary, error) {
	query := `SELECT action, entity_type, COUNT(*)
	            FROM audit_entries
	           WHERE created_at >= $1 AND ($2 = '' OR actor_id = $2)
	           GROUP BY action, entity_type
	           ORDER BY action, entity_type`

	rows, err := r.db.QueryContext(ctx, query, since, actorID)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Action, &s.EntityType, &s.Count); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}
	return res.RowsAffected()
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
