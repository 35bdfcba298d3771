// Package storage provides the PostgreSQL and in-memory repositories behind
// the protection core. The bank and check stores implement protect.Store so
// they can be wrapped by the encrypting decorator.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/dbx"
	"github.com/QTMarketing/cps-sub000/internal/models"
)

type PostgresBanks struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresBanks(db dbx.DBTX) *PostgresBanks {
	return &PostgresBanks{db: db, now: time.Now}
}

func (r *PostgresBanks) Create(ctx context.Context, b *models.BankAccount) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = r.now().UTC()
	b.UpdatedAt = b.CreatedAt

	query := `INSERT INTO bank_accounts (id, store_id, name, account_number, routing_number, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.StoreID, b.Name, b.AccountNumber, b.RoutingNumber, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresBanks) Update(ctx context.Context, b *models.BankAccount) error {
	b.UpdatedAt = r.now().UTC()

	query := `UPDATE bank_accounts
	             SET store_id = $2, name = $3, account_number = $4, routing_number = $5, updated_at = $6
	           WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		b.ID, b.StoreID, b.Name, b.AccountNumber, b.RoutingNumber, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresBanks) Upsert(ctx context.Context, b *models.BankAccount) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	query := `INSERT INTO bank_accounts (id, store_id, name, account_number, routing_number, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (id) DO UPDATE SET
	            store_id = EXCLUDED.store_id,
	            name = EXCLUDED.name,
	            account_number = EXCLUDED.account_number,
	            routing_number = EXCLUDED.routing_number,
	            updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.StoreID, b.Name, b.AccountNumber, b.RoutingNumber, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresBanks) Find(ctx context.Context, id string) (*models.BankAccount, error) {
	query := `SELECT id, store_id, name, account_number, routing_number, created_at, updated_at
	            FROM bank_accounts WHERE id = $1`

	var b models.BankAccount
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.StoreID, &b.Name, &b.AccountNumber, &b.RoutingNumber, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return &b, nil
}

func (r *PostgresBanks) List(ctx context.Context) ([]*models.BankAccount, error) {
	query := `SELECT id, store_id, name, account_number, routing_number, created_at, updated_at
	            FROM bank_accounts ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var out []*models.BankAccount
	for rows.Next() {
		var b models.BankAccount
		if err := rows.Scan(&b.ID, &b.StoreID, &b.Name, &b.AccountNumber, &b.RoutingNumber, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
