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

type PostgresChecks struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresChecks(db dbx.DBTX) *PostgresChecks {
	return &PostgresChecks{db: db, now: time.Now}
}

func (r *PostgresChecks) Create(ctx context.Context, c *models.Check) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.CheckIssued
	}
	c.CreatedAt = r.now().UTC()
	c.UpdatedAt = c.CreatedAt

	query := `INSERT INTO checks (id, store_id, bank_id, number, payee, amount_cents, memo, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.StoreID, c.BankID, c.Number, c.Payee, c.AmountCents, c.Memo, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresChecks) Update(ctx context.Context, c *models.Check) error {
	c.UpdatedAt = r.now().UTC()

	query := `UPDATE checks
	             SET payee = $2, amount_cents = $3, memo = $4, status = $5, updated_at = $6
	           WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.Payee, c.AmountCents, c.Memo, c.Status, c.UpdatedAt)
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

// Upsert updates an existing check or inserts it when the id is unknown.
// The update-then-insert fallback runs in a transaction when the handle
// supports one, so a concurrent insert cannot slip between the two.
func (r *PostgresChecks) Upsert(ctx context.Context, c *models.Check) error {
	if c.ID == "" {
		return r.Create(ctx, c)
	}
	if db, ok := r.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return (&PostgresChecks{db: tx, now: r.now}).upsert(ctx, c)
		})
	}
	return r.upsert(ctx, c)
}

func (r *PostgresChecks) upsert(ctx context.Context, c *models.Check) error {
	if err := r.Update(ctx, c); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return r.Create(ctx, c)
		}
		return err
	}
	return nil
}

const checkWithBankColumns = `c.id, c.store_id, c.bank_id, c.number, c.payee, c.amount_cents, c.memo, c.status, c.created_at, c.updated_at,
	       b.id, b.store_id, b.name, b.account_number, b.routing_number, b.created_at, b.updated_at`

// Find loads a check together with its bank account so the protecting
// wrapper can decrypt the nested protected fields in one read.
func (r *PostgresChecks) Find(ctx context.Context, id string) (*models.Check, error) {
	query := `SELECT ` + checkWithBankColumns + `
	            FROM checks c
	            JOIN bank_accounts b ON b.id = c.bank_id
	           WHERE c.id = $1`

	c, err := scanCheckWithBank(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return c, nil
}

func (r *PostgresChecks) List(ctx context.Context) ([]*models.Check, error) {
	query := `SELECT ` + checkWithBankColumns + `
	            FROM checks c
	            JOIN bank_accounts b ON b.id = c.bank_id
	           ORDER BY c.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var out []*models.Check
	for rows.Next() {
		c, err := scanCheckWithBank(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckWithBank(row rowScanner) (*models.Check, error) {
	var c models.Check
	var b models.BankAccount
	err := row.Scan(
		&c.ID, &c.StoreID, &c.BankID, &c.Number, &c.Payee, &c.AmountCents, &c.Memo, &c.Status, &c.CreatedAt, &c.UpdatedAt,
		&b.ID, &b.StoreID, &b.Name, &b.AccountNumber, &b.RoutingNumber, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Bank = &b
	return &c, nil
}
