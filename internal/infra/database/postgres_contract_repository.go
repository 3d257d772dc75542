package database

import (
	"context"
	"database/sql"
	"fmt"

	"billing_collections/internal/domain/contract"
)

type PostgresContractRepository struct {
	db *sql.DB
	tx *TxManager
}

func NewPostgresContractRepository(db *sql.DB) *PostgresContractRepository {
	return &PostgresContractRepository{db: db, tx: NewTxManager(db)}
}

const contractColumns = `id, client_id, name, amount, currency, billing_cycle, next_due_date, grace_period_days, metadata, created_at, updated_at, deleted_at`

func scanContract(row interface{ Scan(...any) error }) (*contract.Contract, error) {
	c := &contract.Contract{}
	err := row.Scan(
		&c.ID, &c.ClientID, &c.Name, &c.Amount, &c.Currency, &c.BillingCycle, &c.NextDueDate,
		&c.GracePeriodDays, scanJSON(&c.Metadata), &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	return c, err
}

func (r *PostgresContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	query := `INSERT INTO contracts (client_id, name, amount, currency, billing_cycle, next_due_date, grace_period_days, metadata)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id, created_at, updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		c.ClientID, c.Name, c.Amount, c.Currency, c.BillingCycle, c.NextDueDate, c.GracePeriodDays, jsonMap(c.Metadata),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating contract: %w", err)
	}
	return nil
}

func (r *PostgresContractRepository) GetByID(ctx context.Context, id int64) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 AND deleted_at IS NULL`
	c, err := scanContract(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("error getting contract by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresContractRepository) Update(ctx context.Context, c *contract.Contract) error {
	query := `UPDATE contracts
               SET client_id = $1, name = $2, amount = $3, currency = $4, billing_cycle = $5,
                   next_due_date = $6, grace_period_days = $7, metadata = $8, updated_at = NOW()
               WHERE id = $9 AND deleted_at IS NULL
               RETURNING updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		c.ClientID, c.Name, c.Amount, c.Currency, c.BillingCycle, c.NextDueDate, c.GracePeriodDays, jsonMap(c.Metadata), c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrContractNotFound
		}
		return fmt.Errorf("error updating contract: %w", err)
	}
	return nil
}

// SoftDelete is the only way a contract gets deleted, so the reminder
// cascade lives here.
func (r *PostgresContractRepository) SoftDelete(ctx context.Context, id int64) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := conn(ctx, r.db).ExecContext(ctx,
			`UPDATE contracts SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return fmt.Errorf("error deleting contract: %w", err)
		}
		if err := expectAffected(res, ErrContractNotFound); err != nil {
			return err
		}
		if _, err := conn(ctx, r.db).ExecContext(ctx,
			`UPDATE reminders SET deleted_at = NOW(), updated_at = NOW() WHERE contract_id = $1 AND deleted_at IS NULL`, id); err != nil {
			return fmt.Errorf("error cascading contract delete to reminders: %w", err)
		}
		return nil
	})
}

func (r *PostgresContractRepository) ListByClient(ctx context.Context, clientID int64) ([]*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts
               WHERE client_id = $1 AND deleted_at IS NULL ORDER BY id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("error listing contracts by client: %w", err)
	}
	defer rows.Close()

	contracts := make([]*contract.Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contracts: %w", err)
	}
	return contracts, nil
}
