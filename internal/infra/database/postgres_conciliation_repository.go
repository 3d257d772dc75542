package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billing_collections/internal/domain/conciliation"
)

const conciliationPaymentUnique = "conciliations_payment_id_key"

type PostgresConciliationRepository struct {
	db *sql.DB
}

func NewPostgresConciliationRepository(db *sql.DB) *PostgresConciliationRepository {
	return &PostgresConciliationRepository{db: db}
}

const conciliationColumns = `id, payment_id, status, reviewed_by, notes, verified_at, created_at, updated_at`

func scanConciliation(row interface{ Scan(...any) error }) (*conciliation.Conciliation, error) {
	c := &conciliation.Conciliation{}
	err := row.Scan(&c.ID, &c.PaymentID, &c.Status, &c.ReviewedBy, &c.Notes, &c.VerifiedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Create relies on the unique constraint on payment_id; a concurrent
// duplicate surfaces as ErrDuplicateConciliation.
func (r *PostgresConciliationRepository) Create(ctx context.Context, c *conciliation.Conciliation) error {
	query := `INSERT INTO conciliations (payment_id, status, reviewed_by, notes, verified_at)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at, updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, c.PaymentID, c.Status, c.ReviewedBy, c.Notes, c.VerifiedAt).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, conciliationPaymentUnique) {
			return ErrDuplicateConciliation
		}
		return fmt.Errorf("error creating conciliation: %w", err)
	}
	return nil
}

func (r *PostgresConciliationRepository) GetByID(ctx context.Context, id int64) (*conciliation.Conciliation, error) {
	query := `SELECT ` + conciliationColumns + ` FROM conciliations WHERE id = $1`
	c, err := scanConciliation(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConciliationNotFound
		}
		return nil, fmt.Errorf("error getting conciliation by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresConciliationRepository) GetByPaymentID(ctx context.Context, paymentID int64) (*conciliation.Conciliation, error) {
	query := `SELECT ` + conciliationColumns + ` FROM conciliations WHERE payment_id = $1`
	c, err := scanConciliation(conn(ctx, r.db).QueryRowContext(ctx, query, paymentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConciliationNotFound
		}
		return nil, fmt.Errorf("error getting conciliation by payment ID: %w", err)
	}
	return c, nil
}

func (r *PostgresConciliationRepository) Update(ctx context.Context, c *conciliation.Conciliation) error {
	query := `UPDATE conciliations
               SET status = $1, reviewed_by = $2, notes = $3, verified_at = $4, updated_at = NOW()
               WHERE id = $5
               RETURNING updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, c.Status, c.ReviewedBy, c.Notes, c.VerifiedAt, c.ID).Scan(&c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrConciliationNotFound
		}
		return fmt.Errorf("error updating conciliation: %w", err)
	}
	return nil
}

func (r *PostgresConciliationRepository) Delete(ctx context.Context, id int64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM conciliations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting conciliation: %w", err)
	}
	return expectAffected(res, ErrConciliationNotFound)
}

func (r *PostgresConciliationRepository) ListApprovedSince(ctx context.Context, since time.Time) ([]*conciliation.Conciliation, error) {
	query := `SELECT ` + conciliationColumns + ` FROM conciliations
               WHERE status = $1 AND verified_at >= $2
               ORDER BY verified_at ASC, id ASC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, conciliation.StatusApproved, since)
	if err != nil {
		return nil, fmt.Errorf("error listing approved conciliations: %w", err)
	}
	defer rows.Close()

	out := make([]*conciliation.Conciliation, 0)
	for rows.Next() {
		c, err := scanConciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conciliation: %w", err)
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conciliations: %w", err)
	}
	return out, nil
}
