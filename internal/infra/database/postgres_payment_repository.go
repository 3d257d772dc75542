package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"billing_collections/internal/domain/payment"
)

type PostgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

// paymentReminderVerifiedUnique allows one live verified payment per reminder.
const paymentReminderVerifiedUnique = "payments_reminder_verified_key"

const paymentColumns = `id, client_id, contract_id, reminder_id, amount, currency, status, channel, reference, paid_at, metadata, created_at, updated_at, deleted_at`

func (r *PostgresPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `INSERT INTO payments (client_id, contract_id, reminder_id, amount, currency, status, channel, reference, paid_at, metadata)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               RETURNING id, created_at, updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		p.ClientID, p.ContractID, p.ReminderID, p.Amount, p.Currency, p.Status, p.Channel, p.Reference, p.PaidAt, jsonMap(p.Metadata),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, paymentReminderVerifiedUnique) {
			return fmt.Errorf("%w: reminder %d", ErrReminderAlreadySettled, p.ReminderID.Int64)
		}
		return fmt.Errorf("error creating payment: %w", err)
	}
	return nil
}

func scanPayment(row interface{ Scan(...any) error }) (*payment.Payment, error) {
	p := &payment.Payment{}
	err := row.Scan(
		&p.ID, &p.ClientID, &p.ContractID, &p.ReminderID, &p.Amount, &p.Currency, &p.Status, &p.Channel,
		&p.Reference, &p.PaidAt, scanJSON(&p.Metadata), &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	return p, err
}

func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND deleted_at IS NULL`
	p, err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error getting payment by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `UPDATE payments
               SET contract_id = $1, reminder_id = $2, amount = $3, currency = $4, status = $5, channel = $6,
                   reference = $7, paid_at = $8, metadata = $9, updated_at = NOW()
               WHERE id = $10 AND deleted_at IS NULL
               RETURNING updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		p.ContractID, p.ReminderID, p.Amount, p.Currency, p.Status, p.Channel, p.Reference, p.PaidAt, jsonMap(p.Metadata), p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrPaymentNotFound
		}
		if isUniqueViolation(err, paymentReminderVerifiedUnique) {
			return fmt.Errorf("%w: reminder %d", ErrReminderAlreadySettled, p.ReminderID.Int64)
		}
		return fmt.Errorf("error updating payment: %w", err)
	}
	return nil
}

func (r *PostgresPaymentRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE payments SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("error deleting payment: %w", err)
	}
	return expectAffected(res, ErrPaymentNotFound)
}

func (r *PostgresPaymentRepository) HasVerifiedForReminder(ctx context.Context, reminderID, excludePaymentID int64) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM payments
                   WHERE reminder_id = $1 AND status = $2 AND id <> $3 AND deleted_at IS NULL
               )`
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx, query, reminderID, payment.StatusVerified, excludePaymentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking verified payments for reminder: %w", err)
	}
	return exists, nil
}

func (r *PostgresPaymentRepository) CountDerivedFrom(ctx context.Context, sourcePaymentID int64) (int, error) {
	query := `SELECT COUNT(*) FROM payments
               WHERE metadata ->> 'source_payment_id' = $1 AND deleted_at IS NULL`
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx, query, strconv.FormatInt(sourcePaymentID, 10)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting derived payments: %w", err)
	}
	return n, nil
}

// LockForSettlement takes a row lock on the source payment for the rest of
// the caller's transaction, so settlement passes for it run one at a time.
func (r *PostgresPaymentRepository) LockForSettlement(ctx context.Context, id int64) error {
	var locked int64
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id FROM payments WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("error locking payment: %w", err)
	}
	return nil
}

func (r *PostgresPaymentRepository) ListVerifiedMultiMonthSince(ctx context.Context, since time.Time) ([]*payment.Payment, error) {
	query := `SELECT ` + prefixed("p.", paymentColumns) + ` FROM payments p
               LEFT JOIN conciliations c ON c.payment_id = p.id
               WHERE p.status = $1 AND p.updated_at >= $2 AND p.deleted_at IS NULL AND c.id IS NULL
                 AND NOT (p.metadata ? 'source_payment_id')
                 AND CASE WHEN btrim(p.metadata ->> 'months') ~ '^[0-9]{1,9}$'
                          THEN btrim(p.metadata ->> 'months')::int ELSE 0 END >= 2
               ORDER BY p.id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, payment.StatusVerified, since)
	if err != nil {
		return nil, fmt.Errorf("error listing verified multi-month payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

// prefixed qualifies every column of a comma-separated list with prefix.
func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = prefix + c
	}
	return strings.Join(parts, ", ")
}
