package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billing_collections/internal/domain/reminder"

	"github.com/lib/pq"
)

type PostgresReminderRepository struct {
	db *sql.DB
}

func NewPostgresReminderRepository(db *sql.DB) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db}
}

const reminderColumns = `id, contract_id, client_id, channel, scheduled_for, status, payload, response_payload, attempts, acknowledged_at, created_at, updated_at, deleted_at`

func scanReminder(row interface{ Scan(...any) error }) (*reminder.Reminder, error) {
	rm := &reminder.Reminder{}
	err := row.Scan(
		&rm.ID, &rm.ContractID, &rm.ClientID, &rm.Channel, &rm.ScheduledFor, &rm.Status,
		scanJSON(&rm.Payload), scanJSON(&rm.ResponsePayload), &rm.Attempts, &rm.AcknowledgedAt,
		&rm.CreatedAt, &rm.UpdatedAt, &rm.DeletedAt,
	)
	return rm, err
}

// Helper to scan multiple rows
func scanReminders(rows *sql.Rows) ([]*reminder.Reminder, error) {
	reminders := make([]*reminder.Reminder, 0)
	for rows.Next() {
		rm, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reminder row: %w", err)
		}
		reminders = append(reminders, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder rows: %w", err)
	}
	return reminders, nil
}

func statusStrings(statuses []reminder.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PostgresReminderRepository) Create(ctx context.Context, rm *reminder.Reminder) error {
	query := `INSERT INTO reminders (contract_id, client_id, channel, scheduled_for, status, payload, response_payload, attempts, acknowledged_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               RETURNING id, created_at, updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		rm.ContractID, rm.ClientID, rm.Channel, rm.ScheduledFor, rm.Status,
		jsonMap(rm.Payload), jsonMap(rm.ResponsePayload), rm.Attempts, rm.AcknowledgedAt,
	).Scan(&rm.ID, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating reminder: %w", err)
	}
	return nil
}

func (r *PostgresReminderRepository) GetByID(ctx context.Context, id int64) (*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1 AND deleted_at IS NULL`
	rm, err := scanReminder(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("error getting reminder by ID: %w", err)
	}
	return rm, nil
}

func (r *PostgresReminderRepository) Update(ctx context.Context, rm *reminder.Reminder) error {
	query := `UPDATE reminders
               SET client_id = $1, channel = $2, scheduled_for = $3, status = $4, payload = $5,
                   response_payload = $6, attempts = $7, acknowledged_at = $8, updated_at = NOW()
               WHERE id = $9 AND deleted_at IS NULL
               RETURNING updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		rm.ClientID, rm.Channel, rm.ScheduledFor, rm.Status, jsonMap(rm.Payload),
		jsonMap(rm.ResponsePayload), rm.Attempts, rm.AcknowledgedAt, rm.ID,
	).Scan(&rm.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrReminderNotFound
		}
		return fmt.Errorf("error updating reminder: %w", err)
	}
	return nil
}

func (r *PostgresReminderRepository) GetOutstandingForContract(ctx context.Context, contractID int64) (*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
               WHERE contract_id = $1 AND status = ANY($2::varchar[]) AND deleted_at IS NULL
               ORDER BY scheduled_for ASC, id ASC LIMIT 1`
	rm, err := scanReminder(conn(ctx, r.db).QueryRowContext(ctx, query, contractID, pq.Array(statusStrings(reminder.OutstandingStatuses))))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("error getting outstanding reminder for contract: %w", err)
	}
	return rm, nil
}

func (r *PostgresReminderRepository) ListByContract(ctx context.Context, contractID int64) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
               WHERE contract_id = $1 AND deleted_at IS NULL ORDER BY scheduled_for ASC, id ASC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("error querying reminders by contract: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (r *PostgresReminderRepository) ListSettlementCandidates(ctx context.Context, clientID int64, contractID sql.NullInt64, from time.Time) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
               WHERE client_id = $1
                 AND ($2::bigint IS NULL OR contract_id = $2)
                 AND scheduled_for >= $3
                 AND status <> ALL($4::varchar[])
                 AND deleted_at IS NULL
               ORDER BY scheduled_for ASC, id ASC`
	excluded := []reminder.Status{reminder.StatusCancelled, reminder.StatusFailed}
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, clientID, contractID, from, pq.Array(statusStrings(excluded)))
	if err != nil {
		return nil, fmt.Errorf("error querying settlement candidates: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (r *PostgresReminderRepository) ListDue(ctx context.Context, until time.Time, limit int) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
               WHERE status = ANY($1::varchar[]) AND scheduled_for <= $2 AND deleted_at IS NULL
               ORDER BY scheduled_for ASC, id ASC
               LIMIT $3`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, pq.Array(statusStrings(reminder.DispatchableStatuses)), until, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying due reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}
