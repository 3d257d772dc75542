package reminder

import (
	"context"
	"database/sql"
	"time"
)

// Repository defines operations on Reminders. Soft-deleted reminders are
// never returned.
type Repository interface {
	Create(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id int64) (*Reminder, error)
	Update(ctx context.Context, r *Reminder) error

	// GetOutstandingForContract returns the outstanding reminder with the
	// earliest scheduled_for for the contract.
	GetOutstandingForContract(ctx context.Context, contractID int64) (*Reminder, error)
	ListByContract(ctx context.Context, contractID int64) ([]*Reminder, error)

	// ListSettlementCandidates returns reminders of the client (and of the
	// contract, when valid) scheduled on or after from, ascending by scheduled_for.
	// Cancelled and failed reminders are excluded.
	ListSettlementCandidates(ctx context.Context, clientID int64, contractID sql.NullInt64, from time.Time) ([]*Reminder, error)

	// ListDue returns pending/queued reminders scheduled at or before until,
	// ascending by scheduled_for.
	ListDue(ctx context.Context, until time.Time, limit int) ([]*Reminder, error)
}
