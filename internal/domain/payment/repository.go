package payment

import (
	"context"
	"time"
)

// Repository defines operations on Payments. Soft-deleted payments are
// never returned and never count as settling a reminder.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	SoftDelete(ctx context.Context, id int64) error

	// HasVerifiedForReminder reports whether a verified payment other than
	// excludePaymentID references the reminder.
	HasVerifiedForReminder(ctx context.Context, reminderID, excludePaymentID int64) (bool, error)
	// CountDerivedFrom counts live derived payments created from sourcePaymentID.
	CountDerivedFrom(ctx context.Context, sourcePaymentID int64) (int, error)
	// LockForSettlement serializes settlement passes of one source payment
	// within the caller's transaction.
	LockForSettlement(ctx context.Context, id int64) error
	// ListVerifiedMultiMonthSince lists verified, non-derived payments with
	// months >= 2 and no conciliation, updated at or after since.
	ListVerifiedMultiMonthSince(ctx context.Context, since time.Time) ([]*Payment, error)
}
