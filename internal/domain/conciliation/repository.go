package conciliation

import (
	"context"
	"time"
)

// Repository defines operations on Conciliations.
type Repository interface {
	// Create fails with a duplicate error when the payment already has one.
	Create(ctx context.Context, c *Conciliation) error
	GetByID(ctx context.Context, id int64) (*Conciliation, error)
	GetByPaymentID(ctx context.Context, paymentID int64) (*Conciliation, error)
	Update(ctx context.Context, c *Conciliation) error
	Delete(ctx context.Context, id int64) error
	ListApprovedSince(ctx context.Context, since time.Time) ([]*Conciliation, error)
}
