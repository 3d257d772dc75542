package contract

import "context"

// Repository defines the operations for persisting and retrieving Contracts.
type Repository interface {
	Create(ctx context.Context, c *Contract) error
	GetByID(ctx context.Context, id int64) (*Contract, error)
	Update(ctx context.Context, c *Contract) error
	// SoftDelete marks the contract deleted and soft-deletes all of its
	// reminders in the same transaction.
	SoftDelete(ctx context.Context, id int64) error
	ListByClient(ctx context.Context, clientID int64) ([]*Contract, error)
}
