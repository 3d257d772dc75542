package client

import "context"

// Repository defines the operations for persisting and retrieving Client entities.
// Soft-deleted clients are invisible to GetByID.
type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id int64) (*Client, error)
	Update(ctx context.Context, c *Client) error
	SoftDelete(ctx context.Context, id int64) error
}
