package database

import (
	"context"
	"database/sql"
	"fmt"

	"billing_collections/internal/domain/client"
)

type PostgresClientRepository struct {
	db *sql.DB
}

func NewPostgresClientRepository(db *sql.DB) *PostgresClientRepository {
	return &PostgresClientRepository{db: db}
}

const clientColumns = `id, name, email, phone, telegram_chat_id, status, created_at, updated_at, deleted_at`

func (r *PostgresClientRepository) Create(ctx context.Context, c *client.Client) error {
	query := `INSERT INTO clients (name, email, phone, telegram_chat_id, status)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at, updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, c.Name, c.Email, c.Phone, c.TelegramChatID, c.Status).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating client: %w", err)
	}
	return nil
}

func (r *PostgresClientRepository) GetByID(ctx context.Context, id int64) (*client.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND deleted_at IS NULL`
	c := &client.Client{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.TelegramChatID, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("error getting client by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresClientRepository) Update(ctx context.Context, c *client.Client) error {
	query := `UPDATE clients
               SET name = $1, email = $2, phone = $3, telegram_chat_id = $4, status = $5, updated_at = NOW()
               WHERE id = $6 AND deleted_at IS NULL
               RETURNING updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, c.Name, c.Email, c.Phone, c.TelegramChatID, c.Status, c.ID).
		Scan(&c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrClientNotFound
		}
		return fmt.Errorf("error updating client: %w", err)
	}
	return nil
}

func (r *PostgresClientRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE clients SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("error deleting client: %w", err)
	}
	return expectAffected(res, ErrClientNotFound)
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
