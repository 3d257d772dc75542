package client

import (
	"database/sql"
	"time"
)

// Status is the lifecycle status of a client.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPaused   Status = "paused"
)

// Valid reports whether s is one of the known client statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPaused:
		return true
	}
	return false
}

// Client is the root owner of contracts, reminders and payments.
type Client struct {
	ID             int64
	Name           string
	Email          sql.NullString
	Phone          sql.NullString
	TelegramChatID sql.NullInt64 // Chat used for reminder dispatch
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      sql.NullTime
}
