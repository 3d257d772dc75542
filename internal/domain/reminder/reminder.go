package reminder

import (
	"database/sql"
	"time"
)

// Status is the lifecycle status of a reminder:
// pending -> queued -> sent -> acknowledged|paid, terminal cancelled|failed.
type Status string

const (
	StatusPending      Status = "pending"
	StatusQueued       Status = "queued"
	StatusSent         Status = "sent"
	StatusAcknowledged Status = "acknowledged"
	StatusPaid         Status = "paid"
	StatusCancelled    Status = "cancelled"
	StatusFailed       Status = "failed"
)

// OutstandingStatuses are the statuses of a reminder that still waits for payment.
var OutstandingStatuses = []Status{StatusPending, StatusQueued, StatusSent}

// DispatchableStatuses are the statuses the dispatch poller picks up.
var DispatchableStatuses = []Status{StatusPending, StatusQueued}

// Outstanding reports whether the reminder has not reached a terminal or paid state.
func (s Status) Outstanding() bool {
	for _, o := range OutstandingStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known reminder status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusSent, StatusAcknowledged, StatusPaid, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

const ChannelTelegram = "telegram"

// Reminder is a single payment reminder for a contract. ClientID mirrors the
// contract's client at scheduling time; the contract stays authoritative.
type Reminder struct {
	ID              int64
	ContractID      int64
	ClientID        int64
	Channel         string
	ScheduledFor    time.Time
	Status          Status
	Payload         map[string]any // Message variables
	ResponsePayload map[string]any
	Attempts        int
	AcknowledgedAt  sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       sql.NullTime
}
