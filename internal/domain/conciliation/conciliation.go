package conciliation

import (
	"database/sql"
	"time"

	"billing_collections/internal/domain/payment"
)

// Status is the review state of a conciliation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known conciliation status.
func (s Status) Valid() bool {
	_, ok := paymentMirror[s]
	return ok
}

// Terminal reports whether s ends the review for this conciliation.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

var paymentMirror = map[Status]payment.Status{
	StatusPending:  payment.StatusInReview,
	StatusInReview: payment.StatusInReview,
	StatusApproved: payment.StatusVerified,
	StatusRejected: payment.StatusRejected,
}

// PaymentStatusFor returns the payment status mirrored by a conciliation in status s.
func PaymentStatusFor(s Status) (payment.Status, bool) {
	ps, ok := paymentMirror[s]
	return ps, ok
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusInReview, StatusApproved, StatusRejected},
	StatusInReview: {StatusPending, StatusApproved, StatusRejected},
}

// CanTransition reports whether a conciliation may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Conciliation is the human review of a single payment (1:1 on PaymentID).
type Conciliation struct {
	ID         int64
	PaymentID  int64
	Status     Status
	ReviewedBy sql.NullString
	Notes      sql.NullString
	VerifiedAt sql.NullTime // Set when entering approved or rejected
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
