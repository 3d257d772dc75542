package payment

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the verification status of a payment: unverified -> in_review -> verified|rejected.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusInReview   Status = "in_review"
	StatusVerified   Status = "verified"
	StatusRejected   Status = "rejected"
)

// Valid reports whether s is a known payment status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusInReview, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// ChannelSettlement marks payments synthesized by the settlement allocator.
const ChannelSettlement = "settlement"

// Metadata keys.
const (
	MetaMonths               = "months"
	MetaSourcePaymentID      = "source_payment_id"
	MetaSourceConciliationID = "source_conciliation_id"
	MetaMonthIndex           = "month_index"
	MetaSettlementID         = "settlement_id"
)

// Payment is money received from a client.
type Payment struct {
	ID         int64
	ClientID   int64
	ContractID sql.NullInt64
	ReminderID sql.NullInt64
	Amount     decimal.Decimal
	Currency   string
	Status     Status
	Channel    string
	Reference  sql.NullString
	PaidAt     sql.NullTime
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  sql.NullTime
}

// Months returns the number of billing periods the payment covers, read from
// metadata. Missing, malformed or negative values yield 0.
func (p *Payment) Months() int {
	n, err := p.ParseMonths()
	if err != nil {
		return 0
	}
	return n
}

// ParseMonths reads metadata.months strictly. A missing value is 0.
func (p *Payment) ParseMonths() (int, error) {
	n, err := intFromMeta(p.Metadata[MetaMonths])
	if err != nil {
		return 0, fmt.Errorf("months must be an integer: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("months must not be negative")
	}
	return n, nil
}

// EffectiveDate is paid_at, or now when the payment carries no date.
func (p *Payment) EffectiveDate(now time.Time) time.Time {
	if p.PaidAt.Valid {
		return p.PaidAt.Time
	}
	return now
}

// IsDerived reports whether the payment was produced by a settlement pass.
func (p *Payment) IsDerived() bool {
	_, ok := p.Metadata[MetaSourcePaymentID]
	return ok
}

func intFromMeta(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("non-integer value %v", n)
		}
		return int(n), nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, nil
		}
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
