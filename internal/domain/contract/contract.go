package contract

import (
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Contract is a recurring billing agreement. ClientID is null while the
// contract is unassigned (created ahead of client signup).
type Contract struct {
	ID              int64
	ClientID        sql.NullInt64
	Name            string
	Amount          decimal.Decimal
	Currency        string
	BillingCycle    BillingCycle
	NextDueDate     sql.NullTime // DATE column, time part is ignored
	GracePeriodDays int
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       sql.NullTime
}

// Services returns the human readable list of services stored in the
// contract metadata under "services". It accepts a string or a list.
func (c *Contract) Services() string {
	raw, ok := c.Metadata["services"]
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				names = append(names, s)
			}
		}
		return strings.Join(names, ", ")
	case []string:
		return strings.Join(v, ", ")
	}
	return ""
}
