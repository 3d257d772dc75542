package httpapi

import (
	"database/sql"
	"time"

	"billing_collections/internal/app"
	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/conciliation"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/payment"
	"billing_collections/internal/domain/reminder"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type clientResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	TelegramChatID *int64     `json:"telegram_chat_id"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func toClientResponse(c *client.Client) clientResponse {
	return clientResponse{
		ID:             c.ID,
		Name:           c.Name,
		Email:          nullableString(c.Email),
		Phone:          nullableString(c.Phone),
		TelegramChatID: nullableInt(c.TelegramChatID),
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		DeletedAt:      nullableTime(c.DeletedAt),
	}
}

type contractResponse struct {
	ID              int64           `json:"id"`
	ClientID        *int64          `json:"client_id"`
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	BillingCycle    string          `json:"billing_cycle"`
	NextDueDate     *string         `json:"next_due_date"`
	GracePeriodDays int             `json:"grace_period_days"`
	Metadata        map[string]any  `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toContractResponse(c *contract.Contract) contractResponse {
	resp := contractResponse{
		ID:              c.ID,
		ClientID:        nullableInt(c.ClientID),
		Name:            c.Name,
		Amount:          c.Amount,
		Currency:        c.Currency,
		BillingCycle:    string(c.BillingCycle),
		GracePeriodDays: c.GracePeriodDays,
		Metadata:        c.Metadata,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if c.NextDueDate.Valid {
		d := c.NextDueDate.Time.Format(dateLayout)
		resp.NextDueDate = &d
	}
	return resp
}

type reminderResponse struct {
	ID              int64          `json:"id"`
	ContractID      int64          `json:"contract_id"`
	ClientID        int64          `json:"client_id"`
	Channel         string         `json:"channel"`
	ScheduledFor    time.Time      `json:"scheduled_for"`
	Status          string         `json:"status"`
	Payload         map[string]any `json:"payload"`
	ResponsePayload map[string]any `json:"response_payload"`
	Attempts        int            `json:"attempts"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at"`
}

func toReminderResponse(r *reminder.Reminder) reminderResponse {
	return reminderResponse{
		ID:              r.ID,
		ContractID:      r.ContractID,
		ClientID:        r.ClientID,
		Channel:         r.Channel,
		ScheduledFor:    r.ScheduledFor,
		Status:          string(r.Status),
		Payload:         r.Payload,
		ResponsePayload: r.ResponsePayload,
		Attempts:        r.Attempts,
		AcknowledgedAt:  nullableTime(r.AcknowledgedAt),
	}
}

func toReminderResponses(rs []*reminder.Reminder) []reminderResponse {
	out := make([]reminderResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReminderResponse(r))
	}
	return out
}

type paymentResponse struct {
	ID         int64           `json:"id"`
	ClientID   int64           `json:"client_id"`
	ContractID *int64          `json:"contract_id"`
	ReminderID *int64          `json:"reminder_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	Channel    string          `json:"channel"`
	Reference  *string         `json:"reference"`
	PaidAt     *time.Time      `json:"paid_at"`
	Metadata   map[string]any  `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		ID:         p.ID,
		ClientID:   p.ClientID,
		ContractID: nullableInt(p.ContractID),
		ReminderID: nullableInt(p.ReminderID),
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     string(p.Status),
		Channel:    p.Channel,
		Reference:  nullableString(p.Reference),
		PaidAt:     nullableTime(p.PaidAt),
		Metadata:   p.Metadata,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type conciliationResponse struct {
	ID         int64      `json:"id"`
	PaymentID  int64      `json:"payment_id"`
	Status     string     `json:"status"`
	ReviewedBy *string    `json:"reviewed_by"`
	Notes      *string    `json:"notes"`
	VerifiedAt *time.Time `json:"verified_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toConciliationResponse(c *conciliation.Conciliation) conciliationResponse {
	return conciliationResponse{
		ID:         c.ID,
		PaymentID:  c.PaymentID,
		Status:     string(c.Status),
		ReviewedBy: nullableString(c.ReviewedBy),
		Notes:      nullableString(c.Notes),
		VerifiedAt: nullableTime(c.VerifiedAt),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

type settlementResponse struct {
	SettlementID      string  `json:"settlement_id"`
	SettledReminders  []int64 `json:"settled_reminders"`
	DerivedPayments   []int64 `json:"derived_payments"`
	SkippedReminders  []int64 `json:"skipped_reminders"`
	FailedReminders   []int64 `json:"failed_reminders"`
	UnallocatedMonths int     `json:"unallocated_months"`
}

func toSettlementResponse(r *app.SettlementResult) settlementResponse {
	return settlementResponse{
		SettlementID:      r.SettlementID,
		SettledReminders:  nonNil(r.SettledReminders),
		DerivedPayments:   nonNil(r.DerivedPayments),
		SkippedReminders:  nonNil(r.SkippedReminders),
		FailedReminders:   nonNil(r.FailedReminders),
		UnallocatedMonths: r.UnallocatedMonths,
	}
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

// parseDate reads an optional YYYY-MM-DD value.
func parseDate(field string, v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *v)
	if err != nil {
		return nil, &app.ValidationError{Field: field, Reason: "expected YYYY-MM-DD"}
	}
	return &t, nil
}
