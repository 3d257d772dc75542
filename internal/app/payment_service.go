package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/conciliation"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/payment"
	"billing_collections/internal/domain/reminder"
	idb "billing_collections/internal/infra/database"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PaymentService struct {
	tx            Transactor
	clients       client.Repository
	contracts     contract.Repository
	reminders     reminder.Repository
	payments      payment.Repository
	conciliations conciliation.Repository
	settlement    *SettlementService
	logger        *logrus.Entry
}

func NewPaymentService(
	tx Transactor,
	clr client.Repository,
	cr contract.Repository,
	rr reminder.Repository,
	pr payment.Repository,
	concr conciliation.Repository,
	settlement *SettlementService,
	logger *logrus.Entry,
) *PaymentService {
	return &PaymentService{
		tx:            tx,
		clients:       clr,
		contracts:     cr,
		reminders:     rr,
		payments:      pr,
		conciliations: concr,
		settlement:    settlement,
		logger:        logger.WithField("component", "payment_service"),
	}
}

type CreatePaymentInput struct {
	ClientID   int64
	ContractID *int64
	ReminderID *int64
	Amount     decimal.Decimal
	Currency   string
	Channel    string
	Status     string // Defaults to unverified
	Reference  string
	PaidAt     *time.Time
	Metadata   map[string]any
}

// Create records a payment after checking that its contract and reminder
// belong to its client. A payment entered as verified settles its reminder
// right away.
func (s *PaymentService) Create(ctx context.Context, in CreatePaymentInput) (*payment.Payment, error) {
	if in.ClientID <= 0 {
		return nil, invalid("client_id", "is required")
	}
	p := &payment.Payment{
		ClientID:  in.ClientID,
		Amount:    in.Amount,
		Currency:  in.Currency,
		Channel:   strings.TrimSpace(in.Channel),
		Status:    payment.StatusUnverified,
		Reference: nullString(in.Reference),
		Metadata:  in.Metadata,
	}
	if in.Status != "" {
		p.Status = payment.Status(strings.ToLower(in.Status))
	}
	if in.ContractID != nil {
		p.ContractID = sql.NullInt64{Int64: *in.ContractID, Valid: true}
	}
	if in.ReminderID != nil {
		p.ReminderID = sql.NullInt64{Int64: *in.ReminderID, Valid: true}
	}
	if in.PaidAt != nil {
		p.PaidAt = sql.NullTime{Time: *in.PaidAt, Valid: true}
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	if err := validatePayment(p); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.clients.GetByID(ctx, p.ClientID); err != nil {
			return classify(err)
		}
		if err := s.checkOwnership(ctx, p); err != nil {
			return err
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return classify(fmt.Errorf("failed to create payment: %w", err))
		}
		return s.settleIfVerified(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"client_id":  p.ClientID,
		"status":     p.Status,
	}).Info("Payment recorded")
	s.settleMonthsIfVerified(ctx, p)
	return p, nil
}

type UpdatePaymentInput struct {
	ContractID *int64
	ReminderID *int64
	Amount     *decimal.Decimal
	Currency   *string
	Channel    *string
	Status     *string
	Reference  *string
	PaidAt     *time.Time
	Metadata   map[string]any
}

// Update edits a payment. Moving it to verified settles its reminder the
// same way Create does. The status of a payment under conciliation follows
// the conciliation and cannot be changed here.
func (s *PaymentService) Update(ctx context.Context, id int64, in UpdatePaymentInput) (*payment.Payment, error) {
	var (
		p           *payment.Payment
		newVerified bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.payments.GetByID(ctx, id); err != nil {
			return classify(err)
		}
		wasVerified := p.Status == payment.StatusVerified

		if in.ContractID != nil {
			p.ContractID = sql.NullInt64{Int64: *in.ContractID, Valid: *in.ContractID > 0}
		}
		if in.ReminderID != nil {
			p.ReminderID = sql.NullInt64{Int64: *in.ReminderID, Valid: *in.ReminderID > 0}
		}
		if in.Amount != nil {
			p.Amount = *in.Amount
		}
		if in.Currency != nil {
			p.Currency = *in.Currency
		}
		if in.Channel != nil {
			p.Channel = strings.TrimSpace(*in.Channel)
		}
		if in.Status != nil {
			next := payment.Status(strings.ToLower(*in.Status))
			if next != p.Status {
				if err := s.ensureNoConciliation(ctx, p.ID); err != nil {
					return err
				}
			}
			p.Status = next
		}
		if in.Reference != nil {
			p.Reference = nullString(*in.Reference)
		}
		if in.PaidAt != nil {
			p.PaidAt = sql.NullTime{Time: *in.PaidAt, Valid: true}
		}
		if in.Metadata != nil {
			p.Metadata = in.Metadata
		}
		if err := validatePayment(p); err != nil {
			return err
		}
		if err := s.checkOwnership(ctx, p); err != nil {
			return err
		}
		if err := s.payments.Update(ctx, p); err != nil {
			return classify(err)
		}
		if wasVerified {
			return nil
		}
		newVerified = p.Status == payment.StatusVerified
		return s.settleIfVerified(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if newVerified {
		s.settleMonthsIfVerified(ctx, p)
	}
	return p, nil
}

func (s *PaymentService) Get(ctx context.Context, id int64) (*payment.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	return p, classify(err)
}

func (s *PaymentService) Delete(ctx context.Context, id int64) error {
	if err := s.payments.SoftDelete(ctx, id); err != nil {
		return classify(err)
	}
	s.logger.WithField("payment_id", id).Info("Payment soft-deleted")
	return nil
}

func (s *PaymentService) ensureNoConciliation(ctx context.Context, paymentID int64) error {
	_, err := s.conciliations.GetByPaymentID(ctx, paymentID)
	switch {
	case err == nil:
		return invalid("status", "payment is under conciliation; change the conciliation instead")
	case errors.Is(err, idb.ErrConciliationNotFound):
		return nil
	}
	return fmt.Errorf("failed to check conciliation of payment %d: %w", paymentID, err)
}

func validatePayment(p *payment.Payment) error {
	if !p.Amount.IsPositive() {
		return invalid("amount", "must be positive")
	}
	code, ok := contract.NormalizeCurrency(p.Currency)
	if !ok {
		return invalid("currency", "must be a 3-letter code")
	}
	p.Currency = code
	p.Amount = p.Amount.Round(2)
	if p.Channel == "" {
		return invalid("channel", "is required")
	}
	if !p.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown payment status %q", p.Status))
	}
	if _, err := p.ParseMonths(); err != nil {
		return invalid("metadata.months", err.Error())
	}
	return nil
}

// checkOwnership rejects contract or reminder references that belong to a
// different client, and a reminder that belongs to a different contract.
func (s *PaymentService) checkOwnership(ctx context.Context, p *payment.Payment) error {
	if p.ContractID.Valid {
		c, err := s.contracts.GetByID(ctx, p.ContractID.Int64)
		if err != nil {
			return classify(err)
		}
		if !c.ClientID.Valid || c.ClientID.Int64 != p.ClientID {
			return invalid("contract_id", "contract does not belong to the payment's client")
		}
	}
	if p.ReminderID.Valid {
		r, err := s.reminders.GetByID(ctx, p.ReminderID.Int64)
		if err != nil {
			return classify(err)
		}
		if r.ClientID != p.ClientID {
			return invalid("reminder_id", "reminder does not belong to the payment's client")
		}
		if p.ContractID.Valid && r.ContractID != p.ContractID.Int64 {
			return invalid("reminder_id", "reminder does not belong to the payment's contract")
		}
	}
	return nil
}

// settleIfVerified handles the single-month direct settlement inside the
// payment's transaction. Multi-month payments go through a full pass after
// commit instead.
func (s *PaymentService) settleIfVerified(ctx context.Context, p *payment.Payment) error {
	if p.Status != payment.StatusVerified || p.IsDerived() || p.Months() > 1 {
		return nil
	}
	_, err := s.settlement.SettleDirect(ctx, p)
	return err
}

func (s *PaymentService) settleMonthsIfVerified(ctx context.Context, p *payment.Payment) {
	if p.Status != payment.StatusVerified || p.IsDerived() || p.Months() <= 1 {
		return
	}
	if _, err := s.settlement.SettleConciliation(ctx, nil, p); err != nil {
		s.logger.WithError(err).WithField("payment_id", p.ID).Error("Settlement of verified multi-month payment failed")
	}
}
