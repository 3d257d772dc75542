package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing_collections/internal/domain/conciliation"
	"billing_collections/internal/domain/payment"
	idb "billing_collections/internal/infra/database"
	"billing_collections/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// ConciliationService drives the review lifecycle of payments.
//
// Every status change commits together with the mirrored payment status.
// Settlement of an approval runs after that commit: it is retried by
// RetrySettlements and never undoes the approval.
type ConciliationService struct {
	tx            Transactor
	conciliations conciliation.Repository
	payments      payment.Repository
	settlement    *SettlementService
	metrics       *metrics.Metrics
	logger        *logrus.Entry
	now           func() time.Time
}

func NewConciliationService(
	tx Transactor,
	cr conciliation.Repository,
	pr payment.Repository,
	settlement *SettlementService,
	m *metrics.Metrics,
	logger *logrus.Entry,
) *ConciliationService {
	return &ConciliationService{
		tx:            tx,
		conciliations: cr,
		payments:      pr,
		settlement:    settlement,
		metrics:       m,
		logger:        logger.WithField("component", "conciliation_service"),
		now:           time.Now,
	}
}

type CreateConciliationInput struct {
	PaymentID  int64
	Status     string // Defaults to pending
	Notes      string
	VerifiedAt *time.Time
	ReviewedBy string
}

// Create opens the review of a payment. A second conciliation for the same
// payment is rejected with ErrConflict.
func (s *ConciliationService) Create(ctx context.Context, in CreateConciliationInput) (*conciliation.Conciliation, error) {
	status := conciliation.StatusPending
	if in.Status != "" {
		status = conciliation.Status(strings.ToLower(in.Status))
		if !status.Valid() {
			return nil, invalid("status", fmt.Sprintf("unknown conciliation status %q", in.Status))
		}
	}
	if in.PaymentID <= 0 {
		return nil, invalid("payment_id", "is required")
	}

	c := &conciliation.Conciliation{
		PaymentID:  in.PaymentID,
		Status:     status,
		Notes:      nullString(in.Notes),
		ReviewedBy: nullString(in.ReviewedBy),
	}
	if status.Terminal() {
		c.VerifiedAt = s.verifiedAt(in.VerifiedAt)
	}

	var p *payment.Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.payments.GetByID(ctx, in.PaymentID); err != nil {
			return classify(err)
		}
		if _, err := s.conciliations.GetByPaymentID(ctx, in.PaymentID); err == nil {
			return fmt.Errorf("%w: %w", ErrConflict, idb.ErrDuplicateConciliation)
		} else if !errors.Is(err, idb.ErrConciliationNotFound) {
			return fmt.Errorf("failed to check existing conciliation: %w", err)
		}
		if err := s.conciliations.Create(ctx, c); err != nil {
			return classify(err)
		}
		return s.mirror(ctx, p, c.Status)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"conciliation_id": c.ID,
		"payment_id":      c.PaymentID,
		"status":          c.Status,
	}).Info("Conciliation created")
	s.metrics.ConciliationTransitions.WithLabelValues(string(c.Status)).Inc()
	s.afterCommit(ctx, c, p)
	return c, nil
}

type UpdateConciliationInput struct {
	Status     *string
	Notes      *string
	VerifiedAt *time.Time
	ReviewedBy *string
}

// Update moves a conciliation through its lifecycle. Approved and rejected
// are final: only the same status may be re-applied, which re-triggers
// settlement for approvals.
func (s *ConciliationService) Update(ctx context.Context, id int64, in UpdateConciliationInput) (*conciliation.Conciliation, error) {
	var (
		c       *conciliation.Conciliation
		p       *payment.Payment
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if c, err = s.conciliations.GetByID(ctx, id); err != nil {
			return classify(err)
		}
		if p, err = s.payments.GetByID(ctx, c.PaymentID); err != nil {
			return classify(err)
		}

		if in.Status != nil {
			next := conciliation.Status(strings.ToLower(*in.Status))
			if !next.Valid() {
				return invalid("status", fmt.Sprintf("unknown conciliation status %q", *in.Status))
			}
			if !conciliation.CanTransition(c.Status, next) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
			}
			if next != c.Status {
				changed = true
				if next.Terminal() {
					c.VerifiedAt = s.verifiedAt(in.VerifiedAt)
				}
				c.Status = next
			}
		}
		if in.Notes != nil {
			c.Notes = nullString(*in.Notes)
		}
		if in.ReviewedBy != nil && !c.ReviewedBy.Valid {
			c.ReviewedBy = nullString(*in.ReviewedBy)
		}

		if err := s.conciliations.Update(ctx, c); err != nil {
			return classify(err)
		}
		return s.mirror(ctx, p, c.Status)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.WithFields(logrus.Fields{
			"conciliation_id": c.ID,
			"payment_id":      c.PaymentID,
			"status":          c.Status,
		}).Info("Conciliation status changed")
		s.metrics.ConciliationTransitions.WithLabelValues(string(c.Status)).Inc()
	}
	s.afterCommit(ctx, c, p)
	return c, nil
}

func (s *ConciliationService) Get(ctx context.Context, id int64) (*conciliation.Conciliation, error) {
	c, err := s.conciliations.GetByID(ctx, id)
	return c, classify(err)
}

// Review is the create-or-update entry point used by chat commands.
func (s *ConciliationService) Review(ctx context.Context, paymentID int64, status conciliation.Status, notes, reviewer string) (*conciliation.Conciliation, error) {
	existing, err := s.conciliations.GetByPaymentID(ctx, paymentID)
	if errors.Is(err, idb.ErrConciliationNotFound) {
		return s.Create(ctx, CreateConciliationInput{
			PaymentID:  paymentID,
			Status:     string(status),
			Notes:      notes,
			ReviewedBy: reviewer,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up conciliation: %w", err)
	}
	st := string(status)
	in := UpdateConciliationInput{Status: &st, ReviewedBy: &reviewer}
	if notes != "" {
		in.Notes = &notes
	}
	return s.Update(ctx, existing.ID, in)
}

// Delete removes the conciliation and reverts its payment to unverified.
func (s *ConciliationService) Delete(ctx context.Context, id int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.conciliations.GetByID(ctx, id)
		if err != nil {
			return classify(err)
		}
		if err := s.conciliations.Delete(ctx, id); err != nil {
			return classify(err)
		}
		p, err := s.payments.GetByID(ctx, c.PaymentID)
		if errors.Is(err, idb.ErrPaymentNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load payment %d: %w", c.PaymentID, err)
		}
		p.Status = payment.StatusUnverified
		return s.payments.Update(ctx, p)
	})
	if err != nil {
		return err
	}
	s.logger.WithField("conciliation_id", id).Info("Conciliation deleted, payment reverted to unverified")
	return nil
}

// Resettle re-runs settlement for one approved conciliation.
func (s *ConciliationService) Resettle(ctx context.Context, id int64) (*SettlementResult, error) {
	c, err := s.conciliations.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if c.Status != conciliation.StatusApproved {
		return nil, fmt.Errorf("%w: conciliation %d is %s, not approved", ErrInvalidTransition, id, c.Status)
	}
	p, err := s.payments.GetByID(ctx, c.PaymentID)
	if err != nil {
		return nil, classify(err)
	}
	return s.settlement.SettleConciliation(ctx, c, p)
}

// RetrySettlements re-runs settlement for approvals verified since the
// given time, then for directly verified multi-month payments. Each pass is
// idempotent, so already settled months are skipped.
func (s *ConciliationService) RetrySettlements(ctx context.Context, since time.Time) (int, error) {
	approved, err := s.conciliations.ListApprovedSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list approved conciliations: %w", err)
	}
	settled := 0
	for _, c := range approved {
		res, err := s.Resettle(ctx, c.ID)
		if err != nil {
			s.logger.WithError(err).WithField("conciliation_id", c.ID).Warn("Settlement retry failed")
			continue
		}
		settled += len(res.SettledReminders)
	}

	direct, err := s.settlement.RetryDirectPayments(ctx, since)
	if err != nil {
		return settled, err
	}
	return settled + direct, nil
}

// mirror keeps the payment status equal to the conciliation's mirror value.
func (s *ConciliationService) mirror(ctx context.Context, p *payment.Payment, status conciliation.Status) error {
	target, _ := conciliation.PaymentStatusFor(status)
	if p.Status == target {
		return nil
	}
	p.Status = target
	if err := s.payments.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to mirror payment status: %w", err)
	}
	return nil
}

// afterCommit runs the settlement side effect of an approval. Failures are
// logged only; the approval already stands.
func (s *ConciliationService) afterCommit(ctx context.Context, c *conciliation.Conciliation, p *payment.Payment) {
	if c.Status != conciliation.StatusApproved {
		return
	}
	if _, err := s.settlement.SettleConciliation(ctx, c, p); err != nil {
		s.metrics.SettlementFailures.Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"conciliation_id": c.ID,
			"payment_id":      p.ID,
		}).Error("Settlement after approval failed; approval kept, retry pending")
	}
}

func (s *ConciliationService) verifiedAt(supplied *time.Time) sql.NullTime {
	if supplied != nil {
		return sql.NullTime{Time: *supplied, Valid: true}
	}
	return sql.NullTime{Time: s.now(), Valid: true}
}
