package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"billing_collections/internal/domain/conciliation"
	"billing_collections/internal/domain/payment"
	"billing_collections/internal/domain/reminder"
	"billing_collections/internal/domain/settlement"
	idb "billing_collections/internal/infra/database"
	"billing_collections/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	pathConciliation = "conciliation"
	pathDirect       = "direct"
)

// SettlementResult describes one settlement pass.
type SettlementResult struct {
	SettlementID      string
	SettledReminders  []int64
	DerivedPayments   []int64
	SkippedReminders  []int64 // Already settled before this pass
	FailedReminders   []int64 // Left unsettled, see logs
	UnallocatedMonths int
}

// SettlementService is the only component that marks reminders paid.
type SettlementService struct {
	tx        Transactor
	reminders reminder.Repository
	payments  payment.Repository
	scheduler *ReminderScheduler
	loc       *time.Location
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	now       func() time.Time
}

func NewSettlementService(
	tx Transactor,
	rr reminder.Repository,
	pr payment.Repository,
	scheduler *ReminderScheduler,
	loc *time.Location,
	m *metrics.Metrics,
	logger *logrus.Entry,
) *SettlementService {
	if loc == nil {
		loc = time.Local
	}
	return &SettlementService{
		tx:        tx,
		reminders: rr,
		payments:  pr,
		scheduler: scheduler,
		loc:       loc,
		metrics:   m,
		logger:    logger.WithField("component", "settlement"),
		now:       time.Now,
	}
}

// SettleConciliation distributes a multi-month payment over the client's
// upcoming unsettled reminders. c may be nil for a directly verified payment.
//
// The pass runs in one transaction holding a lock on the source payment, so
// concurrent passes for it run one after another. Each reminder is settled
// in its own savepoint so a failing reminder stays unsettled while the rest
// proceed. Re-running the pass for the same payment settles nothing new once
// the payment's months are used up.
func (s *SettlementService) SettleConciliation(ctx context.Context, c *conciliation.Conciliation, src *payment.Payment) (*SettlementResult, error) {
	result := &SettlementResult{SettlementID: uuid.NewString()}
	log := s.logger.WithFields(logrus.Fields{
		"payment_id":    src.ID,
		"settlement_id": result.SettlementID,
	})
	if c != nil {
		log = log.WithField("conciliation_id", c.ID)
	}

	months := src.Months()
	if months <= 0 {
		log.Debug("Payment carries no months, nothing to allocate")
		return result, nil
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.payments.LockForSettlement(ctx, src.ID); err != nil {
			return err
		}
		already, err := s.payments.CountDerivedFrom(ctx, src.ID)
		if err != nil {
			return err
		}
		candidates, err := s.candidates(ctx, src)
		if err != nil {
			return err
		}

		plan := settlement.Allocate(candidates, months, already, src.Amount)
		result.SkippedReminders = plan.Skipped
		result.UnallocatedMonths = plan.Remaining

		for _, alloc := range plan.Allocations {
			derivedID, err := s.settleOne(ctx, c, src, alloc, result.SettlementID)
			if err != nil {
				log.WithError(err).WithField("reminder_id", alloc.ReminderID).Warn("Failed to settle reminder, leaving it unsettled")
				result.FailedReminders = append(result.FailedReminders, alloc.ReminderID)
				continue
			}
			result.SettledReminders = append(result.SettledReminders, alloc.ReminderID)
			result.DerivedPayments = append(result.DerivedPayments, derivedID)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Settlement pass failed")
		return nil, fmt.Errorf("settlement pass for payment %d failed: %w", src.ID, err)
	}

	s.metrics.RemindersSettled.WithLabelValues(pathConciliation).Add(float64(len(result.SettledReminders)))
	s.metrics.SettlementFailures.Add(float64(len(result.FailedReminders)))
	log.WithFields(logrus.Fields{
		"months":      months,
		"settled":     len(result.SettledReminders),
		"skipped":     len(result.SkippedReminders),
		"failed":      len(result.FailedReminders),
		"unallocated": result.UnallocatedMonths,
	}).Info("Settlement pass finished")
	return result, nil
}

// candidates lists the reminders on or after the payment's effective date,
// flagging those that already carry a verified payment.
func (s *SettlementService) candidates(ctx context.Context, src *payment.Payment) ([]settlement.Candidate, error) {
	eff := src.EffectiveDate(s.now()).In(s.loc)
	from := time.Date(eff.Year(), eff.Month(), eff.Day(), 0, 0, 0, 0, s.loc)

	reminders, err := s.reminders.ListSettlementCandidates(ctx, src.ClientID, src.ContractID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement candidates: %w", err)
	}
	out := make([]settlement.Candidate, 0, len(reminders))
	for _, r := range reminders {
		settled := r.Status == reminder.StatusPaid
		if !settled {
			if settled, err = s.payments.HasVerifiedForReminder(ctx, r.ID, 0); err != nil {
				return nil, fmt.Errorf("failed to check reminder %d: %w", r.ID, err)
			}
		}
		out = append(out, settlement.Candidate{ReminderID: r.ID, ScheduledFor: r.ScheduledFor, Settled: settled})
	}
	return out, nil
}

func (s *SettlementService) settleOne(ctx context.Context, c *conciliation.Conciliation, src *payment.Payment, alloc settlement.Allocation, settlementID string) (int64, error) {
	var derivedID int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.reminders.GetByID(ctx, alloc.ReminderID)
		if err != nil {
			return err
		}

		meta := map[string]any{
			payment.MetaSourcePaymentID: src.ID,
			payment.MetaMonthIndex:      alloc.MonthIndex,
			payment.MetaSettlementID:    settlementID,
		}
		reference := fmt.Sprintf("payment:%d", src.ID)
		if c != nil {
			meta[payment.MetaSourceConciliationID] = c.ID
			reference = fmt.Sprintf("conciliation:%d", c.ID)
		}
		derived := &payment.Payment{
			ClientID:   src.ClientID,
			ContractID: sql.NullInt64{Int64: r.ContractID, Valid: true},
			ReminderID: sql.NullInt64{Int64: r.ID, Valid: true},
			Amount:     alloc.Amount,
			Currency:   src.Currency,
			Status:     payment.StatusVerified,
			Channel:    payment.ChannelSettlement,
			Reference:  sql.NullString{String: reference, Valid: true},
			PaidAt:     sql.NullTime{Time: src.EffectiveDate(s.now()), Valid: true},
			Metadata:   meta,
		}
		if err := s.payments.Create(ctx, derived); err != nil {
			return err
		}
		if err := s.markPaid(ctx, r); err != nil {
			return err
		}
		if _, err := s.scheduler.ScheduleNext(ctx, r); err != nil {
			return err
		}
		derivedID = derived.ID
		return nil
	})
	return derivedID, err
}

// SettleDirect settles a single reminder for a payment verified without a
// conciliation: the payment's own reminder, or else the nearest outstanding
// reminder of its contract. The payment gets linked to that reminder.
// It joins the caller's transaction.
func (s *SettlementService) SettleDirect(ctx context.Context, p *payment.Payment) (*reminder.Reminder, error) {
	log := s.logger.WithField("payment_id", p.ID)

	var target *reminder.Reminder
	var err error
	switch {
	case p.ReminderID.Valid:
		target, err = s.reminders.GetByID(ctx, p.ReminderID.Int64)
	case p.ContractID.Valid:
		target, err = s.reminders.GetOutstandingForContract(ctx, p.ContractID.Int64)
	default:
		log.Debug("Payment has neither reminder nor contract, nothing to settle")
		return nil, nil
	}
	if errors.Is(err, idb.ErrReminderNotFound) {
		log.Info("No reminder to settle for directly verified payment")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder to settle: %w", err)
	}

	switch target.Status {
	case reminder.StatusPaid, reminder.StatusCancelled, reminder.StatusFailed:
		log.WithField("reminder_id", target.ID).Info("Reminder is not open for settlement")
		return nil, nil
	}
	taken, err := s.payments.HasVerifiedForReminder(ctx, target.ID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reminder %d: %w", target.ID, err)
	}
	if taken {
		log.WithField("reminder_id", target.ID).Info("Reminder already settled by another payment")
		return nil, nil
	}

	if !p.ReminderID.Valid {
		p.ReminderID = sql.NullInt64{Int64: target.ID, Valid: true}
		if err := s.payments.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to link payment to reminder: %w", err)
		}
	}
	if err := s.markPaid(ctx, target); err != nil {
		return nil, err
	}
	if _, err := s.scheduler.ScheduleNext(ctx, target); err != nil {
		return nil, err
	}
	s.metrics.RemindersSettled.WithLabelValues(pathDirect).Inc()
	log.WithField("reminder_id", target.ID).Info("Reminder settled by directly verified payment")
	return target, nil
}

// RetryDirectPayments re-runs the allocator for verified multi-month
// payments without a conciliation, updated since the given time, whose
// months are not all settled yet.
func (s *SettlementService) RetryDirectPayments(ctx context.Context, since time.Time) (int, error) {
	pending, err := s.payments.ListVerifiedMultiMonthSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list verified multi-month payments: %w", err)
	}
	settled := 0
	for _, p := range pending {
		log := s.logger.WithField("payment_id", p.ID)
		done, err := s.payments.CountDerivedFrom(ctx, p.ID)
		if err != nil {
			log.WithError(err).Warn("Failed to count derived payments")
			continue
		}
		if done >= p.Months() {
			continue
		}
		res, err := s.SettleConciliation(ctx, nil, p)
		if err != nil {
			log.WithError(err).Warn("Settlement retry failed")
			continue
		}
		settled += len(res.SettledReminders)
	}
	return settled, nil
}

func (s *SettlementService) markPaid(ctx context.Context, r *reminder.Reminder) error {
	r.Status = reminder.StatusPaid
	r.AcknowledgedAt = sql.NullTime{Time: s.now(), Valid: true}
	if err := s.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to mark reminder %d paid: %w", r.ID, err)
	}
	return nil
}
