package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/reminder"
	idb "billing_collections/internal/infra/database"
	"billing_collections/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// SendTime is the time of day reminders are dispatched at.
type SendTime struct {
	Hour   int
	Minute int
}

// ReminderScheduler keeps exactly one outstanding reminder per assigned contract.
type ReminderScheduler struct {
	tx        Transactor
	contracts contract.Repository
	reminders reminder.Repository
	sendAt    SendTime
	loc       *time.Location
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	now       func() time.Time
}

func NewReminderScheduler(
	tx Transactor,
	cr contract.Repository,
	rr reminder.Repository,
	sendAt SendTime,
	loc *time.Location,
	m *metrics.Metrics,
	logger *logrus.Entry,
) *ReminderScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderScheduler{
		tx:        tx,
		contracts: cr,
		reminders: rr,
		sendAt:    sendAt,
		loc:       loc,
		metrics:   m,
		logger:    logger.WithField("component", "reminder_scheduler"),
		now:       time.Now,
	}
}

// Schedule creates the contract's pending reminder, or re-targets the
// outstanding one, at next_due_date on the configured send time. A missing
// next_due_date is computed from today and stored on the contract.
// Unassigned contracts are skipped and yield a nil reminder.
func (s *ReminderScheduler) Schedule(ctx context.Context, c *contract.Contract) (*reminder.Reminder, error) {
	log := s.logger.WithField("contract_id", c.ID)
	if !c.ClientID.Valid {
		log.Info("Contract has no client, scheduling deferred until assignment")
		return nil, nil
	}

	var scheduled *reminder.Reminder
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if !c.NextDueDate.Valid {
			c.NextDueDate = sql.NullTime{Time: contract.NextDueDate(c.BillingCycle, s.today()), Valid: true}
			if err := s.contracts.Update(ctx, c); err != nil {
				return fmt.Errorf("failed to store computed due date: %w", err)
			}
			log.WithField("next_due_date", c.NextDueDate.Time.Format("2006-01-02")).Info("Computed next due date")
		}

		due := c.NextDueDate.Time
		scheduledFor := time.Date(due.Year(), due.Month(), due.Day(), s.sendAt.Hour, s.sendAt.Minute, 0, 0, s.loc)
		payload := reminderPayload(c)

		existing, err := s.reminders.GetOutstandingForContract(ctx, c.ID)
		switch {
		case err == nil:
			existing.ClientID = c.ClientID.Int64
			existing.ScheduledFor = scheduledFor
			existing.Payload = payload
			existing.Status = reminder.StatusPending
			if err := s.reminders.Update(ctx, existing); err != nil {
				return fmt.Errorf("failed to re-target reminder %d: %w", existing.ID, err)
			}
			scheduled = existing
			log.WithField("reminder_id", existing.ID).Info("Re-targeted outstanding reminder")
		case errors.Is(err, idb.ErrReminderNotFound):
			r := &reminder.Reminder{
				ContractID:      c.ID,
				ClientID:        c.ClientID.Int64,
				Channel:         reminder.ChannelTelegram,
				ScheduledFor:    scheduledFor,
				Status:          reminder.StatusPending,
				Payload:         payload,
				ResponsePayload: map[string]any{},
			}
			if err := s.reminders.Create(ctx, r); err != nil {
				return fmt.Errorf("failed to create reminder: %w", err)
			}
			scheduled = r
			log.WithField("reminder_id", r.ID).Info("Created pending reminder")
		default:
			return fmt.Errorf("failed to look up outstanding reminder: %w", err)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to schedule reminder")
		return nil, err
	}
	s.metrics.RemindersScheduled.Inc()
	return scheduled, nil
}

// ScheduleNext runs after a reminder is settled. For a recurring contract it
// moves next_due_date one cycle past the settled due date, unless the
// contract is already ahead of it, and creates the next pending reminder
// when none is outstanding.
func (s *ReminderScheduler) ScheduleNext(ctx context.Context, settled *reminder.Reminder) (*reminder.Reminder, error) {
	log := s.logger.WithFields(logrus.Fields{
		"contract_id": settled.ContractID,
		"reminder_id": settled.ID,
	})

	var next *reminder.Reminder
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.contracts.GetByID(ctx, settled.ContractID)
		if errors.Is(err, idb.ErrContractNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load contract %d: %w", settled.ContractID, err)
		}
		if c.BillingCycle == contract.CycleOneTime || !c.ClientID.Valid {
			return nil
		}

		settledDue := civilDate(settled.ScheduledFor.In(s.loc))
		if !c.NextDueDate.Valid || !civilDate(c.NextDueDate.Time).After(settledDue) {
			c.NextDueDate = sql.NullTime{Time: contract.NextDueDate(c.BillingCycle, settledDue), Valid: true}
			if err := s.contracts.Update(ctx, c); err != nil {
				return fmt.Errorf("failed to advance due date: %w", err)
			}
			log.WithField("next_due_date", c.NextDueDate.Time.Format("2006-01-02")).Info("Advanced next due date")
		}

		_, err = s.reminders.GetOutstandingForContract(ctx, c.ID)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, idb.ErrReminderNotFound):
			return fmt.Errorf("failed to look up outstanding reminder: %w", err)
		}
		next, err = s.Schedule(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// civilDate drops the clock and zone, keeping the calendar day.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *ReminderScheduler) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}

func reminderPayload(c *contract.Contract) map[string]any {
	p := map[string]any{
		"contract_id":   c.ID,
		"contract_name": c.Name,
		"amount":        c.Amount.StringFixed(2),
		"currency":      c.Currency,
		"due_date":      c.NextDueDate.Time.Format("2006-01-02"),
	}
	if services := c.Services(); services != "" {
		p["services"] = services
	}
	return p
}
