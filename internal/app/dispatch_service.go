package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/message"
	"billing_collections/internal/domain/reminder"
	"billing_collections/internal/domain/settings"
	domainTelegram "billing_collections/internal/domain/telegram"
	idb "billing_collections/internal/infra/database"
	"billing_collections/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

const (
	defaultDispatchBatch = 100

	// maxDispatchAttempts bounds how often a send error is retried before
	// the reminder is marked failed.
	maxDispatchAttempts = 3
)

// DispatchService is the boundary between reminders and the messaging
// channel: it lists due reminders, renders their text and records the
// delivery outcome. It never marks a reminder paid.
type DispatchService struct {
	clients   client.Repository
	contracts contract.Repository
	reminders reminder.Repository
	settings  settings.Repository
	messenger domainTelegram.Client // nil disables DispatchDue
	locale    string
	lookahead time.Duration
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	now       func() time.Time
}

func NewDispatchService(
	clr client.Repository,
	cr contract.Repository,
	rr reminder.Repository,
	sr settings.Repository,
	messenger domainTelegram.Client,
	locale string,
	lookahead time.Duration,
	m *metrics.Metrics,
	logger *logrus.Entry,
) *DispatchService {
	return &DispatchService{
		clients:   clr,
		contracts: cr,
		reminders: rr,
		settings:  sr,
		messenger: messenger,
		locale:    locale,
		lookahead: lookahead,
		metrics:   m,
		logger:    logger.WithField("component", "dispatch"),
		now:       time.Now,
	}
}

// ListDue returns pending and queued reminders scheduled up to now+lookahead.
// A non-positive lookahead uses the configured default.
func (s *DispatchService) ListDue(ctx context.Context, lookahead time.Duration) ([]*reminder.Reminder, error) {
	if lookahead <= 0 {
		lookahead = s.lookahead
	}
	return s.reminders.ListDue(ctx, s.now().Add(lookahead), defaultDispatchBatch)
}

type AckInput struct {
	Status          string
	ResponsePayload map[string]any
	AcknowledgedAt  *time.Time
}

var ackStatuses = map[reminder.Status]bool{
	reminder.StatusQueued: true,
	reminder.StatusSent:   true,
	reminder.StatusFailed: true,
}

// Acknowledge records what the messaging side did with a reminder. Paid and
// acknowledged belong to settlement and cannot be set here.
func (s *DispatchService) Acknowledge(ctx context.Context, id int64, in AckInput) (*reminder.Reminder, error) {
	status := reminder.Status(strings.ToLower(in.Status))
	if !ackStatuses[status] {
		return nil, invalid("status", fmt.Sprintf("%q cannot be set by acknowledgement", in.Status))
	}
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	switch r.Status {
	case reminder.StatusPaid, reminder.StatusCancelled:
		return nil, fmt.Errorf("%w: reminder %d is %s", ErrInvalidTransition, id, r.Status)
	}

	r.Status = status
	if in.ResponsePayload != nil {
		r.ResponsePayload = in.ResponsePayload
	}
	if status == reminder.StatusSent || status == reminder.StatusFailed {
		r.Attempts++
	}
	if in.AcknowledgedAt != nil {
		r.AcknowledgedAt = sql.NullTime{Time: *in.AcknowledgedAt, Valid: true}
	} else if status != reminder.StatusQueued {
		r.AcknowledgedAt = sql.NullTime{Time: s.now(), Valid: true}
	}
	if err := s.reminders.Update(ctx, r); err != nil {
		return nil, classify(err)
	}
	return r, nil
}

// RenderMessage builds the outbound text for one reminder.
func (s *DispatchService) RenderMessage(ctx context.Context, id int64) (string, error) {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return "", classify(err)
	}
	global, err := s.settings.GetAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	text, _, err := s.render(ctx, r, global)
	return text, err
}

func (s *DispatchService) render(ctx context.Context, r *reminder.Reminder, global map[string]string) (string, *client.Client, error) {
	c, err := s.contracts.GetByID(ctx, r.ContractID)
	if err != nil && !errors.Is(err, idb.ErrContractNotFound) {
		return "", nil, fmt.Errorf("failed to load contract %d: %w", r.ContractID, err)
	}
	cl, err := s.clients.GetByID(ctx, r.ClientID)
	if err != nil && !errors.Is(err, idb.ErrClientNotFound) {
		return "", nil, fmt.Errorf("failed to load client %d: %w", r.ClientID, err)
	}
	text, err := message.Render(message.Input{
		Settings: global,
		Reminder: r,
		Contract: c,
		Client:   cl,
		Locale:   s.locale,
	})
	return text, cl, err
}

// DispatchDue sends every due reminder through the messenger. A missing
// template aborts the whole run before anything is sent.
func (s *DispatchService) DispatchDue(ctx context.Context) (sent, failed int, err error) {
	if s.messenger == nil {
		return 0, 0, fmt.Errorf("no messenger configured")
	}
	global, err := s.settings.GetAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load settings: %w", err)
	}
	if strings.TrimSpace(global[settings.KeyReminderTemplate]) == "" {
		return 0, 0, message.ErrTemplateMissing
	}

	due, err := s.ListDue(ctx, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list due reminders: %w", err)
	}
	for _, r := range due {
		log := s.logger.WithField("reminder_id", r.ID)
		if err := s.dispatchOne(ctx, r, global); err != nil {
			failed++
			s.metrics.RemindersDispatched.WithLabelValues("failed").Inc()
			log.WithError(err).Warn("Reminder dispatch failed")
			continue
		}
		sent++
		s.metrics.RemindersDispatched.WithLabelValues("sent").Inc()
	}
	if len(due) > 0 {
		s.logger.WithFields(logrus.Fields{"sent": sent, "failed": failed}).Info("Reminder dispatch run finished")
	}
	return sent, failed, nil
}

func (s *DispatchService) dispatchOne(ctx context.Context, r *reminder.Reminder, global map[string]string) error {
	text, cl, err := s.render(ctx, r, global)
	if err != nil {
		return s.fail(ctx, r, err)
	}
	if cl == nil || !cl.TelegramChatID.Valid {
		return s.fail(ctx, r, fmt.Errorf("client %d has no telegram chat", r.ClientID))
	}
	messageID, err := s.messenger.SendMessage(cl.TelegramChatID.Int64, text, nil)
	if err != nil {
		return s.retry(ctx, r, err)
	}
	_, err = s.Acknowledge(ctx, r.ID, AckInput{
		Status:          string(reminder.StatusSent),
		ResponsePayload: map[string]any{"message_id": messageID, "chat_id": cl.TelegramChatID.Int64},
	})
	return err
}

func (s *DispatchService) fail(ctx context.Context, r *reminder.Reminder, cause error) error {
	if _, err := s.Acknowledge(ctx, r.ID, AckInput{
		Status:          string(reminder.StatusFailed),
		ResponsePayload: map[string]any{"error": cause.Error()},
	}); err != nil {
		return fmt.Errorf("%w (recording failure: %v)", cause, err)
	}
	return cause
}

// retry keeps a reminder queued after a send error so the next run picks it
// up again. The last allowed attempt marks it failed.
func (s *DispatchService) retry(ctx context.Context, r *reminder.Reminder, cause error) error {
	if r.Attempts+1 >= maxDispatchAttempts {
		return s.fail(ctx, r, cause)
	}
	r.Attempts++
	r.Status = reminder.StatusQueued
	r.ResponsePayload = map[string]any{"error": cause.Error()}
	if err := s.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("%w (recording retry: %v)", cause, err)
	}
	s.logger.WithFields(logrus.Fields{
		"reminder_id": r.ID,
		"attempts":    r.Attempts,
	}).Info("Reminder send failed, queued for retry")
	return cause
}
