package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Dispatcher sends due reminders.
type Dispatcher interface {
	DispatchDue(ctx context.Context) (sent, failed int, err error)
}

// SettlementRetrier re-runs settlement for recently approved conciliations.
type SettlementRetrier interface {
	RetrySettlements(ctx context.Context, since time.Time) (int, error)
}

type CollectionsScheduler struct {
	cronEngine       *cron.Cron
	dispatcher       Dispatcher // nil skips the dispatch job
	retrier          SettlementRetrier
	logger           *logrus.Entry
	cronSpecDispatch string
	cronSpecRetry    string
	retryWindow      time.Duration
	now              func() time.Time
}

func NewCollectionsScheduler(
	dispatcher Dispatcher,
	retrier SettlementRetrier,
	logger *logrus.Entry,
	loc *time.Location,
	cronSpecDispatch string, // e.g., "*/5 * * * *" (every 5 minutes)
	cronSpecRetry string, // e.g., "0 * * * *" (hourly)
	retryWindow time.Duration,
) *CollectionsScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &CollectionsScheduler{
		cronEngine:       cron.New(cron.WithLocation(loc)),
		dispatcher:       dispatcher,
		retrier:          retrier,
		logger:           logger.WithField("component", "scheduler"),
		cronSpecDispatch: cronSpecDispatch,
		cronSpecRetry:    cronSpecRetry,
		retryWindow:      retryWindow,
		now:              time.Now,
	}
}

// Start registers the jobs and starts the cron engine. It fails on an
// invalid cron spec.
func (s *CollectionsScheduler) Start() error {
	s.logger.Info("Starting collections scheduler...")

	if s.dispatcher != nil {
		if _, err := s.cronEngine.AddFunc(s.cronSpecDispatch, s.runDispatch); err != nil {
			return err
		}
	} else {
		s.logger.Warn("No dispatcher configured, reminder dispatch job disabled")
	}

	if _, err := s.cronEngine.AddFunc(s.cronSpecRetry, s.runSettlementRetry); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithField("jobs", len(s.cronEngine.Entries())).Info("Collections scheduler started with jobs.")
	return nil
}

func (s *CollectionsScheduler) runDispatch() {
	s.logger.Debug("Cron job triggered for reminder dispatch.")
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()
	sent, failed, err := s.dispatcher.DispatchDue(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error during reminder dispatch")
		return
	}
	if sent+failed > 0 {
		s.logger.WithFields(logrus.Fields{"sent": sent, "failed": failed}).Info("Reminder dispatch finished")
	}
}

func (s *CollectionsScheduler) runSettlementRetry() {
	s.logger.Debug("Cron job triggered for settlement retry.")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute) // Longer timeout for potentially more items
	defer cancel()
	since := s.now().Add(-s.retryWindow)
	n, err := s.retrier.RetrySettlements(ctx, since)
	if err != nil {
		s.logger.WithError(err).Error("Error during settlement retry")
		return
	}
	s.logger.WithField("conciliations", n).Debug("Settlement retry finished")
}

func (s *CollectionsScheduler) Stop() {
	s.logger.Info("Stopping collections scheduler...")
	ctx := s.cronEngine.Stop() // Waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Collections scheduler gracefully stopped.")
}
