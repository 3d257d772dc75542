package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billing"

// Metrics holds the counters exported by the billing engine.
type Metrics struct {
	RemindersScheduled      prometheus.Counter
	RemindersSettled        *prometheus.CounterVec // path: conciliation|direct
	SettlementFailures      prometheus.Counter
	ConciliationTransitions *prometheus.CounterVec // status
	RemindersDispatched     *prometheus.CounterVec // result: sent|failed
}

// New creates the counters and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemindersScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_scheduled_total",
			Help:      "Reminders created or re-targeted by the scheduler.",
		}),
		RemindersSettled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_settled_total",
			Help:      "Reminders marked paid, by settlement path.",
		}, []string{"path"}),
		SettlementFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_failures_total",
			Help:      "Reminders left unsettled because their settlement step failed.",
		}),
		ConciliationTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conciliation_transitions_total",
			Help:      "Conciliation status changes, by target status.",
		}, []string{"status"}),
		RemindersDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_dispatched_total",
			Help:      "Reminder dispatch attempts, by result.",
		}, []string{"result"}),
	}
}
