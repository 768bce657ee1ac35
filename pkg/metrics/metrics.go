// Package metrics exposes prometheus collectors for tipping activity.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	tips "github.com/attentionrush/tips"
)

// Outcome labels
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeAborted = "aborted"
	OutcomeFailed  = "failed"
)

// Metrics holds the service collectors
type Metrics struct {
	tips           *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	batchSize      prometheus.Histogram
	sessionsActive prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attentionrush",
			Name:      "tips_total",
			Help:      "Tips resolved, by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attentionrush",
			Name:      "submissions_total",
			Help:      "Wallet submissions resolved, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attentionrush",
			Name:      "batch_size",
			Help:      "Number of viewport tips per flushed batch.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "attentionrush",
			Name:      "sessions_active",
			Help:      "Sessions currently connected.",
		}),
	}

	for _, c := range []prometheus.Collector{m.tips, m.submissions, m.batchSize, m.sessionsActive} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
		}
	}
	return m, nil
}

// Outcome maps a transfer result to its metric label
func Outcome(result tips.TransferResult, err error) string {
	if err != nil {
		return OutcomeFailed
	}
	switch result.Status {
	case tips.TransferSent:
		return OutcomeSent
	case tips.TransferSkipped:
		return OutcomeSkipped
	case tips.TransferAborted:
		return OutcomeAborted
	default:
		return OutcomeFailed
	}
}

// ObserveBatch records a resolved viewport batch
func (m *Metrics) ObserveBatch(outcome tips.BatchOutcome) {
	m.batchSize.Observe(float64(len(outcome.Items)))
	m.tips.WithLabelValues(string(tips.TriggerViewport), Outcome(outcome.Result, outcome.Err)).Add(float64(len(outcome.Items)))
}

// ObserveTip records a resolved engagement tip
func (m *Metrics) ObserveTip(outcome tips.TipOutcome) {
	m.tips.WithLabelValues(string(tips.TriggerEngagement), Outcome(outcome.Result, outcome.Err)).Inc()
}

// SetSessions sets the active session gauge
func (m *Metrics) SetSessions(active int) {
	m.sessionsActive.Set(float64(active))
}

// InstrumentSession records every batch and tip of a session
func (m *Metrics) InstrumentSession(s *tips.Session) {
	s.OnBatch(m.ObserveBatch).OnTip(m.ObserveTip)
}

// InstrumentRegistry keeps the session gauge in step with the registry
func (m *Metrics) InstrumentRegistry(r *tips.Registry) {
	r.OnChange(m.SetSessions)
}

// InstrumentExecutor counts wallet submissions through the executor hooks
func (m *Metrics) InstrumentExecutor(e *tips.TransferExecutor) {
	e.OnAfterTransfer(func(ctx tips.TransferResultContext) error {
		m.submissions.WithLabelValues(string(ctx.Kind), OutcomeSent).Inc()
		return nil
	})
	e.OnTransferSkipped(func(ctx tips.TransferFailureContext) {
		m.submissions.WithLabelValues(string(ctx.Kind), OutcomeSkipped).Inc()
	})
	e.OnTransferFailure(func(ctx tips.TransferFailureContext) (*tips.TransferFailureHookResult, error) {
		m.submissions.WithLabelValues(string(ctx.Kind), OutcomeFailed).Inc()
		return nil, nil
	})
}
