package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout outcomes and reservation contention.
type CheckoutMetrics struct {
	outcomes      *prometheus.CounterVec
	duration      prometheus.Histogram
	conflicts     prometheus.Counter
	compensations *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leafshop_checkout_outcomes_total",
		Help: "Checkout attempts by outcome code.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leafshop_checkout_duration_seconds",
		Help:    "Duration of checkout attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leafshop_reservation_conflicts_total",
		Help: "Optimistic version conflicts hit while reserving stock.",
	})
	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leafshop_checkout_compensations_total",
		Help: "Compensating releases run after a failed checkout, by result.",
	}, []string{"result"})
	reg.MustRegister(outcomes, duration, conflicts, compensations)
	return &CheckoutMetrics{
		outcomes:      outcomes,
		duration:      duration,
		conflicts:     conflicts,
		compensations: compensations,
	}
}

// ObserveOutcome records one finished checkout attempt.
func (c *CheckoutMetrics) ObserveOutcome(outcome string, elapsed time.Duration) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// IncConflict counts a version conflict on an inventory record.
func (c *CheckoutMetrics) IncConflict() {
	if c == nil || c.conflicts == nil {
		return
	}
	c.conflicts.Inc()
}

// IncCompensation counts a compensation run; ok reports whether every
// release succeeded.
func (c *CheckoutMetrics) IncCompensation(ok bool) {
	if c == nil || c.compensations == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "partial"
	}
	c.compensations.WithLabelValues(result).Inc()
}
