package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts what the outbox publisher did with each row.
type OutboxMetrics struct {
	rows      *prometheus.CounterVec
	batchSize prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leafshop_outbox_rows_total",
			Help: "Outbox rows handled by the publisher, by result.",
		}, []string{"result"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leafshop_outbox_batch_rows",
			Help:    "Rows claimed per non-empty publisher batch.",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
	}
	reg.MustRegister(m.rows, m.batchSize)
	return m
}

// ObserveBatch records one batch: rows published, rows left for a retry and
// rows moved to the dead-letter table.
func (m *OutboxMetrics) ObserveBatch(published, retried, dead int) {
	if m == nil || m.rows == nil {
		return
	}
	total := published + retried + dead
	if total == 0 {
		return
	}
	m.rows.WithLabelValues("published").Add(float64(published))
	m.rows.WithLabelValues("retried").Add(float64(retried))
	m.rows.WithLabelValues("dead_lettered").Add(float64(dead))
	m.batchSize.Observe(float64(total))
}
