package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the outbox publisher's progress.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	parked    *prometheus.CounterVec
	batchTime prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events appended to their stream.",
		}, []string{"aggregate_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Stream appends that failed and will be retried.",
		}, []string{"aggregate_type"}),
		parked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_parked_total",
			Help: "Events that hit the attempt cap and need manual replay.",
		}, []string{"aggregate_type"}),
		batchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_batch_duration_seconds",
			Help:    "Time spent claiming and publishing one batch.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	reg.MustRegister(m.published, m.failed, m.parked, m.batchTime)
	return m
}

func (m *OutboxMetrics) IncPublished(aggregate string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(aggregate)).Inc()
}

// IncFailed counts a failed append; parked marks the final allowed attempt.
func (m *OutboxMetrics) IncFailed(aggregate string, parked bool) {
	if m == nil || m.failed == nil {
		return
	}
	label := normalizeLabel(aggregate)
	if parked {
		m.parked.WithLabelValues(label).Inc()
		return
	}
	m.failed.WithLabelValues(label).Inc()
}

func (m *OutboxMetrics) ObserveBatch(elapsed time.Duration) {
	if m == nil || m.batchTime == nil {
		return
	}
	m.batchTime.Observe(elapsed.Seconds())
}
