package metrics

import "github.com/prometheus/client_golang/prometheus"

// BusMetrics counts domain events flowing through the in-process bus.
type BusMetrics struct {
	published *prometheus.CounterVec
}

// NewBusMetrics registers the bus metrics on the provided registerer.
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	if reg == nil {
		return &BusMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Domain events published to the in-process bus.",
	}, []string{"aggregate_type", "event_type"})
	reg.MustRegister(published)
	return &BusMetrics{published: published}
}

// IncPublished increments the counter for one published event.
func (b *BusMetrics) IncPublished(aggregateType, eventType string) {
	if b == nil || b.published == nil {
		return
	}
	b.published.WithLabelValues(normalizeLabel(aggregateType), normalizeLabel(eventType)).Inc()
}
