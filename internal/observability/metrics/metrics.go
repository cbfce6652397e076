package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the reservation engine.
type BookingMetrics struct {
	reserveTotal     *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	holdsSweptTotal  prometheus.Counter
	computeLatency   prometheus.Histogram
	outboxDelivered  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reserveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reservation",
			Name:      "reserve_total",
			Help:      "Total slot reservation attempts",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "appointment",
			Name:      "transitions_total",
			Help:      "Total appointment lifecycle transitions",
		}, []string{"event_type"}),
		holdsSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reservation",
			Name:      "holds_swept_total",
			Help:      "Total expired holds removed by sweeps",
		}),
		computeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "compute_latency_seconds",
			Help:      "Latency of slot computation including storage reads",
			Buckets:   prometheus.DefBuckets,
		}),
		outboxDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "events",
			Name:      "outbox_delivered_total",
			Help:      "Total outbox event deliveries",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reserveTotal, m.transitionsTotal, m.holdsSweptTotal, m.computeLatency, m.outboxDelivered)
	return m
}

func (m *BookingMetrics) ObserveReserve(outcome string) {
	if m == nil {
		return
	}
	m.reserveTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(eventType string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(eventType).Inc()
}

func (m *BookingMetrics) ObserveHoldsSwept(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.holdsSweptTotal.Add(float64(count))
}

func (m *BookingMetrics) ObserveComputeLatency(seconds float64) {
	if m == nil {
		return
	}
	m.computeLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveOutboxDelivery(eventType, status string) {
	if m == nil {
		return
	}
	m.outboxDelivered.WithLabelValues(eventType, status).Inc()
}
