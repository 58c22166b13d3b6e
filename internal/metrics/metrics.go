package metrics

import "github.com/prometheus/client_golang/prometheus"

// PortalMetrics exposes counters/histograms for backend calls and view-state updates.
type PortalMetrics struct {
	gatewayTotal   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	staleDropped   *prometheus.CounterVec
	sessions       *prometheus.CounterVec
}

func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	m := &PortalMetrics{
		gatewayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patient_portal",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total backend requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "patient_portal",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		staleDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patient_portal",
			Subsystem: "state",
			Name:      "stale_responses_dropped_total",
			Help:      "Responses discarded because a newer request for the same target was issued",
		}, []string{"component"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patient_portal",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session lifecycle events",
		}, []string{"event"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.gatewayTotal, m.gatewayLatency, m.staleDropped, m.sessions)
	return m
}

func (m *PortalMetrics) ObserveGatewayRequest(endpoint, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayTotal.WithLabelValues(endpoint, outcome).Inc()
	m.gatewayLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *PortalMetrics) ObserveStaleResponse(component string) {
	if m == nil {
		return
	}
	m.staleDropped.WithLabelValues(component).Inc()
}

func (m *PortalMetrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}
