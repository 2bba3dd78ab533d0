package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Domain metrics
	AppointmentTransitions *prometheus.CounterVec
	StockAdjustments       *prometheus.CounterVec
	BloodRequests          *prometheus.CounterVec
	SOSDeliveries          *prometheus.CounterVec

	// Collaborator metrics
	UpstreamCalls   *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		AppointmentTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Appointments entering a status",
		}, []string{"status"}),
		StockAdjustments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Blood stock ledger adjustments",
		}, []string{"operation", "blood_group"}),
		BloodRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blood_requests_total",
			Help:      "Blood requests by how they were answered",
		}, []string{"outcome"}),
		SOSDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sos_deliveries_total",
			Help:      "Per-hospital SOS copies by result",
		}, []string{"result"}),

		UpstreamCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Calls to external collaborators",
		}, []string{"collaborator", "status"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Duration of calls to external collaborators",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"collaborator"}),
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) AppointmentTransition(status string) {
	if m == nil {
		return
	}
	m.AppointmentTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) StockAdjusted(operation, bloodGroup string) {
	if m == nil {
		return
	}
	m.StockAdjustments.WithLabelValues(operation, bloodGroup).Inc()
}

func (m *Metrics) BloodRequest(outcome string) {
	if m == nil {
		return
	}
	m.BloodRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SOSDelivery(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SOSDeliveries.WithLabelValues(result).Add(float64(n))
}

// ObserveUpstream records one collaborator call; err decides the status label.
func (m *Metrics) ObserveUpstream(collaborator string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.UpstreamCalls.WithLabelValues(collaborator, status).Inc()
	m.UpstreamLatency.WithLabelValues(collaborator).Observe(time.Since(start).Seconds())
}
