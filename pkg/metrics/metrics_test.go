package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")

	m.AppointmentTransition("completed")
	m.AppointmentTransition("completed")
	m.BloodRequest("stock")
	m.SOSDelivery("delivered", 3)
	m.ObserveUpstream("matching", time.Now(), errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AppointmentTransitions.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BloodRequests.WithLabelValues("stock")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SOSDeliveries.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCalls.WithLabelValues("matching", "error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AppointmentTransition("cancelled")
		m.ObserveHTTP("GET", "/x", "200", time.Millisecond)
		m.ObserveUpstream("sms", time.Now(), nil)
	})
}
