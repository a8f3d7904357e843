package chathandler

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK            = "ok"
	outcomeStatusError   = "status_error"
	outcomeProtocolError = "protocol_error"
	outcomeTransport     = "transport_error"
)

// Metrics counts API calls by operation (create, restore, send) and outcome.
// A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webchat",
			Subsystem: "api_client",
			Name:      "requests_total",
			Help:      "Automation backend calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webchat",
			Subsystem: "api_client",
			Name:      "request_duration_seconds",
			Help:      "Latency of automation backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency)
	}
	return m
}

func (m *Metrics) observeOutcome(op, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) observeLatency(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

func outcomeFor(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return outcomeStatusError
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return outcomeProtocolError
	}
	return outcomeTransport
}
