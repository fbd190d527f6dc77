package rpc

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
)

// Metrics records aggregator and engine activity in Prometheus.
type Metrics struct {
	aggregatorCalls   *prometheus.CounterVec
	aggregatorLatency *prometheus.HistogramVec
	quotesAnswered    *prometheus.CounterVec
	quotesRequested   *prometheus.CounterVec
	operations        *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
}

var _ router.Recorder = (*Metrics)(nil)

// NewMetrics registers the collectors with reg, prometheus.DefaultRegisterer when nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		aggregatorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xcs",
			Name:      "aggregator_calls_total",
			Help:      "Batched quote calls per aggregator by outcome.",
		}, []string{"aggregator", "outcome"}),
		aggregatorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xcs",
			Name:      "aggregator_call_duration_seconds",
			Help:      "Duration of batched quote calls per aggregator.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		}, []string{"aggregator"}),
		quotesRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xcs",
			Name:      "quotes_requested_total",
			Help:      "Quote requests sent per aggregator.",
		}, []string{"aggregator"}),
		quotesAnswered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xcs",
			Name:      "quotes_answered_total",
			Help:      "Quote requests that got a route per aggregator.",
		}, []string{"aggregator"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xcs",
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		}, []string{"operation", "outcome"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xcs",
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"operation"}),
	}
	reg.MustRegister(
		m.aggregatorCalls,
		m.aggregatorLatency,
		m.quotesRequested,
		m.quotesAnswered,
		m.operations,
		m.operationLatency,
	)
	return m
}

func (m *Metrics) AggregatorCall(aggregator string, requested, answered int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.aggregatorCalls.WithLabelValues(aggregator, outcome).Inc()
	m.aggregatorLatency.WithLabelValues(aggregator).Observe(elapsed.Seconds())
	m.quotesRequested.WithLabelValues(aggregator).Add(float64(requested))
	m.quotesAnswered.WithLabelValues(aggregator).Add(float64(answered))
}

func (m *Metrics) Operation(name string, elapsed time.Duration, err error) {
	m.operations.WithLabelValues(name, operationOutcome(err)).Inc()
	m.operationLatency.WithLabelValues(name).Observe(elapsed.Seconds())
}

func operationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, router.ErrLiquidity):
		return "liquidity"
	case errors.Is(err, router.ErrConfiguration):
		return "configuration"
	case errors.Is(err, router.ErrInvalidRequest):
		return "invalid_request"
	}
	return "error"
}
