package rpc

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
)

func testutilCounter(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	return testutil.ToFloat64(c)
}

func TestMetrics_AggregatorCall(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AggregatorCall("lifi", 4, 3, 120*time.Millisecond, nil)
	m.AggregatorCall("lifi", 2, 0, time.Second, &router.ProviderError{Aggregator: "lifi", Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.aggregatorCalls.WithLabelValues("lifi", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aggregatorCalls.WithLabelValues("lifi", "error")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.quotesRequested.WithLabelValues("lifi")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.quotesAnswered.WithLabelValues("lifi")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.aggregatorLatency))
}

func TestMetrics_OperationOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Operation("select_sources", time.Millisecond, nil)
	m.Operation("select_sources", time.Millisecond, fmt.Errorf("wrapped: %w", router.ErrInsufficientLiquidity))
	m.Operation("select_sources", time.Millisecond, fmt.Errorf("%w: chain", router.ErrConfiguration))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("select_sources", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("select_sources", "liquidity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("select_sources", "configuration")))
}
