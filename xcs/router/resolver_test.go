package router_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

func exactIn(token chaindata.Address, amount int64) aggregators.QuoteRequest {
	return aggregators.ExactInRequest{
		RequestCommon: aggregators.RequestCommon{
			UserAddress: user,
			Chain:       chainA,
			InputToken:  token,
			OutputToken: usdcA,
		},
		InputAmount: big.NewInt(amount),
	}
}

func TestResolveEmptyBatchMakesNoCalls(t *testing.T) {
	agg := &mockAggregator{name: "a", quote: linear("1")}
	res := newResolver(agg).Resolve(context.Background(), nil, router.MaximizeOutput)
	assert.Equal(t, len(res), 0)
	assert.Equal(t, agg.calls.Load(), int64(0))
}

func TestResolveIsolatesFailingAggregators(t *testing.T) {
	failing := &mockAggregator{name: "failing", err: errors.New("http 502")}
	panicking := &mockAggregator{name: "panicking", panics: true}
	short := &mockAggregator{name: "short", short: true}
	low := &mockAggregator{name: "low", quote: linear("0.4")}
	high := &mockAggregator{name: "high", quote: linear("0.5")}

	r := newResolver(failing, panicking, short, low, high)
	reqs := []aggregators.QuoteRequest{exactIn(tokenX, 100), exactIn(tokenX, 1000)}
	res := r.Resolve(context.Background(), reqs, router.MaximizeOutput)

	assert.Equal(t, len(res), 2)
	for i, want := range []string{"50", "500"} {
		assert.NotNil(t, res[i].Quote)
		assert.Equal(t, res[i].Aggregator, "high")
		assert.Equal(t, res[i].Quote.OutputAmountMinimum.String(), want)
	}
	assert.Equal(t, failing.calls.Load(), int64(1))
	assert.Equal(t, panicking.calls.Load(), int64(1))
}

func TestResolveAllFailingLeavesEmptySlots(t *testing.T) {
	r := newResolver(&mockAggregator{name: "a", err: errors.New("down")})
	res := r.Resolve(context.Background(), []aggregators.QuoteRequest{exactIn(tokenX, 1)}, router.MaximizeOutput)
	assert.Equal(t, len(res), 1)
	assert.True(t, res[0].Quote == nil)
	assert.Equal(t, res[0].Aggregator, "")
}

func TestResolveTieGoesToFirstConfigured(t *testing.T) {
	first := &mockAggregator{name: "first", quote: linear("2")}
	second := &mockAggregator{name: "second", quote: linear("2")}
	r := newResolver(first, second)

	for range 25 {
		res := r.Resolve(context.Background(), []aggregators.QuoteRequest{exactIn(tokenX, 10)}, router.MaximizeOutput)
		assert.Equal(t, res[0].Aggregator, "first")
	}
}

func TestResolveMinimizeInput(t *testing.T) {
	cheap := &mockAggregator{name: "cheap", quote: linear("0.5")}
	dear := &mockAggregator{name: "dear", quote: linear("0.25")}
	r := newResolver(dear, cheap)

	req := aggregators.ExactOutRequest{
		RequestCommon: aggregators.RequestCommon{Chain: chainA, InputToken: tokenX, OutputToken: usdcA},
		OutputAmount:  big.NewInt(100),
	}
	res := r.Resolve(context.Background(), []aggregators.QuoteRequest{req}, router.MinimizeInput)
	assert.Equal(t, res[0].Aggregator, "cheap")
	assert.Equal(t, res[0].Quote.InputAmount.String(), "200")
}

func TestResolvePerIndexWinnersCanDiffer(t *testing.T) {
	onlyX := &mockAggregator{name: "x-only", quote: byToken(map[chaindata.Address]func(aggregators.QuoteRequest) *aggregators.Quote{
		tokenX: linear("3"),
	})}
	all := &mockAggregator{name: "all", quote: linear("1")}
	r := newResolver(onlyX, all)

	res := r.Resolve(context.Background(), []aggregators.QuoteRequest{exactIn(tokenX, 10), exactIn(tokenY, 10)}, router.MaximizeOutput)
	assert.Equal(t, res[0].Aggregator, "x-only")
	assert.Equal(t, res[1].Aggregator, "all")
}

func TestResolveTimesOutStalledAggregator(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stalled := &mockAggregator{name: "stalled", quote: linear("9"), block: release}
	healthy := &mockAggregator{name: "healthy", quote: linear("1")}
	rec := &countingRecorder{}
	r := router.NewQuoteResolver(
		[]aggregators.Aggregator{stalled, healthy},
		router.WithCallTimeout(50*time.Millisecond),
		router.WithRecorder(rec),
	)

	start := time.Now()
	res := r.Resolve(context.Background(), []aggregators.QuoteRequest{exactIn(tokenX, 10)}, router.MaximizeOutput)
	assert.True(t, time.Since(start) < 5*time.Second)
	assert.Equal(t, res[0].Aggregator, "healthy")
	assert.Equal(t, rec.failures("stalled"), 1)
	assert.Equal(t, rec.failures("healthy"), 0)
}

type countingRecorder struct {
	mu     sync.Mutex
	failed map[string]int
	ops    map[string]int
}

func (c *countingRecorder) AggregatorCall(name string, _, _ int, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed == nil {
		c.failed = map[string]int{}
	}
	if err != nil {
		var perr *router.ProviderError
		if errors.As(err, &perr) {
			c.failed[perr.Aggregator]++
		}
	}
}

func (c *countingRecorder) Operation(name string, _ time.Duration, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ops == nil {
		c.ops = map[string]int{}
	}
	c.ops[name]++
}

func (c *countingRecorder) failures(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[name]
}

func (c *countingRecorder) operations(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops[name]
}
