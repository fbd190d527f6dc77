package router_test

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

var (
	chainA = chaindata.NewChainID(chaindata.UniverseEthereum, 137)
	chainB = chaindata.NewChainID(chaindata.UniverseEthereum, 42161)

	usdcA  = chaindata.MustParseAddress("0x00000000000000000000000000000000000000a1")
	usdcB  = chaindata.MustParseAddress("0x00000000000000000000000000000000000000b1")
	tokenX = chaindata.MustParseAddress("0x0000000000000000000000000000000000000011")
	tokenY = chaindata.MustParseAddress("0x0000000000000000000000000000000000000022")
	tokenD = chaindata.MustParseAddress("0x00000000000000000000000000000000000000dd")
	user   = chaindata.MustParseAddress("0x0000000000000000000000000000000000000abc")
)

func testRegistry() *chaindata.Registry {
	return chaindata.NewRegistry([]chaindata.Chain{
		{ID: chainA, Name: "A", Currencies: []chaindata.Currency{{ID: chaindata.CurrencyUSDC, TokenAddress: usdcA, Decimals: 6}}},
		{ID: chainB, Name: "B", Currencies: []chaindata.Currency{{ID: chaindata.CurrencyUSDC, TokenAddress: usdcB, Decimals: 6}}},
	})
}

// usdc converts whole units to 6 decimal atomic units.
func usdc(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), big.NewInt(1_000_000))
}

type mockAggregator struct {
	name   string
	quote  func(req aggregators.QuoteRequest) *aggregators.Quote
	err    error
	panics bool
	short  bool
	block  chan struct{}

	calls atomic.Int64
	mu    sync.Mutex
	seen  []aggregators.QuoteRequest
}

// stalled never answers while the test runs.
func stalled(t *testing.T, name string) *mockAggregator {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	return &mockAggregator{name: name, block: block}
}

func (m *mockAggregator) Name() string { return m.name }

func (m *mockAggregator) GetQuotes(_ context.Context, reqs []aggregators.QuoteRequest) ([]*aggregators.Quote, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.seen = append(m.seen, reqs...)
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}
	if m.panics {
		panic("aggregator exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.short {
		return make([]*aggregators.Quote, len(reqs)+1), nil
	}
	out := make([]*aggregators.Quote, len(reqs))
	for i, r := range reqs {
		if m.quote != nil {
			out[i] = m.quote(r)
		}
	}
	return out, nil
}

func (m *mockAggregator) requests() []aggregators.QuoteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]aggregators.QuoteRequest(nil), m.seen...)
}

// linear quotes every pair at a fixed atomic rate. Output rounds down and
// ExactOut input rounds up.
func linear(rate string) func(aggregators.QuoteRequest) *aggregators.Quote {
	r := decimal.RequireFromString(rate)
	return func(req aggregators.QuoteRequest) *aggregators.Quote {
		switch q := req.(type) {
		case aggregators.ExactInRequest:
			out := decimal.NewFromBigInt(q.InputAmount, 0).Mul(r).Floor().BigInt()
			return &aggregators.Quote{
				Type:                aggregators.QuoteTypeExactIn,
				InputAmount:         new(big.Int).Set(q.InputAmount),
				OutputAmountMinimum: out,
				OutputAmountLikely:  out,
			}
		case aggregators.ExactOutRequest:
			in := decimal.NewFromBigInt(q.OutputAmount, 0).Div(r).Ceil().BigInt()
			return &aggregators.Quote{
				Type:                aggregators.QuoteTypeExactOut,
				InputAmount:         in,
				OutputAmountMinimum: new(big.Int).Set(q.OutputAmount),
				OutputAmountLikely:  new(big.Int).Set(q.OutputAmount),
			}
		}
		return nil
	}
}

// byToken routes quotes per input token; missing tokens get no route.
func byToken(rates map[chaindata.Address]func(aggregators.QuoteRequest) *aggregators.Quote) func(aggregators.QuoteRequest) *aggregators.Quote {
	return func(req aggregators.QuoteRequest) *aggregators.Quote {
		if f, ok := rates[req.Common().InputToken]; ok {
			return f(req)
		}
		return nil
	}
}

// bySeriousness prices surveys and executable quotes differently.
func bySeriousness(survey, serious func(aggregators.QuoteRequest) *aggregators.Quote) func(aggregators.QuoteRequest) *aggregators.Quote {
	return func(req aggregators.QuoteRequest) *aggregators.Quote {
		if req.Common().Seriousness == aggregators.Serious {
			return serious(req)
		}
		return survey(req)
	}
}

func newResolver(aggs ...aggregators.Aggregator) *router.QuoteResolver {
	return router.NewQuoteResolver(aggs)
}

func totalOutput(plan []router.ConsumptionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range plan {
		total = total.Add(rec.Output)
	}
	return total
}
