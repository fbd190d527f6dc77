package router

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

// Holding is a user balance of one token on one chain.
type Holding struct {
	Chain        chaindata.ChainID
	TokenAddress chaindata.Address
	// Amount is in atomic units of the token.
	Amount *big.Int
	// Value is an optional valuation score. Higher scores are spent first
	// among holdings with equal collection fees.
	Value decimal.NullDecimal
}

// ConsumptionRecord is one step of a source plan. Exactly one of Direct and
// Swap is set.
type ConsumptionRecord struct {
	Holding Holding
	// Priority is the holding's position in the caller's list.
	Priority int
	// Output is the settlement currency this step is counted for, in whole
	// units. For swaps it is the guaranteed minimum.
	Output decimal.Decimal
	Direct *DirectConsumption
	Swap   *SwapConsumption
}

// DirectConsumption spends settlement currency as is.
type DirectConsumption struct {
	Amount *big.Int
}

// SwapConsumption converts part or all of a holding into settlement currency.
type SwapConsumption struct {
	Amount     *big.Int
	Aggregator string
	Quote      *aggregators.Quote
}

// ConsumedAmount is the atomic amount taken from the holding.
func (r ConsumptionRecord) ConsumedAmount() *big.Int {
	switch {
	case r.Direct != nil:
		return r.Direct.Amount
	case r.Swap != nil:
		return r.Swap.Amount
	}
	return new(big.Int)
}

// RequiredAsset is a token the destination side must receive.
type RequiredAsset struct {
	Token  chaindata.Address
	Amount *big.Int
}

// DestinationSwap funds one required asset from settlement currency. Quote is
// nil when the asset already is the settlement currency.
type DestinationSwap struct {
	Token      chaindata.Address
	Aggregator string
	Quote      *aggregators.Quote
	// InputAmount is the settlement currency spent, in whole units.
	InputAmount decimal.Decimal
	// OutputAmount is the guaranteed atomic amount of Token.
	OutputAmount *big.Int
}

// HoldingValue is one holding expressed in settlement currency.
type HoldingValue struct {
	Holding    Holding
	Value      decimal.Decimal
	Canonical  bool
	Aggregator string
	Quote      *aggregators.Quote
}

// Valuation totals what a set of holdings is worth in settlement currency.
// Holdings no aggregator could price are listed in Unpriced.
type Valuation struct {
	Total    decimal.Decimal
	Holdings []HoldingValue
	Unpriced []Holding
}

type options struct {
	settlement  chaindata.CurrencyID
	convergence ConvergenceConfig
	recorder    Recorder
}

func defaultOptions() options {
	return options{
		settlement:  chaindata.CurrencyUSDC,
		convergence: DefaultConvergenceConfig(),
		recorder:    nopRecorder{},
	}
}

// Option configures a SourceSelector or a DestinationResolver.
type Option func(*options)

func WithSettlementCurrency(id chaindata.CurrencyID) Option {
	return func(o *options) {
		if id != 0 {
			o.settlement = id
		}
	}
}

func WithConvergence(cfg ConvergenceConfig) Option {
	return func(o *options) {
		o.convergence = cfg.withDefaults()
	}
}

// WithOperationRecorder reports the duration and outcome of each public call.
func WithOperationRecorder(rec Recorder) Option {
	return func(o *options) {
		if rec != nil {
			o.recorder = rec
		}
	}
}

func atomicDecimal(n *big.Int) decimal.Decimal {
	if n == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n, 0)
}
