package router

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

// DestinationResolver turns settlement currency into the assets a transfer
// has to deliver.
type DestinationResolver struct {
	registry *chaindata.Registry
	resolver *QuoteResolver
	opts     options
}

func NewDestinationResolver(registry *chaindata.Registry, resolver *QuoteResolver, opts ...Option) *DestinationResolver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &DestinationResolver{registry: registry, resolver: resolver, opts: o}
}

func (d *DestinationResolver) settlementOn(chain chaindata.ChainID) (chaindata.Currency, error) {
	c, err := d.registry.Currency(chain, d.opts.settlement)
	if err != nil {
		return chaindata.Currency{}, configurationError(err)
	}
	return c, nil
}

// DetermineDestinationSwaps sizes one settlement to destination swap per
// required asset so that each guarantees at least the required amount.
// Results follow the order of required.
func (d *DestinationResolver) DetermineDestinationSwaps(
	ctx context.Context,
	user chaindata.Address,
	chain chaindata.ChainID,
	required []RequiredAsset,
) (swaps []DestinationSwap, err error) {
	start := time.Now()
	defer func() { d.opts.recorder.Operation("determine_destination_swaps", time.Since(start), err) }()

	settlement, err := d.settlementOn(chain)
	if err != nil {
		return nil, err
	}

	swaps = make([]DestinationSwap, len(required))
	surveyOf := make([]int, len(required))
	var surveys []aggregators.QuoteRequest
	for i, asset := range required {
		if asset.Amount == nil || asset.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: required amount for %s must be positive", ErrInvalidRequest, asset.Token)
		}
		surveyOf[i] = -1
		if asset.Token == settlement.TokenAddress {
			swaps[i] = DestinationSwap{
				Token:        asset.Token,
				InputAmount:  settlement.ToDecimal(asset.Amount),
				OutputAmount: new(big.Int).Set(asset.Amount),
			}
			continue
		}
		surveyOf[i] = len(surveys)
		// Reverse direction, only to learn the price.
		surveys = append(surveys, aggregators.ExactInRequest{
			RequestCommon: aggregators.RequestCommon{
				UserAddress: user,
				Chain:       chain,
				InputToken:  asset.Token,
				OutputToken: settlement.TokenAddress,
				Seriousness: aggregators.PriceSurvey,
			},
			InputAmount: new(big.Int).Set(asset.Amount),
		})
	}

	quotes, err := d.resolver.resolve(ctx, surveys, MaximizeOutput)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range required {
		if surveyOf[i] < 0 {
			continue
		}
		survey := quotes[surveyOf[i]]
		g.Go(func() error {
			if survey.Quote == nil {
				return fmt.Errorf("%w: no price for %s on %s", ErrNoRoute, asset.Token, chain)
			}
			implied := settlement.ToDecimal(survey.Quote.OutputAmountMinimum)
			swap, err := d.sizeSwap(gctx, user, chain, settlement, asset, implied.Mul(d.opts.convergence.Multiplier))
			if err != nil {
				return fmt.Errorf("failed to size swap into %s: %w", asset.Token, err)
			}
			swaps[i] = swap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		loggerFor(ctx).Warn().Err(err).Stringer("chain", chain).Msg("Destination sizing failed")
		return nil, err
	}

	loggerFor(ctx).Info().Stringer("chain", chain).Int("swaps", len(swaps)).Msg("Destination swaps ready")
	return swaps, nil
}

// DetermineDestinationSwap is DetermineDestinationSwaps for a single asset.
func (d *DestinationResolver) DetermineDestinationSwap(
	ctx context.Context,
	user chaindata.Address,
	chain chaindata.ChainID,
	asset RequiredAsset,
) (DestinationSwap, error) {
	swaps, err := d.DetermineDestinationSwaps(ctx, user, chain, []RequiredAsset{asset})
	if err != nil {
		return DestinationSwap{}, err
	}
	return swaps[0], nil
}

func (d *DestinationResolver) sizeSwap(
	ctx context.Context,
	user chaindata.Address,
	chain chaindata.ChainID,
	settlement chaindata.Currency,
	asset RequiredAsset,
	initial decimal.Decimal,
) (DestinationSwap, error) {
	return Converge(ctx, d.opts.convergence, initial, decimal.NullDecimal{},
		func(ctx context.Context, amount decimal.Decimal, iteration int) (DestinationSwap, bool, error) {
			in := settlement.ToAtomic(amount)
			batch, err := d.resolver.resolve(ctx, []aggregators.QuoteRequest{
				settlementExactIn(user, chain, settlement, asset.Token, in),
			}, MaximizeOutput)
			if err != nil {
				return DestinationSwap{}, false, err
			}
			resolved := batch[0]
			if resolved.Quote == nil {
				loggerFor(ctx).Debug().Int("iteration", iteration).Str("input", amount.String()).Msg("No serious quote")
				return DestinationSwap{}, false, nil
			}
			loggerFor(ctx).Debug().
				Int("iteration", iteration).
				Str("input", amount.String()).
				Str("output", resolved.Quote.OutputAmountMinimum.String()).
				Str("required", asset.Amount.String()).
				Msg("Destination attempt")
			if resolved.Quote.OutputAmountMinimum.Cmp(asset.Amount) < 0 {
				return DestinationSwap{}, false, nil
			}
			return DestinationSwap{
				Token:        asset.Token,
				Aggregator:   resolved.Aggregator,
				Quote:        resolved.Quote,
				InputAmount:  settlement.ToDecimal(in),
				OutputAmount: resolved.Quote.OutputAmountMinimum,
			}, true, nil
		})
}

// DestinationSwapWithExactIn converts a fixed settlement spend into outputToken.
func (d *DestinationResolver) DestinationSwapWithExactIn(
	ctx context.Context,
	user chaindata.Address,
	chain chaindata.ChainID,
	input decimal.Decimal,
	outputToken chaindata.Address,
) (swap DestinationSwap, err error) {
	start := time.Now()
	defer func() { d.opts.recorder.Operation("destination_swap_exact_in", time.Since(start), err) }()

	settlement, err := d.settlementOn(chain)
	if err != nil {
		return DestinationSwap{}, err
	}
	if !input.IsPositive() {
		return DestinationSwap{}, fmt.Errorf("%w: input %s must be positive", ErrInvalidRequest, input)
	}

	in := settlement.ToAtomicFloor(input)
	if in.Sign() == 0 {
		return DestinationSwap{}, fmt.Errorf("%w: input %s is below one atomic unit of %s", ErrInvalidRequest, input, settlement.ID)
	}
	if outputToken == settlement.TokenAddress {
		return DestinationSwap{
			Token:        outputToken,
			InputAmount:  settlement.ToDecimal(in),
			OutputAmount: in,
		}, nil
	}

	batch, err := d.resolver.resolve(ctx, []aggregators.QuoteRequest{
		settlementExactIn(user, chain, settlement, outputToken, in),
	}, MaximizeOutput)
	if err != nil {
		return DestinationSwap{}, err
	}
	resolved := batch[0]
	if resolved.Quote == nil {
		return DestinationSwap{}, fmt.Errorf("%w: %s into %s on %s", ErrNoRoute, settlement.ID, outputToken, chain)
	}
	return DestinationSwap{
		Token:        outputToken,
		Aggregator:   resolved.Aggregator,
		Quote:        resolved.Quote,
		InputAmount:  settlement.ToDecimal(in),
		OutputAmount: resolved.Quote.OutputAmountMinimum,
	}, nil
}

// LiquidateInputHoldings values holdings in settlement currency. Holdings no
// aggregator can price are reported in Unpriced and left out of the total.
func (d *DestinationResolver) LiquidateInputHoldings(
	ctx context.Context,
	user chaindata.Address,
	holdings []Holding,
) (val *Valuation, err error) {
	start := time.Now()
	defer func() { d.opts.recorder.Operation("liquidate_input_holdings", time.Since(start), err) }()

	val = &Valuation{Total: decimal.Zero}
	currencies := make([]chaindata.Currency, len(holdings))
	quoteOf := make([]int, len(holdings))
	var reqs []aggregators.QuoteRequest
	for i, h := range holdings {
		if h.Amount == nil || h.Amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: holding %d has no valid amount", ErrInvalidRequest, i)
		}
		settlement, err := d.settlementOn(h.Chain)
		if err != nil {
			return nil, err
		}
		currencies[i] = settlement
		quoteOf[i] = -1
		if h.TokenAddress == settlement.TokenAddress || h.Amount.Sign() == 0 {
			continue
		}
		quoteOf[i] = len(reqs)
		reqs = append(reqs, settlementBound(user, h, settlement))
	}

	quotes, err := d.resolver.resolve(ctx, reqs, MaximizeOutput)
	if err != nil {
		return nil, err
	}
	for i, h := range holdings {
		settlement := currencies[i]
		if quoteOf[i] < 0 {
			v := settlement.ToDecimal(h.Amount)
			if h.TokenAddress != settlement.TokenAddress {
				v = decimal.Zero
			}
			val.Holdings = append(val.Holdings, HoldingValue{
				Holding:   h,
				Value:     v,
				Canonical: h.TokenAddress == settlement.TokenAddress,
			})
			val.Total = val.Total.Add(v)
			continue
		}
		resolved := quotes[quoteOf[i]]
		if resolved.Quote == nil {
			val.Unpriced = append(val.Unpriced, h)
			continue
		}
		v := settlement.ToDecimal(resolved.Quote.OutputAmountMinimum)
		val.Holdings = append(val.Holdings, HoldingValue{
			Holding:    h,
			Value:      v,
			Aggregator: resolved.Aggregator,
			Quote:      resolved.Quote,
		})
		val.Total = val.Total.Add(v)
	}

	loggerFor(ctx).Info().
		Int("priced", len(val.Holdings)).
		Int("unpriced", len(val.Unpriced)).
		Str("total", val.Total.String()).
		Msg("Holdings valued")
	return val, nil
}

func settlementExactIn(
	user chaindata.Address,
	chain chaindata.ChainID,
	settlement chaindata.Currency,
	outputToken chaindata.Address,
	amount *big.Int,
) aggregators.QuoteRequest {
	return aggregators.ExactInRequest{
		RequestCommon: aggregators.RequestCommon{
			UserAddress: user,
			Chain:       chain,
			InputToken:  settlement.TokenAddress,
			OutputToken: outputToken,
			Seriousness: aggregators.Serious,
		},
		InputAmount: amount,
	}
}

func settlementBound(user chaindata.Address, h Holding, settlement chaindata.Currency) aggregators.QuoteRequest {
	return aggregators.ExactInRequest{
		RequestCommon: aggregators.RequestCommon{
			UserAddress: user,
			Chain:       h.Chain,
			InputToken:  h.TokenAddress,
			OutputToken: settlement.TokenAddress,
			Seriousness: aggregators.Serious,
		},
		InputAmount: new(big.Int).Set(h.Amount),
	}
}
