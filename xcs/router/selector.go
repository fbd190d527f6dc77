package router

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

// SelectSourcesRequest asks for a plan that yields Target settlement currency
// out of Holdings. Holdings are in priority order.
type SelectSourcesRequest struct {
	UserAddress chaindata.Address
	Holdings    []Holding
	// Target is in whole units of the settlement currency.
	Target decimal.Decimal
	// Settlement overrides the selector's settlement currency when non zero.
	Settlement chaindata.CurrencyID
}

// SourceSelector decides which holdings to spend, and how much of each, to
// raise a target amount of settlement currency.
type SourceSelector struct {
	registry *chaindata.Registry
	fees     *chaindata.FeeTable
	resolver *QuoteResolver
	opts     options
}

func NewSourceSelector(
	registry *chaindata.Registry,
	fees *chaindata.FeeTable,
	resolver *QuoteResolver,
	opts ...Option,
) *SourceSelector {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SourceSelector{registry: registry, fees: fees, resolver: resolver, opts: o}
}

type candidate struct {
	holding    Holding
	priority   int
	settlement chaindata.Currency
	canonical  bool
	fee        decimal.Decimal
	survey     int
}

// SelectSources returns a plan whose total Output is at least req.Target, or
// an error. No partial plan is ever returned.
func (s *SourceSelector) SelectSources(ctx context.Context, req SelectSourcesRequest) (plan []ConsumptionRecord, err error) {
	start := time.Now()
	defer func() { s.opts.recorder.Operation("select_sources", time.Since(start), err) }()

	log := loggerFor(ctx)
	if !req.Target.IsPositive() {
		return nil, fmt.Errorf("%w: target %s must be positive", ErrInvalidRequest, req.Target)
	}
	settlementID := s.opts.settlement
	if req.Settlement != 0 {
		settlementID = req.Settlement
	}

	candidates := make([]candidate, 0, len(req.Holdings))
	for i, h := range req.Holdings {
		if h.Amount == nil || h.Amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: holding %d has no valid amount", ErrInvalidRequest, i)
		}
		settlement, err := s.registry.Currency(h.Chain, settlementID)
		if err != nil {
			return nil, configurationError(err)
		}
		candidates = append(candidates, candidate{
			holding:    h,
			priority:   i,
			settlement: settlement,
			canonical:  h.TokenAddress == settlement.TokenAddress,
			fee:        s.fees.CollectionFee(h.Chain, h.TokenAddress),
			survey:     -1,
		})
	}

	if plan, ok := canonicalPrefix(candidates, req.Target); ok {
		log.Info().
			Int("records", len(plan)).
			Str("target", req.Target.String()).
			Msg("Target covered by settlement currency holdings")
		return plan, nil
	}

	var surveys []aggregators.QuoteRequest
	for i := range candidates {
		c := &candidates[i]
		if c.canonical || c.holding.Amount.Sign() == 0 {
			continue
		}
		c.survey = len(surveys)
		surveys = append(surveys, s.exactIn(req.UserAddress, c, c.holding.Amount, aggregators.PriceSurvey))
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if c := a.fee.Cmp(b.fee); c != 0 {
			return c
		}
		return compareScoreDesc(a.holding.Value, b.holding.Value)
	})

	quotes, err := s.resolver.resolve(ctx, surveys, MaximizeOutput)
	if err != nil {
		return nil, err
	}

	remaining := req.Target
	for i := range candidates {
		if !remaining.IsPositive() {
			break
		}
		c := &candidates[i]

		if c.canonical {
			if c.holding.Amount.Sign() == 0 {
				continue
			}
			rec := consumeDirect(c, remaining)
			plan = append(plan, rec)
			remaining = remaining.Sub(rec.Output)
			continue
		}

		if c.survey < 0 {
			continue
		}
		survey := quotes[c.survey]
		if survey.Quote == nil {
			log.Debug().
				Stringer("chain", c.holding.Chain).
				Stringer("token", c.holding.TokenAddress).
				Msg("No survey quote, holding skipped")
			continue
		}
		surveyOut := c.settlement.ToDecimal(survey.Quote.OutputAmountMinimum)
		if !surveyOut.IsPositive() {
			continue
		}

		if surveyOut.LessThanOrEqual(remaining) {
			plan = append(plan, ConsumptionRecord{
				Holding:  c.holding,
				Priority: c.priority,
				Output:   surveyOut,
				Swap: &SwapConsumption{
					Amount:     new(big.Int).Set(c.holding.Amount),
					Aggregator: survey.Aggregator,
					Quote:      survey.Quote,
				},
			})
			remaining = remaining.Sub(surveyOut)
			continue
		}

		rec, err := s.resize(ctx, req.UserAddress, c, survey, surveyOut, remaining)
		if err != nil {
			log.Warn().
				Err(err).
				Stringer("chain", c.holding.Chain).
				Stringer("token", c.holding.TokenAddress).
				Str("remaining", remaining.String()).
				Msg("Failed to size partial liquidation")
			return nil, err
		}
		plan = append(plan, rec)
		remaining = remaining.Sub(rec.Output)
	}

	if remaining.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s short of %s", ErrInsufficientLiquidity, remaining, settlementID, req.Target)
	}

	log.Info().
		Int("records", len(plan)).
		Str("target", req.Target.String()).
		Str("surplus", remaining.Neg().String()).
		Msg("Source plan ready")
	return plan, nil
}

// resize looks for the smallest input, grown geometrically from the survey
// price, whose serious quote still covers remaining.
func (s *SourceSelector) resize(
	ctx context.Context,
	user chaindata.Address,
	c *candidate,
	survey ResolvedQuote,
	surveyOut decimal.Decimal,
	remaining decimal.Decimal,
) (ConsumptionRecord, error) {
	balance := atomicDecimal(c.holding.Amount)
	surveyIn := atomicDecimal(survey.Quote.InputAmount)
	if !surveyIn.IsPositive() {
		surveyIn = balance
	}
	initial := remaining.Mul(surveyIn).Div(surveyOut).Mul(s.opts.convergence.Multiplier)

	return Converge(ctx, s.opts.convergence, initial, decimal.NewNullDecimal(balance),
		func(ctx context.Context, amount decimal.Decimal, iteration int) (ConsumptionRecord, bool, error) {
			in := amount.Ceil().BigInt()
			if in.Cmp(c.holding.Amount) > 0 {
				in.Set(c.holding.Amount)
			}
			req := s.exactIn(user, c, in, aggregators.Serious)
			batch, err := s.resolver.resolve(ctx, []aggregators.QuoteRequest{req}, MaximizeOutput)
			if err != nil {
				return ConsumptionRecord{}, false, err
			}
			resolved := batch[0]
			full := in.Cmp(c.holding.Amount) == 0
			if resolved.Quote == nil {
				loggerFor(ctx).Debug().Int("iteration", iteration).Str("input", in.String()).Msg("No serious quote")
				if full {
					return ConsumptionRecord{}, false, fmt.Errorf("%w: no serious quote for full balance %s", ErrQuoteInstability, in)
				}
				return ConsumptionRecord{}, false, nil
			}
			out := c.settlement.ToDecimal(resolved.Quote.OutputAmountMinimum)
			loggerFor(ctx).Debug().
				Int("iteration", iteration).
				Str("input", in.String()).
				Str("output", out.String()).
				Str("remaining", remaining.String()).
				Msg("Resize attempt")
			if out.LessThan(remaining) {
				if full {
					return ConsumptionRecord{}, false, fmt.Errorf("%w: full balance %s yields %s", ErrQuoteInstability, in, out)
				}
				return ConsumptionRecord{}, false, nil
			}
			return ConsumptionRecord{
				Holding:  c.holding,
				Priority: c.priority,
				Output:   out,
				Swap: &SwapConsumption{
					Amount:     in,
					Aggregator: resolved.Aggregator,
					Quote:      resolved.Quote,
				},
			}, true, nil
		})
}

// exactIn builds a request for c. Every request for the same holding carries
// the same chain and token pair.
func (s *SourceSelector) exactIn(user chaindata.Address, c *candidate, amount *big.Int, seriousness aggregators.Seriousness) aggregators.QuoteRequest {
	return aggregators.ExactInRequest{
		RequestCommon: aggregators.RequestCommon{
			UserAddress: user,
			Chain:       c.holding.Chain,
			InputToken:  c.holding.TokenAddress,
			OutputToken: c.settlement.TokenAddress,
			Seriousness: seriousness,
		},
		InputAmount: new(big.Int).Set(amount),
	}
}

// canonicalPrefix covers the target with leading settlement currency holdings
// only. It reports false as soon as a convertible holding comes first.
func canonicalPrefix(candidates []candidate, target decimal.Decimal) ([]ConsumptionRecord, bool) {
	var plan []ConsumptionRecord
	remaining := target
	for i := range candidates {
		c := &candidates[i]
		if !c.canonical {
			return nil, false
		}
		if c.holding.Amount.Sign() == 0 {
			continue
		}
		rec := consumeDirect(c, remaining)
		plan = append(plan, rec)
		remaining = remaining.Sub(rec.Output)
		if !remaining.IsPositive() {
			return plan, true
		}
	}
	return nil, false
}

func consumeDirect(c *candidate, remaining decimal.Decimal) ConsumptionRecord {
	amount := c.settlement.ToAtomic(remaining)
	if amount.Cmp(c.holding.Amount) > 0 {
		amount = new(big.Int).Set(c.holding.Amount)
	}
	return ConsumptionRecord{
		Holding:  c.holding,
		Priority: c.priority,
		Output:   c.settlement.ToDecimal(amount),
		Direct:   &DirectConsumption{Amount: amount},
	}
}

// compareScoreDesc orders higher scores first and unscored holdings last.
func compareScoreDesc(a, b decimal.NullDecimal) int {
	switch {
	case a.Valid && b.Valid:
		return b.Decimal.Cmp(a.Decimal)
	case a.Valid:
		return -1
	case b.Valid:
		return 1
	}
	return 0
}
