// Package osmosis quotes swaps on Osmosis through the Sidecar Query Server.
package osmosis

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
	sqsquery "github.com/Cogwheel-Validator/spectra-xcs/xcs/sqs_query"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "osmosis-aggregator").Logger()
}

const (
	Name               = "osmosis-sqs"
	DefaultSlippageBps = 100
)

// QuoteClient is the part of the SQS client the aggregator needs.
type QuoteClient interface {
	QuoteExactIn(ctx context.Context, tokenIn sqsquery.Coin, tokenOutDenom string, singleRoute bool) (sqsquery.QuoteResponse, error)
	QuoteExactOut(ctx context.Context, tokenOut sqsquery.Coin, tokenInDenom string, singleRoute bool) (sqsquery.QuoteResponse, error)
}

// SwapOperation is one pool hop.
type SwapOperation struct {
	Pool     string `json:"pool"`
	DenomIn  string `json:"denom_in"`
	DenomOut string `json:"denom_out"`
}

// RouteData is kept as the quote payload for building the swap message.
type RouteData struct {
	Operations   []SwapOperation `json:"operations"`
	PriceImpact  string          `json:"price_impact"`
	EffectiveFee string          `json:"effective_fee"`
	Splits       int             `json:"splits"`
}

type Config struct {
	// Chain is the Osmosis chain id in the registry.
	Chain       chaindata.ChainID
	SlippageBps uint32
	SingleRoute bool
}

type Aggregator struct {
	client   QuoteClient
	registry *chaindata.Registry
	cfg      Config
}

func New(client QuoteClient, registry *chaindata.Registry, cfg Config) *Aggregator {
	if cfg.SlippageBps == 0 {
		cfg.SlippageBps = DefaultSlippageBps
	}
	return &Aggregator{client: client, registry: registry, cfg: cfg}
}

func (a *Aggregator) Name() string { return Name }

func (a *Aggregator) GetQuotes(ctx context.Context, requests []aggregators.QuoteRequest) ([]*aggregators.Quote, error) {
	return aggregators.QuoteEach(ctx, Name, requests, aggregators.DefaultRequestConcurrency, a.quote), nil
}

func (a *Aggregator) quote(ctx context.Context, req aggregators.QuoteRequest) (*aggregators.Quote, error) {
	c := req.Common()
	if c.Chain != a.cfg.Chain {
		return nil, nil
	}
	chain, err := a.registry.Chain(c.Chain)
	if err != nil {
		return nil, err
	}
	inCur, err := chain.CurrencyByAddress(c.InputToken)
	if err != nil {
		return nil, nil
	}
	outCur, err := chain.CurrencyByAddress(c.OutputToken)
	if err != nil {
		return nil, nil
	}
	if inCur.Denom == "" || outCur.Denom == "" {
		return nil, nil
	}

	switch r := req.(type) {
	case aggregators.ExactInRequest:
		resp, err := a.client.QuoteExactIn(ctx,
			sqsquery.Coin{Denom: inCur.Denom, Amount: r.InputAmount.String()}, outCur.Denom, a.cfg.SingleRoute)
		if err != nil {
			return nil, err
		}
		out, err := aggregators.ParseAmount(resp.AmountOut)
		if err != nil {
			return nil, err
		}
		minOut, err := aggregators.CalculateMinOutput(out, a.cfg.SlippageBps)
		if err != nil {
			return nil, err
		}
		log.Debug().
			Str("tokenIn", inCur.Denom).
			Str("amountIn", r.InputAmount.String()).
			Str("amountOut", resp.AmountOut).
			Str("priceImpact", resp.PriceImpact).
			Msg("SQS exact in quote")
		return &aggregators.Quote{
			Type:                aggregators.QuoteTypeExactIn,
			InputAmount:         new(big.Int).Set(r.InputAmount),
			OutputAmountMinimum: minOut,
			OutputAmountLikely:  out,
			Raw:                 routeData(resp, inCur.Denom),
		}, nil

	case aggregators.ExactOutRequest:
		resp, err := a.client.QuoteExactOut(ctx,
			sqsquery.Coin{Denom: outCur.Denom, Amount: r.OutputAmount.String()}, inCur.Denom, a.cfg.SingleRoute)
		if err != nil {
			return nil, err
		}
		in, err := exactOutInput(resp, inCur.Denom)
		if err != nil {
			return nil, err
		}
		return &aggregators.Quote{
			Type:                aggregators.QuoteTypeExactOut,
			InputAmount:         in,
			OutputAmountMinimum: new(big.Int).Set(r.OutputAmount),
			OutputAmountLikely:  new(big.Int).Set(r.OutputAmount),
			Raw:                 routeData(resp, inCur.Denom),
		}, nil
	}
	return nil, nil
}

// exactOutInput finds the input amount, which SQS reports in whichever field
// carries the input denom.
func exactOutInput(resp sqsquery.QuoteResponse, inDenom string) (*big.Int, error) {
	if resp.AmountIn.Denom == inDenom && resp.AmountIn.Amount != "" {
		return aggregators.ParseAmount(resp.AmountIn.Amount)
	}
	if resp.AmountOut == "" {
		return nil, fmt.Errorf("exact out quote has no input amount")
	}
	return aggregators.ParseAmount(resp.AmountOut)
}

// routeData flattens the best route into pool hops starting at denomIn.
func routeData(resp sqsquery.QuoteResponse, denomIn string) *RouteData {
	data := &RouteData{
		PriceImpact:  resp.PriceImpact,
		EffectiveFee: resp.EffectiveFee,
		Splits:       len(resp.Route),
	}
	if len(resp.Route) == 0 {
		return data
	}
	current := denomIn
	for _, pool := range resp.Route[0].Pools {
		data.Operations = append(data.Operations, SwapOperation{
			Pool:     strconv.Itoa(pool.ID),
			DenomIn:  current,
			DenomOut: pool.TokenOutDenom,
		})
		current = pool.TokenOutDenom
	}
	return data
}
