package osmosis

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
	sqsquery "github.com/Cogwheel-Validator/spectra-xcs/xcs/sqs_query"
)

const (
	usdcDenom = "ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4"
	usdtDenom = "ibc/4ABBEF4C8926DDDB320AE5188CFD63267ABBCEFC0583E4AE05D6E5AA2401DDAB"
)

type fakeSQS struct {
	exactIn  func(sqsquery.Coin, string) (sqsquery.QuoteResponse, error)
	exactOut func(sqsquery.Coin, string) (sqsquery.QuoteResponse, error)
}

func (f fakeSQS) QuoteExactIn(_ context.Context, in sqsquery.Coin, outDenom string, _ bool) (sqsquery.QuoteResponse, error) {
	return f.exactIn(in, outDenom)
}

func (f fakeSQS) QuoteExactOut(_ context.Context, out sqsquery.Coin, inDenom string, _ bool) (sqsquery.QuoteResponse, error) {
	return f.exactOut(out, inDenom)
}

func setup(t *testing.T) (chaindata.ChainID, *chaindata.Registry) {
	osmo, err := chaindata.CosmosChainID("osmosis-1")
	assert.NoError(t, err)
	registry := chaindata.NewRegistry([]chaindata.Chain{{
		ID:   osmo,
		Name: "Osmosis",
		Currencies: []chaindata.Currency{
			{ID: chaindata.CurrencyUSDC, TokenAddress: chaindata.DenomAddress(usdcDenom), Decimals: 6, Denom: usdcDenom},
			{ID: chaindata.CurrencyUSDT, TokenAddress: chaindata.DenomAddress(usdtDenom), Decimals: 6, Denom: usdtDenom},
		},
	}})
	return osmo, registry
}

func TestExactInAppliesSlippage(t *testing.T) {
	osmo, registry := setup(t)
	client := fakeSQS{exactIn: func(in sqsquery.Coin, outDenom string) (sqsquery.QuoteResponse, error) {
		assert.Equal(t, in.Denom, usdtDenom)
		assert.Equal(t, in.Amount, "1000000")
		assert.Equal(t, outDenom, usdcDenom)
		resp := sqsquery.QuoteResponse{AmountOut: "250000", PriceImpact: "-0.0004"}
		resp.Route = []sqsquery.Route{{Pools: []sqsquery.Pool{{ID: 1464, TokenOutDenom: usdcDenom}}}}
		return resp, nil
	}}
	agg := New(client, registry, Config{Chain: osmo})

	quotes, err := agg.GetQuotes(context.Background(), []aggregators.QuoteRequest{
		aggregators.ExactInRequest{
			RequestCommon: aggregators.RequestCommon{
				Chain:       osmo,
				InputToken:  chaindata.DenomAddress(usdtDenom),
				OutputToken: chaindata.DenomAddress(usdcDenom),
			},
			InputAmount: big.NewInt(1_000_000),
		},
	})
	assert.NoError(t, err)
	q := quotes[0]
	assert.NotNil(t, q)
	assert.Equal(t, q.OutputAmountLikely.String(), "250000")
	assert.Equal(t, q.OutputAmountMinimum.String(), "247500")

	route := q.Raw.(*RouteData)
	assert.Equal(t, len(route.Operations), 1)
	assert.Equal(t, route.Operations[0].Pool, "1464")
	assert.Equal(t, route.Operations[0].DenomIn, usdtDenom)
}

func TestExactOutReadsInputDenom(t *testing.T) {
	osmo, registry := setup(t)
	client := fakeSQS{exactOut: func(out sqsquery.Coin, inDenom string) (sqsquery.QuoteResponse, error) {
		assert.Equal(t, out.Amount, "5000000")
		resp := sqsquery.QuoteResponse{AmountOut: "9999"}
		resp.AmountIn.Denom = inDenom
		resp.AmountIn.Amount = "21000000"
		return resp, nil
	}}
	agg := New(client, registry, Config{Chain: osmo})

	quotes, err := agg.GetQuotes(context.Background(), []aggregators.QuoteRequest{
		aggregators.ExactOutRequest{
			RequestCommon: aggregators.RequestCommon{
				Chain:       osmo,
				InputToken:  chaindata.DenomAddress(usdtDenom),
				OutputToken: chaindata.DenomAddress(usdcDenom),
			},
			OutputAmount: big.NewInt(5_000_000),
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, quotes[0].InputAmount.String(), "21000000")
	assert.Equal(t, quotes[0].OutputAmountMinimum.String(), "5000000")
}

func TestForeignRequestsAreIgnored(t *testing.T) {
	osmo, registry := setup(t)
	client := fakeSQS{exactIn: func(sqsquery.Coin, string) (sqsquery.QuoteResponse, error) {
		return sqsquery.QuoteResponse{}, errors.New("sqs down")
	}}
	agg := New(client, registry, Config{Chain: osmo})

	quotes, err := agg.GetQuotes(context.Background(), []aggregators.QuoteRequest{
		aggregators.ExactInRequest{
			RequestCommon: aggregators.RequestCommon{Chain: chaindata.NewChainID(chaindata.UniverseEthereum, 1)},
			InputAmount:   big.NewInt(1),
		},
		aggregators.ExactInRequest{
			RequestCommon: aggregators.RequestCommon{Chain: osmo, InputToken: chaindata.DenomAddress("uatom")},
			InputAmount:   big.NewInt(1),
		},
		aggregators.ExactInRequest{
			RequestCommon: aggregators.RequestCommon{
				Chain:       osmo,
				InputToken:  chaindata.DenomAddress(usdtDenom),
				OutputToken: chaindata.DenomAddress(usdcDenom),
			},
			InputAmount: big.NewInt(1),
		},
	})
	assert.NoError(t, err)
	for _, q := range quotes {
		assert.True(t, q == nil)
	}
}
