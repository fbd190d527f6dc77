// Package zeroex quotes EVM swaps through the 0x Swap API v2 allowance-holder
// endpoints. Only exact input swaps are supported by the venue.
package zeroex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

const (
	DefaultBaseURL     = "https://api.0x.org"
	Name               = "0x"
	DefaultSlippageBps = 100
)

// Response is the subset of the price and quote payloads that is kept.
type Response struct {
	AllowanceTarget    string `json:"allowanceTarget"`
	BlockNumber        string `json:"blockNumber"`
	BuyAmount          string `json:"buyAmount"`
	BuyToken           string `json:"buyToken"`
	MinBuyAmount       string `json:"minBuyAmount"`
	SellAmount         string `json:"sellAmount"`
	SellToken          string `json:"sellToken"`
	LiquidityAvailable bool   `json:"liquidityAvailable"`
	TotalNetworkFee    string `json:"totalNetworkFee"`
	Transaction        *struct {
		To       string `json:"to"`
		Data     string `json:"data"`
		Gas      string `json:"gas"`
		GasPrice string `json:"gasPrice"`
		Value    string `json:"value"`
	} `json:"transaction,omitempty"`
	ZID string `json:"zid"`
}

type Config struct {
	BaseURL     string
	APIKey      string
	SlippageBps uint32
	Timeout     time.Duration
	Concurrency int
}

type Aggregator struct {
	baseURL     string
	header      http.Header
	slippageBps uint32
	client      *http.Client
	concurrency int
}

func New(cfg Config) *Aggregator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SlippageBps == 0 {
		cfg.SlippageBps = DefaultSlippageBps
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	header := http.Header{}
	header.Set("0x-version", "v2")
	if cfg.APIKey != "" {
		header.Set("0x-api-key", cfg.APIKey)
	}
	return &Aggregator{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		header:      header,
		slippageBps: cfg.SlippageBps,
		client:      &http.Client{Timeout: cfg.Timeout},
		concurrency: cfg.Concurrency,
	}
}

func (a *Aggregator) Name() string { return Name }

func (a *Aggregator) GetQuotes(ctx context.Context, requests []aggregators.QuoteRequest) ([]*aggregators.Quote, error) {
	return aggregators.QuoteEach(ctx, Name, requests, a.concurrency, a.quote), nil
}

func (a *Aggregator) quote(ctx context.Context, req aggregators.QuoteRequest) (*aggregators.Quote, error) {
	r, ok := req.(aggregators.ExactInRequest)
	if !ok || r.Chain.Universe != chaindata.UniverseEthereum {
		return nil, nil
	}

	// Surveys use the cheaper indicative price endpoint.
	path := "/swap/allowance-holder/price"
	if r.Seriousness == aggregators.Serious {
		path = "/swap/allowance-holder/quote"
	}
	params := url.Values{}
	params.Set("chainId", r.Chain.BigInt().String())
	params.Set("sellToken", aggregators.EVMAddress(r.InputToken))
	params.Set("buyToken", aggregators.EVMAddress(r.OutputToken))
	params.Set("taker", aggregators.EVMAddress(r.UserAddress))
	params.Set("sellAmount", r.InputAmount.String())
	params.Set("slippageBps", strconv.FormatUint(uint64(a.slippageBps), 10))

	var resp Response
	if err := aggregators.GetJSON(ctx, a.client, a.baseURL+path+"?"+params.Encode(), a.header, &resp); err != nil {
		// Any HTTP level refusal from 0x means no route for this pair.
		log.Debug().Err(err).Stringer("chain", r.Chain).Msg("0x returned no quote")
		return nil, nil
	}
	if !resp.LiquidityAvailable {
		return nil, nil
	}

	in, err := aggregators.ParseAmount(resp.SellAmount)
	if err != nil {
		return nil, err
	}
	minOut, err := aggregators.ParseAmount(resp.MinBuyAmount)
	if err != nil {
		return nil, err
	}
	likely, err := aggregators.ParseAmount(resp.BuyAmount)
	if err != nil {
		return nil, err
	}
	return &aggregators.Quote{
		Type:                aggregators.QuoteTypeExactIn,
		InputAmount:         in,
		OutputAmountMinimum: minOut,
		OutputAmountLikely:  likely,
		Raw:                 &resp,
	}, nil
}
