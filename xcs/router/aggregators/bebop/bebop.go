// Package bebop quotes EVM swaps through the Bebop router, which races its
// PMM and JAM liquidity and returns the best route first.
package bebop

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

const (
	DefaultBaseURL = "https://api.bebop.xyz/router"
	Name           = "bebop"
)

// chainNames maps EVM chain ids to Bebop path segments.
var chainNames = map[uint64]string{
	1:      "ethereum",
	42161:  "arbitrum",
	10:     "optimism",
	8453:   "base",
	167000: "taiko",
	56:     "bsc",
	80094:  "berachain",
	137:    "polygon",
	324:    "zksync",
	81457:  "blast",
	34443:  "mode",
	534352: "scroll",
	5330:   "superseed",
}

type TokenAmount struct {
	Amount        string `json:"amount"`
	MinimumAmount string `json:"minimumAmount"`
	Decimals      int    `json:"decimals"`
	Symbol        string `json:"symbol"`
}

type RouteQuote struct {
	QuoteID        string                 `json:"quoteId"`
	ChainID        int64                  `json:"chainId"`
	ApprovalTarget string                 `json:"approvalTarget"`
	Expiry         int64                  `json:"expiry"`
	BuyTokens      map[string]TokenAmount `json:"buyTokens"`
	SellTokens     map[string]TokenAmount `json:"sellTokens"`
	Tx             struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Value string `json:"value"`
		Data  string `json:"data"`
		Gas   int64  `json:"gas"`
	} `json:"tx"`
}

// Route is one Bebop offer; Type is PMMv3 or JAMv2.
type Route struct {
	Type  string     `json:"type"`
	Quote RouteQuote `json:"quote"`
}

type response struct {
	Routes []Route `json:"routes"`
}

type Config struct {
	BaseURL string
	APIKey  string
	// Source identifies the integrator to Bebop.
	Source      string
	Timeout     time.Duration
	Concurrency int
}

type Aggregator struct {
	baseURL     string
	source      string
	header      http.Header
	client      *http.Client
	concurrency int
}

func New(cfg Config) *Aggregator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Source-Auth", cfg.APIKey)
	}
	return &Aggregator{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		source:      cfg.Source,
		header:      header,
		client:      &http.Client{Timeout: cfg.Timeout},
		concurrency: cfg.Concurrency,
	}
}

func (a *Aggregator) Name() string { return Name }

func (a *Aggregator) GetQuotes(ctx context.Context, requests []aggregators.QuoteRequest) ([]*aggregators.Quote, error) {
	return aggregators.QuoteEach(ctx, Name, requests, a.concurrency, a.quote), nil
}

func (a *Aggregator) quote(ctx context.Context, req aggregators.QuoteRequest) (*aggregators.Quote, error) {
	c := req.Common()
	if c.Chain.Universe != chaindata.UniverseEthereum {
		return nil, nil
	}
	chainName, ok := chainNames[c.Chain.Uint64()]
	if !ok {
		return nil, nil
	}

	sell := aggregators.EVMAddress(c.InputToken)
	buy := aggregators.EVMAddress(c.OutputToken)
	params := url.Values{}
	params.Set("sell_tokens", sell)
	params.Set("buy_tokens", buy)
	params.Set("taker_address", aggregators.EVMAddress(c.UserAddress))
	params.Set("receiver_address", aggregators.EVMAddress(c.Receiver()))
	params.Set("approval_type", "Standard")
	params.Set("skip_validation", "true")
	params.Set("gasless", "false")
	if a.source != "" {
		params.Set("source", a.source)
	}
	switch r := req.(type) {
	case aggregators.ExactInRequest:
		params.Set("sell_amounts", r.InputAmount.String())
	case aggregators.ExactOutRequest:
		params.Set("buy_amounts", r.OutputAmount.String())
	default:
		return nil, nil
	}

	var resp response
	rawURL := a.baseURL + "/" + chainName + "/v1/quote?" + params.Encode()
	if err := aggregators.GetJSON(ctx, a.client, rawURL, a.header, &resp); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, nil
	}

	best := resp.Routes[0]
	bought, ok := lookup(best.Quote.BuyTokens, buy)
	if !ok {
		return nil, nil
	}
	sold, ok := lookup(best.Quote.SellTokens, sell)
	if !ok {
		return nil, nil
	}

	in, err := aggregators.ParseAmount(sold.Amount)
	if err != nil {
		return nil, err
	}
	likely, err := aggregators.ParseAmount(bought.Amount)
	if err != nil {
		return nil, err
	}
	minOut := likely
	if bought.MinimumAmount != "" {
		if minOut, err = aggregators.ParseAmount(bought.MinimumAmount); err != nil {
			return nil, err
		}
	}
	return &aggregators.Quote{
		Type:                req.Type(),
		InputAmount:         in,
		OutputAmountMinimum: minOut,
		OutputAmountLikely:  likely,
		Raw:                 &best,
	}, nil
}

// lookup matches token keys regardless of checksum casing.
func lookup(tokens map[string]TokenAmount, addr string) (TokenAmount, bool) {
	if t, ok := tokens[addr]; ok {
		return t, true
	}
	for k, t := range tokens {
		if strings.EqualFold(k, addr) {
			return t, true
		}
	}
	return TokenAmount{}, false
}
