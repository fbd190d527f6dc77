// Package lifi quotes same-chain EVM swaps through the LI.FI API.
package lifi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

const (
	DefaultBaseURL = "https://li.quest/v1"
	Name           = "lifi"

	noQuotesCode = 1002
)

// Response is the subset of the LI.FI quote needed to execute the swap.
type Response struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Tool     string `json:"tool"`
	Estimate struct {
		Tool            string `json:"tool"`
		ApprovalAddress string `json:"approvalAddress"`
		ToAmountMin     string `json:"toAmountMin"`
		ToAmount        string `json:"toAmount"`
		FromAmount      string `json:"fromAmount"`
		FromAmountUSD   string `json:"fromAmountUSD"`
		ToAmountUSD     string `json:"toAmountUSD"`
	} `json:"estimate"`
	TransactionRequest struct {
		Value    string `json:"value"`
		To       string `json:"to"`
		Data     string `json:"data"`
		ChainID  int64  `json:"chainId"`
		GasPrice string `json:"gasPrice"`
		GasLimit string `json:"gasLimit"`
		From     string `json:"from"`
	} `json:"transactionRequest"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Concurrency caps parallel requests per batch.
	Concurrency int
}

type Aggregator struct {
	baseURL     string
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
		header.Set("x-lifi-api-key", cfg.APIKey)
	}
	return &Aggregator{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
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

	chainID := c.Chain.BigInt().String()
	params := url.Values{}
	params.Set("fromChain", chainID)
	params.Set("toChain", chainID)
	params.Set("fromToken", aggregators.EVMAddress(c.InputToken))
	params.Set("toToken", aggregators.EVMAddress(c.OutputToken))
	params.Set("fromAddress", aggregators.EVMAddress(c.UserAddress))
	params.Set("toAddress", aggregators.EVMAddress(c.Receiver()))
	params.Set("denyExchanges", "openocean")
	params.Set("slippage", "0.01")

	var path string
	switch r := req.(type) {
	case aggregators.ExactInRequest:
		path = "/quote"
		params.Set("fromAmount", r.InputAmount.String())
	case aggregators.ExactOutRequest:
		path = "/quote/toAmount"
		params.Set("toAmount", r.OutputAmount.String())
	default:
		return nil, nil
	}

	var resp Response
	err := aggregators.GetJSON(ctx, a.client, a.baseURL+path+"?"+params.Encode(), a.header, &resp)
	if err != nil {
		if noQuotes(err) {
			return nil, nil
		}
		return nil, err
	}

	in, err := aggregators.ParseAmount(resp.Estimate.FromAmount)
	if err != nil {
		return nil, err
	}
	minOut, err := aggregators.ParseAmount(resp.Estimate.ToAmountMin)
	if err != nil {
		return nil, err
	}
	likely, err := aggregators.ParseAmount(resp.Estimate.ToAmount)
	if err != nil {
		return nil, err
	}
	return &aggregators.Quote{
		Type:                req.Type(),
		InputAmount:         in,
		OutputAmountMinimum: minOut,
		OutputAmountLikely:  likely,
		Raw:                 &resp,
	}, nil
}

// noQuotes matches the 404 LI.FI sends when no tool can route the pair.
func noQuotes(err error) bool {
	var httpErr *aggregators.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		return false
	}
	var body errorBody
	if json.Unmarshal(httpErr.Body, &body) != nil {
		return false
	}
	return body.Code == noQuotesCode
}
