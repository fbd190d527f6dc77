// Package balances reads a user's per-chain holdings from the balance API.
package balances

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "balances").Logger()
}

const DefaultTimeout = 10 * time.Second

// CurrencyBalance is one token balance. Amount is in whole units.
type CurrencyBalance struct {
	TokenAddress chaindata.Address
	Amount       decimal.Decimal
	Value        decimal.Decimal
}

// ChainBalance groups the balances held on one chain.
type ChainBalance struct {
	Chain      chaindata.ChainID
	TotalValue decimal.Decimal
	Currencies []CurrencyBalance
}

type balancesResponse struct {
	Balances []chainBalanceWire `msgpack:"balances"`
}

type chainBalanceWire struct {
	Universe   uint32                `msgpack:"universe"`
	ChainID    []byte                `msgpack:"chain_id"`
	TotalUSD   string                `msgpack:"total_usd"`
	Currencies []currencyBalanceWire `msgpack:"currencies"`
}

type currencyBalanceWire struct {
	TokenAddress []byte `msgpack:"token_address"`
	Balance      string `msgpack:"balance"`
	Value        string `msgpack:"value"`
}

// StatusError is a non 2xx answer from the balance API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("balance API returned HTTP %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the API at baseURL. A nil httpClient gets a
// client with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// GetBalances fetches every balance of the address in the given universe.
func (c *Client) GetBalances(ctx context.Context, universe chaindata.Universe, address []byte) ([]ChainBalance, error) {
	url := fmt.Sprintf("%s/api/v1/get-balance/%s/0x%s", c.baseURL, universe, hex.EncodeToString(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/msgpack")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var decoded balancesResponse
	if err := msgpack.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode balances: %w", err)
	}

	out := make([]ChainBalance, 0, len(decoded.Balances))
	for _, b := range decoded.Balances {
		chain, err := chaindata.ChainIDFromBytes(chaindata.Universe(b.Universe), b.ChainID)
		if err != nil {
			return nil, err
		}
		total, err := parseDecimal(b.TotalUSD)
		if err != nil {
			return nil, fmt.Errorf("chain %s total_usd: %w", chain, err)
		}
		cb := ChainBalance{Chain: chain, TotalValue: total}
		for _, cur := range b.Currencies {
			token, err := chaindata.AddressFromBytes(cur.TokenAddress)
			if err != nil {
				return nil, fmt.Errorf("chain %s: %w", chain, err)
			}
			amount, err := parseDecimal(cur.Balance)
			if err != nil {
				return nil, fmt.Errorf("chain %s balance: %w", chain, err)
			}
			value, err := parseDecimal(cur.Value)
			if err != nil {
				return nil, fmt.Errorf("chain %s value: %w", chain, err)
			}
			cb.Currencies = append(cb.Currencies, CurrencyBalance{TokenAddress: token, Amount: amount, Value: value})
		}
		out = append(out, cb)
	}
	return out, nil
}

// Holdings converts the address's balances into router holdings, ordered by
// descending value. Tokens the registry does not know are skipped since their
// decimals are unknown. The USD value becomes the holding's valuation score.
func (c *Client) Holdings(
	ctx context.Context,
	registry *chaindata.Registry,
	universe chaindata.Universe,
	address []byte,
) ([]router.Holding, error) {
	balances, err := c.GetBalances(ctx, universe, address)
	if err != nil {
		return nil, err
	}
	return ToHoldings(registry, balances), nil
}

// ToHoldings is the conversion step of Holdings.
func ToHoldings(registry *chaindata.Registry, balances []ChainBalance) []router.Holding {
	var holdings []router.Holding
	for _, b := range balances {
		chain, err := registry.Chain(b.Chain)
		if err != nil {
			log.Debug().Stringer("chain", b.Chain).Msg("Skipping balances on unknown chain")
			continue
		}
		for _, cur := range b.Currencies {
			currency, err := chain.CurrencyByAddress(cur.TokenAddress)
			if err != nil {
				log.Debug().
					Stringer("chain", b.Chain).
					Str("token", cur.TokenAddress.Hex()).
					Msg("Skipping unknown token")
				continue
			}
			amount := currency.ToAtomicFloor(cur.Amount)
			if amount.Sign() <= 0 {
				continue
			}
			holdings = append(holdings, router.Holding{
				Chain:        b.Chain,
				TokenAddress: cur.TokenAddress,
				Amount:       amount,
				Value:        decimal.NewNullDecimal(cur.Value),
			})
		}
	}
	slices.SortStableFunc(holdings, func(a, b router.Holding) int {
		return b.Value.Decimal.Cmp(a.Value.Decimal)
	})
	return holdings
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
