package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/models"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

// errBadRequest marks request decoding problems; they map to 400.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// parseUserAddress accepts a hex address or a bech32 Cosmos address.
func parseUserAddress(address string) (chaindata.Address, error) {
	raw, err := addressBytes(address)
	if err != nil {
		return chaindata.Address{}, err
	}
	addr, err := chaindata.AddressFromBytes(raw)
	if err != nil {
		return chaindata.Address{}, badRequest("user_address: %v", err)
	}
	return addr, nil
}

// addressBytes returns the address as sent, without padding.
func addressBytes(address string) ([]byte, error) {
	if address == "" {
		return nil, badRequest("user_address is required")
	}
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		raw, err := hex.DecodeString(address[2:])
		if err != nil {
			return nil, badRequest("user_address: %v", err)
		}
		return raw, nil
	}
	raw, err := decodeBech32(address)
	if err != nil {
		return nil, badRequest("user_address: %v", err)
	}
	return raw, nil
}

// decodeBech32 validates the checksum and returns the 8 bit address payload.
func decodeBech32(address string) ([]byte, error) {
	if len(address) < 10 {
		return nil, fmt.Errorf("address too short (minimum 10 characters)")
	}
	sepIdx := strings.LastIndex(address, "1")
	if sepIdx < 1 {
		return nil, fmt.Errorf("missing bech32 separator '1'")
	}
	prefix, data, err := bech32.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("invalid bech32 address (checksum failed): %w", err)
	}
	if prefix != address[:sepIdx] {
		return nil, fmt.Errorf("bech32 prefix mismatch")
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("invalid bech32 payload: %w", err)
	}
	if len(converted) == 0 {
		return nil, fmt.Errorf("empty address data")
	}
	return converted, nil
}

func parseChainID(s string) (chaindata.ChainID, error) {
	id, err := chaindata.ParseChainID(s)
	if err != nil {
		return chaindata.ChainID{}, badRequest("chain_id: %v", err)
	}
	return id, nil
}

// parseToken reads a hex token address, or derives it from a Cosmos denom.
func parseToken(field, hexAddr, denom string) (chaindata.Address, error) {
	if denom != "" {
		return chaindata.DenomAddress(denom), nil
	}
	if hexAddr == "" {
		return chaindata.Address{}, badRequest("%s is required", field)
	}
	addr, err := chaindata.ParseAddress(hexAddr)
	if err != nil {
		return chaindata.Address{}, badRequest("%s: %v", field, err)
	}
	return addr, nil
}

func parseAtomic(field, s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || n.Sign() < 0 {
		return nil, badRequest("%s must be a non negative integer, got %q", field, s)
	}
	return n, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, badRequest("%s: %v", field, err)
	}
	return d, nil
}

func toHoldings(in []models.Holding) ([]router.Holding, error) {
	out := make([]router.Holding, len(in))
	for i, h := range in {
		chain, err := parseChainID(h.ChainID)
		if err != nil {
			return nil, fmt.Errorf("holding %d: %w", i, err)
		}
		token, err := parseToken("token_address", h.TokenAddress, h.Denom)
		if err != nil {
			return nil, fmt.Errorf("holding %d: %w", i, err)
		}
		amount, err := parseAtomic("amount", h.Amount)
		if err != nil {
			return nil, fmt.Errorf("holding %d: %w", i, err)
		}
		out[i] = router.Holding{Chain: chain, TokenAddress: token, Amount: amount}
		if h.Value != nil {
			value, err := parseDecimal("value", *h.Value)
			if err != nil {
				return nil, fmt.Errorf("holding %d: %w", i, err)
			}
			out[i].Value = decimal.NewNullDecimal(value)
		}
	}
	return out, nil
}

func fromHolding(h router.Holding) models.Holding {
	out := models.Holding{
		ChainID:      h.Chain.String(),
		TokenAddress: h.TokenAddress.Hex(),
		Amount:       h.Amount.String(),
	}
	if h.Value.Valid {
		v := h.Value.Decimal.String()
		out.Value = &v
	}
	return out
}

func fromQuote(q *aggregators.Quote) *models.Quote {
	if q == nil {
		return nil
	}
	return &models.Quote{
		Type:                q.Type.String(),
		InputAmount:         amountString(q.InputAmount),
		OutputAmountMinimum: amountString(q.OutputAmountMinimum),
		OutputAmountLikely:  amountString(q.OutputAmountLikely),
		Raw:                 q.Raw,
	}
}

func fromRecord(r router.ConsumptionRecord) models.ConsumptionRecord {
	out := models.ConsumptionRecord{
		Priority:     r.Priority,
		ChainID:      r.Holding.Chain.String(),
		TokenAddress: r.Holding.TokenAddress.Hex(),
		Kind:         "direct",
		Amount:       amountString(r.ConsumedAmount()),
		Output:       r.Output.String(),
	}
	if r.Swap != nil {
		out.Kind = "swap"
		out.Aggregator = r.Swap.Aggregator
		out.Quote = fromQuote(r.Swap.Quote)
	}
	return out
}

func fromDestinationSwap(s router.DestinationSwap) models.DestinationSwap {
	return models.DestinationSwap{
		TokenAddress: s.Token.Hex(),
		Aggregator:   s.Aggregator,
		Quote:        fromQuote(s.Quote),
		InputAmount:  s.InputAmount.String(),
		OutputAmount: amountString(s.OutputAmount),
	}
}

func amountString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
