package aggregators

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// CalculateMinOutput applies a slippage tolerance to an expected output.
// slippageBps is basis points (e.g., 100 = 1%)
// minOutput = expected * (10000 - slippageBps) / 10000, rounded down
func CalculateMinOutput(expectedOutput *big.Int, slippageBps uint32) (*big.Int, error) {
	if expectedOutput == nil {
		return nil, fmt.Errorf("expected output is nil")
	}
	if slippageBps > 10000 {
		return nil, fmt.Errorf("slippage of %d bps is above 100%%", slippageBps)
	}
	minOutput := new(big.Int).Mul(expectedOutput, big.NewInt(int64(10000-slippageBps)))
	return minOutput.Quo(minOutput, big.NewInt(10000)), nil
}

// ParseAmount parses an atomic amount as returned by venue APIs. Some venues
// return decimal strings with a fractional part, which is truncated.
func ParseAmount(s string) (*big.Int, error) {
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}
	return d.Truncate(0).BigInt(), nil
}
