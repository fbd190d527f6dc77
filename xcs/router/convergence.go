package router

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultSafetyMultiplier is the factor applied to an estimate each time a
// quote for it comes back short.
var DefaultSafetyMultiplier = decimal.RequireFromString("1.025")

const DefaultMaxIterations = 12

// ConvergenceConfig bounds the resize loop.
type ConvergenceConfig struct {
	Multiplier    decimal.Decimal
	MaxIterations int
}

func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Multiplier:    DefaultSafetyMultiplier,
		MaxIterations: DefaultMaxIterations,
	}
}

// withDefaults fills unset or unusable fields. A multiplier at or below 1
// would never grow the estimate.
func (c ConvergenceConfig) withDefaults() ConvergenceConfig {
	if c.Multiplier.LessThanOrEqual(decimal.NewFromInt(1)) {
		c.Multiplier = DefaultSafetyMultiplier
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	return c
}

// Attempt evaluates one candidate amount and reports whether the result meets
// the requirement.
type Attempt[T any] func(ctx context.Context, amount decimal.Decimal, iteration int) (result T, accepted bool, err error)

// Converge grows amount geometrically from initial until attempt accepts it.
//
// With a valid ceiling the amount never exceeds it, and a rejected attempt at
// the ceiling ends the loop with ErrQuoteInstability. Without acceptance after
// MaxIterations attempts it returns ErrNotConverged.
func Converge[T any](
	ctx context.Context,
	cfg ConvergenceConfig,
	initial decimal.Decimal,
	ceiling decimal.NullDecimal,
	attempt Attempt[T],
) (T, error) {
	var zero T
	cfg = cfg.withDefaults()

	if !initial.IsPositive() {
		return zero, fmt.Errorf("%w: initial estimate %s is not positive", ErrNoRoute, initial)
	}

	amount := capAt(initial, ceiling)
	for i := 0; i < cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, accepted, err := attempt(ctx, amount, i)
		if err != nil {
			return zero, err
		}
		if accepted {
			return result, nil
		}

		if ceiling.Valid && amount.GreaterThanOrEqual(ceiling.Decimal) {
			return zero, fmt.Errorf("%w: rejected at ceiling %s", ErrQuoteInstability, ceiling.Decimal)
		}
		amount = capAt(amount.Mul(cfg.Multiplier), ceiling)
	}

	return zero, fmt.Errorf("%w: %d attempts, last amount %s", ErrNotConverged, cfg.MaxIterations, amount)
}

func capAt(amount decimal.Decimal, ceiling decimal.NullDecimal) decimal.Decimal {
	if ceiling.Valid && amount.GreaterThan(ceiling.Decimal) {
		return ceiling.Decimal
	}
	return amount
}
