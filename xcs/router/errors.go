package router

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks chains or currencies missing from the registry.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidRequest marks caller input that can never be planned.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrLiquidity is the parent of every liquidity failure below.
	ErrLiquidity             = errors.New("liquidity error")
	ErrInsufficientLiquidity = fmt.Errorf("%w: holdings cannot cover the target", ErrLiquidity)
	ErrQuoteInstability      = fmt.Errorf("%w: quote below requirement at full balance", ErrLiquidity)
	ErrNotConverged          = fmt.Errorf("%w: sizing did not converge", ErrLiquidity)
	ErrNoRoute               = fmt.Errorf("%w: no aggregator offered a route", ErrLiquidity)
)

// ProviderError is a single aggregator failure. The resolver recovers from it
// locally; it is only logged and counted.
type ProviderError struct {
	Aggregator string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("aggregator %s failed: %v", e.Aggregator, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func configurationError(err error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}
