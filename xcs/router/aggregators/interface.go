// Package aggregators defines the quote provider contract used by the router.
// Each liquidity venue (LI.FI, 0x, YieldYak, Osmosis SQS) implements Aggregator.
package aggregators

import (
	"context"
	"math/big"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
)

// QuoteType fixes which side of a swap is exact.
type QuoteType uint8

const (
	QuoteTypeExactIn QuoteType = iota
	QuoteTypeExactOut
)

func (t QuoteType) String() string {
	switch t {
	case QuoteTypeExactIn:
		return "exact_in"
	case QuoteTypeExactOut:
		return "exact_out"
	}
	return "unknown"
}

// Seriousness separates cheap indicative quotes from executable ones.
type Seriousness uint8

const (
	// PriceSurvey quotes are only used to estimate a price and never executed.
	PriceSurvey Seriousness = iota
	Serious
)

func (s Seriousness) String() string {
	if s == Serious {
		return "serious"
	}
	return "price_survey"
}

// Aggregator queries one liquidity venue.
//
// GetQuotes returns exactly one entry per request, in order. A nil entry means
// the venue has no route for that request and is not an error. A returned error
// invalidates the whole batch for this aggregator only.
type Aggregator interface {
	Name() string
	GetQuotes(ctx context.Context, requests []QuoteRequest) ([]*Quote, error)
}

// RequestCommon carries the fields shared by both request shapes.
type RequestCommon struct {
	UserAddress chaindata.Address
	// ReceiverAddress defaults to UserAddress when zero.
	ReceiverAddress chaindata.Address
	Chain           chaindata.ChainID
	InputToken      chaindata.Address
	OutputToken     chaindata.Address
	Seriousness     Seriousness
}

// Receiver returns the receiver, falling back to the user address.
func (c RequestCommon) Receiver() chaindata.Address {
	if c.ReceiverAddress.IsZero() {
		return c.UserAddress
	}
	return c.ReceiverAddress
}

// QuoteRequest is either an ExactInRequest or an ExactOutRequest. The set is
// closed; consumers switch on the concrete type.
type QuoteRequest interface {
	Common() RequestCommon
	Type() QuoteType
	quoteRequest()
}

// ExactInRequest sells a fixed input amount.
type ExactInRequest struct {
	RequestCommon
	InputAmount *big.Int
}

func (r ExactInRequest) Common() RequestCommon { return r.RequestCommon }
func (r ExactInRequest) Type() QuoteType       { return QuoteTypeExactIn }
func (ExactInRequest) quoteRequest()           {}

// ExactOutRequest buys a fixed output amount.
type ExactOutRequest struct {
	RequestCommon
	OutputAmount *big.Int
}

func (r ExactOutRequest) Common() RequestCommon { return r.RequestCommon }
func (r ExactOutRequest) Type() QuoteType       { return QuoteTypeExactOut }
func (ExactOutRequest) quoteRequest()           {}

// Quote is a venue's answer to one request. Amounts are atomic units of the
// request's input and output tokens.
type Quote struct {
	Type                QuoteType
	InputAmount         *big.Int
	OutputAmountMinimum *big.Int
	OutputAmountLikely  *big.Int
	// Raw is the venue specific payload needed to execute the swap later.
	Raw any
}
