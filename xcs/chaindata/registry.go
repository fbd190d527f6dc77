package chaindata

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrChainNotFound    = errors.New("chain not found in registry")
	ErrCurrencyNotFound = errors.New("currency not found on chain")
)

// Chain is one registry entry.
type Chain struct {
	ID         ChainID
	Name       string
	Currencies []Currency
}

// CurrencyByID returns the chain's currency with the given id.
func (c *Chain) CurrencyByID(id CurrencyID) (Currency, error) {
	for _, cur := range c.Currencies {
		if cur.ID == id {
			return cur, nil
		}
	}
	return Currency{}, fmt.Errorf("%w: %s on %s", ErrCurrencyNotFound, id, c.ID)
}

// CurrencyByAddress returns the chain's currency deployed at the token address.
func (c *Chain) CurrencyByAddress(token Address) (Currency, error) {
	for _, cur := range c.Currencies {
		if cur.TokenAddress == token {
			return cur, nil
		}
	}
	return Currency{}, fmt.Errorf("%w: token %s on %s", ErrCurrencyNotFound, token.Hex(), c.ID)
}

// Registry is a read-only chain lookup table. It is safe for concurrent use
// once built.
type Registry struct {
	chains map[ChainID]*Chain
	order  []ChainID
}

// NewRegistry indexes the chains. Later duplicates replace earlier ones.
func NewRegistry(chains []Chain) *Registry {
	r := &Registry{chains: make(map[ChainID]*Chain, len(chains))}
	for i := range chains {
		chain := chains[i]
		if _, exists := r.chains[chain.ID]; !exists {
			r.order = append(r.order, chain.ID)
		}
		r.chains[chain.ID] = &chain
	}
	return r
}

// Chain looks up a chain by id.
func (r *Registry) Chain(id ChainID) (*Chain, error) {
	chain, ok := r.chains[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, id)
	}
	return chain, nil
}

// Currency is a shortcut for Chain(id) followed by CurrencyByID.
func (r *Registry) Currency(chainID ChainID, id CurrencyID) (Currency, error) {
	chain, err := r.Chain(chainID)
	if err != nil {
		return Currency{}, err
	}
	return chain.CurrencyByID(id)
}

// Chains returns the chains in insertion order.
func (r *Registry) Chains() []*Chain {
	out := make([]*Chain, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.chains[id])
	}
	return out
}

// FeeTable maps (chain, token) to the fixed fee charged for collecting that
// holding into the settlement pool. Missing entries cost nothing.
type FeeTable struct {
	fees map[feeKey]decimal.Decimal
}

type feeKey struct {
	chain ChainID
	token Address
}

// FeeEntry is one fee row as loaded from configuration.
type FeeEntry struct {
	Chain ChainID
	Token Address
	Fee   decimal.Decimal
}

func NewFeeTable(entries []FeeEntry) *FeeTable {
	t := &FeeTable{fees: make(map[feeKey]decimal.Decimal, len(entries))}
	for _, e := range entries {
		t.fees[feeKey{chain: e.Chain, token: e.Token}] = e.Fee
	}
	return t
}

// CollectionFee returns the fee for the holding, zero when absent. A nil table
// has no fees.
func (t *FeeTable) CollectionFee(chain ChainID, token Address) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	if fee, ok := t.fees[feeKey{chain: chain, token: token}]; ok {
		return fee
	}
	return decimal.Zero
}

func (t *FeeTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.fees)
}
