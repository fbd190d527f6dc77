package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
)

// ChainConfigLoader loads chain configuration files and converts them to the
// registry and fee table used by the router.
type ChainConfigLoader struct{}

// NewChainConfigLoader creates a new chain config loader.
func NewChainConfigLoader() *ChainConfigLoader {
	return &ChainConfigLoader{}
}

// LoadFromFile reads a json or toml chain config.
func (l *ChainConfigLoader) LoadFromFile(filePath string) (*chaindata.Registry, *chaindata.FeeTable, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read chain config file: %w", err)
	}

	var file ChainsFile
	if strings.HasSuffix(filePath, ".json") {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}

	return l.Convert(&file)
}

// Convert builds the registry and fee table. Every invalid entry is reported.
func (l *ChainConfigLoader) Convert(file *ChainsFile) (*chaindata.Registry, *chaindata.FeeTable, error) {
	if file == nil || len(file.Chains) == 0 {
		return nil, nil, fmt.Errorf("no chains in config")
	}

	var errs error
	chains := make([]chaindata.Chain, 0, len(file.Chains))
	var fees []chaindata.FeeEntry
	for _, entry := range file.Chains {
		id, err := entry.chainID()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		chain := chaindata.Chain{ID: id, Name: entry.Name}
		for _, cur := range entry.Currencies {
			currency, err := cur.currency(id)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("chain %s: %w", id, err))
				continue
			}
			chain.Currencies = append(chain.Currencies, currency)

			if cur.CollectionFee == "" {
				continue
			}
			fee, err := decimal.NewFromString(cur.CollectionFee)
			if err != nil || fee.IsNegative() {
				errs = multierr.Append(errs, fmt.Errorf("chain %s currency %s: invalid collection_fee %q", id, cur.Currency, cur.CollectionFee))
				continue
			}
			fees = append(fees, chaindata.FeeEntry{Chain: id, Token: currency.TokenAddress, Fee: fee})
		}
		chains = append(chains, chain)
	}
	if errs != nil {
		return nil, nil, errs
	}
	return chaindata.NewRegistry(chains), chaindata.NewFeeTable(fees), nil
}

func (e ChainEntry) chainID() (chaindata.ChainID, error) {
	universe, err := chaindata.ParseUniverse(e.Universe)
	if err != nil {
		return chaindata.ChainID{}, fmt.Errorf("chain %q: %w", e.Name, err)
	}
	if universe == chaindata.UniverseCosmos {
		return chaindata.CosmosChainID(e.ChainID)
	}
	n, ok := new(big.Int).SetString(strings.TrimSpace(e.ChainID), 0)
	if !ok || n.Sign() < 0 {
		return chaindata.ChainID{}, fmt.Errorf("chain %q: invalid chain_id %q", e.Name, e.ChainID)
	}
	return chaindata.ChainIDFromBytes(universe, n.Bytes())
}

func (c CurrencyEntry) currency(chain chaindata.ChainID) (chaindata.Currency, error) {
	id, err := chaindata.ParseCurrencyID(c.Currency)
	if err != nil {
		return chaindata.Currency{}, err
	}
	if c.Decimals < 0 || c.Decimals > 36 {
		return chaindata.Currency{}, fmt.Errorf("currency %s: decimals %d out of range", c.Currency, c.Decimals)
	}
	out := chaindata.Currency{ID: id, Decimals: c.Decimals, IsGasToken: c.IsGasToken, Denom: c.Denom}
	switch {
	case c.Denom != "":
		if chain.Universe != chaindata.UniverseCosmos {
			return chaindata.Currency{}, fmt.Errorf("currency %s: denom is only valid on cosmos chains", c.Currency)
		}
		out.TokenAddress = chaindata.DenomAddress(c.Denom)
	case c.TokenAddress != "":
		out.TokenAddress, err = chaindata.ParseAddress(c.TokenAddress)
		if err != nil {
			return chaindata.Currency{}, fmt.Errorf("currency %s: %w", c.Currency, err)
		}
	case !c.IsGasToken:
		return chaindata.Currency{}, errors.New("currency " + c.Currency + ": token_address or denom is required")
	}
	return out, nil
}
