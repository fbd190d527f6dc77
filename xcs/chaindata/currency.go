package chaindata

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyID is the registry-wide identifier of a fungible asset.
type CurrencyID uint32

const (
	CurrencyUSDC CurrencyID = 0x1
	CurrencyUSDT CurrencyID = 0x2
	CurrencyETH  CurrencyID = 0x3
	CurrencyPOL  CurrencyID = 0x4
	CurrencyAVAX CurrencyID = 0x5
	CurrencyBNB  CurrencyID = 0x6
	CurrencyHYPE CurrencyID = 0x10
	CurrencyKAIA CurrencyID = 0x11
	CurrencySOPH CurrencyID = 0x12
	CurrencyTRX  CurrencyID = 0x13
	CurrencyVLDM CurrencyID = 0x40
	CurrencyMON  CurrencyID = 0x41
)

var currencySymbols = map[CurrencyID]string{
	CurrencyUSDC: "USDC",
	CurrencyUSDT: "USDT",
	CurrencyETH:  "ETH",
	CurrencyPOL:  "POL",
	CurrencyAVAX: "AVAX",
	CurrencyBNB:  "BNB",
	CurrencyHYPE: "HYPE",
	CurrencyKAIA: "KAIA",
	CurrencySOPH: "SOPH",
	CurrencyTRX:  "TRX",
	CurrencyVLDM: "VLDM",
	CurrencyMON:  "MON",
}

func (id CurrencyID) String() string {
	if s, ok := currencySymbols[id]; ok {
		return s
	}
	return fmt.Sprintf("CURRENCY_%d", uint32(id))
}

// ParseCurrencyID accepts a symbol ("USDC") or a numeric id.
func ParseCurrencyID(s string) (CurrencyID, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	for id, name := range currencySymbols {
		if name == sym {
			return id, nil
		}
	}
	n, ok := parseNumber(sym)
	if !ok || !n.IsUint64() || n.Uint64() > 0xffffffff {
		return 0, fmt.Errorf("unknown currency %q", s)
	}
	return CurrencyID(n.Uint64()), nil
}

// Currency is the metadata of one asset on one chain.
type Currency struct {
	ID           CurrencyID
	TokenAddress Address
	Decimals     int32
	IsGasToken   bool
	// Denom is the bank denom for Cosmos chains, empty elsewhere.
	Denom string
}

// ToDecimal converts raw atomic units to a whole-unit decimal.
func (c Currency) ToDecimal(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -c.Decimals)
}

// ToAtomic converts a whole-unit decimal to atomic units, rounding up so a
// converted requirement is never smaller than the decimal it came from.
func (c Currency) ToAtomic(amount decimal.Decimal) *big.Int {
	return amount.Shift(c.Decimals).Ceil().BigInt()
}

// ToAtomicFloor converts rounding down; used when the amount must not exceed a balance.
func (c Currency) ToAtomicFloor(amount decimal.Decimal) *big.Int {
	return amount.Shift(c.Decimals).Floor().BigInt()
}
