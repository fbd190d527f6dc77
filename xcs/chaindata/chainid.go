// Package chaindata holds the read-only chain and currency registry used by the
// quote engine: universes, omniversal chain IDs, currencies and collection fees.
package chaindata

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Universe identifies a family of chains sharing an execution model.
type Universe uint32

const (
	UniverseEthereum Universe = 0
	UniverseFuel     Universe = 1
	UniverseSolana   Universe = 2
	UniverseTron     Universe = 3
	UniverseCosmos   Universe = 4
)

var universeNames = map[Universe]string{
	UniverseEthereum: "ETHEREUM",
	UniverseFuel:     "FUEL",
	UniverseSolana:   "SOLANA",
	UniverseTron:     "TRON",
	UniverseCosmos:   "COSMOS",
}

func (u Universe) String() string {
	if name, ok := universeNames[u]; ok {
		return name
	}
	return fmt.Sprintf("UNIVERSE_%d", uint32(u))
}

// ParseUniverse accepts the upper case universe name ("ETHEREUM") or its numeric form.
func ParseUniverse(s string) (Universe, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for u, n := range universeNames {
		if n == name {
			return u, nil
		}
	}
	var n uint32
	if _, err := fmt.Sscanf(name, "%d", &n); err == nil {
		return Universe(n), nil
	}
	return 0, fmt.Errorf("unknown universe %q", s)
}

// ChainID identifies a chain across universes. The id is stored as a 32 byte
// big-endian value so the type is comparable and can key maps directly.
type ChainID struct {
	Universe Universe
	id       [32]byte
}

// NewChainID builds a ChainID from a numeric chain id.
func NewChainID(universe Universe, chainID uint64) ChainID {
	c := ChainID{Universe: universe}
	binary.BigEndian.PutUint64(c.id[24:], chainID)
	return c
}

// ChainIDFromBytes builds a ChainID from a big-endian id of at most 32 bytes.
func ChainIDFromBytes(universe Universe, b []byte) (ChainID, error) {
	if len(b) > 32 {
		return ChainID{}, fmt.Errorf("chain id is %d bytes, max 32", len(b))
	}
	c := ChainID{Universe: universe}
	copy(c.id[32-len(b):], b)
	return c, nil
}

// ChainIDFromBinary decodes the 36 byte form: 4 byte universe followed by the 32 byte id.
func ChainIDFromBinary(b []byte) (ChainID, error) {
	if len(b) != 36 {
		return ChainID{}, fmt.Errorf("binary chain id must be 36 bytes, got %d", len(b))
	}
	c := ChainID{Universe: Universe(binary.BigEndian.Uint32(b[:4]))}
	copy(c.id[:], b[4:])
	return c, nil
}

// Binary returns the 36 byte encoding.
func (c ChainID) Binary() []byte {
	out := make([]byte, 36)
	binary.BigEndian.PutUint32(out[:4], uint32(c.Universe))
	copy(out[4:], c.id[:])
	return out
}

// BigInt returns the chain id number.
func (c ChainID) BigInt() *big.Int {
	return new(big.Int).SetBytes(c.id[:])
}

// Uint64 returns the chain id number, truncated if it does not fit.
func (c ChainID) Uint64() uint64 {
	return binary.BigEndian.Uint64(c.id[24:])
}

func (c ChainID) IsZero() bool {
	return c == ChainID{}
}

// CosmosChainID stores a textual Cosmos chain id such as "osmosis-1".
func CosmosChainID(name string) (ChainID, error) {
	if name == "" {
		return ChainID{}, errors.New("empty cosmos chain id")
	}
	return ChainIDFromBytes(UniverseCosmos, []byte(name))
}

// CosmosName returns the textual id of a Cosmos chain.
func (c ChainID) CosmosName() string {
	return string(bytes.TrimLeft(c.id[:], "\x00"))
}

// String renders e.g. ETHEREUM_137, or COSMOS_osmosis-1 for Cosmos chains.
func (c ChainID) String() string {
	if c.Universe == UniverseCosmos {
		return c.Universe.String() + "_" + c.CosmosName()
	}
	return c.Universe.String() + "_" + c.BigInt().String()
}

// ParseChainID parses the String form.
func ParseChainID(s string) (ChainID, error) {
	idx := strings.Index(s, "_")
	if idx <= 0 || idx == len(s)-1 {
		return ChainID{}, fmt.Errorf("invalid chain id %q", s)
	}
	universe, err := ParseUniverse(s[:idx])
	if err != nil {
		return ChainID{}, err
	}
	if universe == UniverseCosmos {
		return CosmosChainID(s[idx+1:])
	}
	n, ok := new(big.Int).SetString(s[idx+1:], 10)
	if !ok || n.Sign() < 0 {
		return ChainID{}, fmt.Errorf("invalid chain number in %q", s)
	}
	return ChainIDFromBytes(universe, n.Bytes())
}

type chainIDJSON struct {
	Universe string `json:"universe"`
	ChainID  string `json:"chain_id"`
}

// MarshalJSON encodes as {"universe":"ETHEREUM","chain_id":"0x89"}.
func (c ChainID) MarshalJSON() ([]byte, error) {
	return json.Marshal(chainIDJSON{
		Universe: c.Universe.String(),
		ChainID:  "0x" + c.BigInt().Text(16),
	})
}

// UnmarshalJSON accepts the object form or the ETHEREUM_137 string form.
func (c *ChainID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseChainID(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var raw chainIDJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode chain id: %w", err)
	}
	universe, err := ParseUniverse(raw.Universe)
	if err != nil {
		return err
	}
	n, ok := parseNumber(raw.ChainID)
	if !ok {
		return fmt.Errorf("invalid chain_id %q", raw.ChainID)
	}
	parsed, err := ChainIDFromBytes(universe, n.Bytes())
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// parseNumber reads a decimal or 0x-prefixed hex number.
func parseNumber(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return new(big.Int).SetString(s[2:], 16)
	}
	return new(big.Int).SetString(s, 10)
}

// Address is a token or account address zero-extended on the left to 32 bytes,
// which covers EVM (20 byte), Fuel and Solana (32 byte) addresses.
type Address [32]byte

var errAddressTooLong = errors.New("address longer than 32 bytes")

// AddressFromBytes left pads b to 32 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) > 32 {
		return a, errAddressTooLong
	}
	copy(a[32-len(b):], b)
	return a, nil
}

// ParseAddress decodes a hex address with or without 0x prefix.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	return AddressFromBytes(b)
}

// DenomAddress derives the registry address of a Cosmos bank denom.
func DenomAddress(denom string) Address {
	return Address(sha256.Sum256([]byte(denom)))
}

// MustParseAddress is ParseAddress for static tables.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Hex returns the full 32 byte 0x-prefixed form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Last20 returns the trailing 20 bytes, the EVM address part.
func (a Address) Last20() []byte {
	return a[12:]
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return a.Hex()
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
