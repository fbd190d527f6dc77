package rpc

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/models"
)

func TestParseUserAddress_Bech32(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	words, err := bech32.ConvertBits(payload, 8, 5, true)
	require.NoError(t, err)
	encoded, err := bech32.Encode("osmo", words)
	require.NoError(t, err)

	addr, err := parseUserAddress(encoded)
	require.NoError(t, err)
	want, err := chaindata.AddressFromBytes(payload)
	require.NoError(t, err)
	assert.Equal(t, want, addr)
}

func TestParseUserAddress_Hex(t *testing.T) {
	addr, err := parseUserAddress(userHex)
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), addr[31])

	_, err = parseUserAddress("0xzz")
	assert.True(t, errors.Is(err, errBadRequest))
	_, err = parseUserAddress("")
	assert.True(t, errors.Is(err, errBadRequest))
}

func TestToHoldings_Denom(t *testing.T) {
	value := "12.5"
	holdings, err := toHoldings([]models.Holding{{
		ChainID: "COSMOS_osmosis-1",
		Denom:   "uosmo",
		Amount:  "1000",
		Value:   &value,
	}})
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, chaindata.DenomAddress("uosmo"), holdings[0].TokenAddress)
	assert.True(t, holdings[0].Value.Valid)
	assert.Equal(t, "COSMOS_osmosis-1", holdings[0].Chain.String())
}
