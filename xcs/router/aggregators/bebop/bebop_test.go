package bebop

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

func TestGetQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/polygon/v1/quote")
		assert.Equal(t, r.Header.Get("Source-Auth"), "key")
		q := r.URL.Query()
		assert.Equal(t, q.Get("source"), "xcs")
		if q.Get("buy_amounts") != "" {
			_, _ = w.Write([]byte(`{"routes":[]}`))
			return
		}
		assert.Equal(t, q.Get("sell_amounts"), "500")
		_, _ = w.Write([]byte(`{"routes":[{"type":"PMMv3","quote":{
			"sellTokens":{"0xc2132D05D31c914a87C6611C10748AEb04B58e8F":{"amount":"500"}},
			"buyTokens":{"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359":{"amount":"499","minimumAmount":"497"}}}}]}`))
	}))
	defer srv.Close()

	polygon := aggregators.RequestCommon{
		UserAddress: chaindata.MustParseAddress("0x3333333333333333333333333333333333333333"),
		Chain:       chaindata.NewChainID(chaindata.UniverseEthereum, 137),
		InputToken:  chaindata.MustParseAddress("0xc2132d05d31c914a87c6611c10748aeb04b58e8f"),
		OutputToken: chaindata.MustParseAddress("0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"),
	}
	unknown := polygon
	unknown.Chain = chaindata.NewChainID(chaindata.UniverseEthereum, 43114)

	quotes, err := New(Config{BaseURL: srv.URL, APIKey: "key", Source: "xcs"}).GetQuotes(context.Background(),
		[]aggregators.QuoteRequest{
			aggregators.ExactInRequest{RequestCommon: polygon, InputAmount: big.NewInt(500)},
			aggregators.ExactOutRequest{RequestCommon: polygon, OutputAmount: big.NewInt(1)},
			aggregators.ExactInRequest{RequestCommon: unknown, InputAmount: big.NewInt(500)},
		})
	assert.NoError(t, err)
	assert.NotNil(t, quotes[0])
	assert.Equal(t, quotes[0].InputAmount.String(), "500")
	assert.Equal(t, quotes[0].OutputAmountMinimum.String(), "497")
	assert.Equal(t, quotes[0].Raw.(*Route).Type, "PMMv3")
	assert.True(t, quotes[1] == nil)
	assert.True(t, quotes[2] == nil)
}
