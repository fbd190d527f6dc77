package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/models"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

const (
	polygonUSDC = "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"
	polygonUSDT = "0xc2132d05d31c914a87c6611c10748aeb04b58e8f"
	userHex     = "0x00000000000000000000000000000000000000aa"
)

// parity prices every exact in request one to one.
type parity struct{}

func (parity) Name() string { return "parity" }

func (parity) GetQuotes(_ context.Context, requests []aggregators.QuoteRequest) ([]*aggregators.Quote, error) {
	out := make([]*aggregators.Quote, len(requests))
	for i, req := range requests {
		if r, ok := req.(aggregators.ExactInRequest); ok {
			out[i] = &aggregators.Quote{
				Type:                aggregators.QuoteTypeExactIn,
				InputAmount:         new(big.Int).Set(r.InputAmount),
				OutputAmountMinimum: new(big.Int).Set(r.InputAmount),
				OutputAmountLikely:  new(big.Int).Set(r.InputAmount),
			}
		}
	}
	return out, nil
}

type staticHoldings []router.Holding

func (s staticHoldings) Holdings(context.Context, *chaindata.Registry, chaindata.Universe, []byte) ([]router.Holding, error) {
	return s, nil
}

func newTestAPI(t *testing.T, holdings HoldingsSource) (http.Handler, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	registry := chaindata.DefaultRegistry()
	resolver := router.NewQuoteResolver([]aggregators.Aggregator{parity{}}, router.WithRecorder(metrics))
	selector := router.NewSourceSelector(registry, chaindata.NewFeeTable(nil), resolver, router.WithOperationRecorder(metrics))
	destinations := router.NewDestinationResolver(registry, resolver, router.WithOperationRecorder(metrics))

	mux := chi.NewMux()
	mux.Use(zerologMiddleware)
	NewXCSServer(registry, selector, destinations, holdings, chaindata.CurrencyUSDC).Routes(mux)
	return mux, metrics
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSelectSources_FastPath(t *testing.T) {
	h, _ := newTestAPI(t, nil)

	rec := post(t, h, "/v1/xcs/sources:select", models.SelectSourcesRequest{
		UserAddress: userHex,
		Holdings: []models.Holding{
			{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDC, Amount: "150000000"},
		},
		Target: "100",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.SelectSourcesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.PlanID)
	assert.Equal(t, "USDC", resp.Settlement)
	assert.Equal(t, "100", resp.TotalOutput)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "direct", resp.Records[0].Kind)
	assert.Equal(t, "100000000", resp.Records[0].Amount)
}

func TestSelectSources_SwapThenDirect(t *testing.T) {
	h, metrics := newTestAPI(t, nil)

	rec := post(t, h, "/v1/xcs/sources:select", models.SelectSourcesRequest{
		UserAddress: userHex,
		Holdings: []models.Holding{
			{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDT, Amount: "50000000"},
			{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDC, Amount: "20000000"},
		},
		Target: "60",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.SelectSourcesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "swap", resp.Records[0].Kind)
	assert.Equal(t, "parity", resp.Records[0].Aggregator)
	assert.Equal(t, "50000000", resp.Records[0].Amount)
	require.NotNil(t, resp.Records[0].Quote)
	assert.Equal(t, "exact_in", resp.Records[0].Quote.Type)
	assert.Equal(t, "direct", resp.Records[1].Kind)
	assert.Equal(t, "10000000", resp.Records[1].Amount)
	assert.Equal(t, "60", resp.TotalOutput)

	assert.Equal(t, 1.0, testutilCounter(t, metrics.operations.WithLabelValues("select_sources", "ok")))
}

func TestSelectSources_ErrorStatuses(t *testing.T) {
	h, _ := newTestAPI(t, nil)

	cases := []struct {
		name   string
		req    models.SelectSourcesRequest
		status int
		kind   string
	}{
		{
			name: "insufficient liquidity",
			req: models.SelectSourcesRequest{
				UserAddress: userHex,
				Holdings:    []models.Holding{{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDT, Amount: "1000000"}},
				Target:      "1000",
			},
			status: http.StatusUnprocessableEntity,
			kind:   "liquidity",
		},
		{
			name: "unknown chain",
			req: models.SelectSourcesRequest{
				UserAddress: userHex,
				Holdings:    []models.Holding{{ChainID: "ETHEREUM_999", TokenAddress: polygonUSDT, Amount: "1"}},
				Target:      "1",
			},
			status: http.StatusBadRequest,
			kind:   "configuration",
		},
		{
			name: "malformed amount",
			req: models.SelectSourcesRequest{
				UserAddress: userHex,
				Holdings:    []models.Holding{{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDT, Amount: "1.5"}},
				Target:      "1",
			},
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name: "bad bech32 user",
			req: models.SelectSourcesRequest{
				UserAddress: "osmo1notavalidaddress",
				Holdings:    []models.Holding{{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDT, Amount: "1"}},
				Target:      "1",
			},
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name: "zero target",
			req: models.SelectSourcesRequest{
				UserAddress: userHex,
				Holdings:    []models.Holding{{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDT, Amount: "1"}},
				Target:      "0",
			},
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(t, h, "/v1/xcs/sources:select", tc.req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.kind, resp.Kind)
		})
	}
}

func TestSelectSources_DeadlineIsNotLiquidity(t *testing.T) {
	h, _ := newTestAPI(t, nil)

	payload, err := json.Marshal(models.SelectSourcesRequest{
		UserAddress: userHex,
		Holdings:    []models.Holding{{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDT, Amount: "50000000"}},
		Target:      "10",
	})
	require.NoError(t, err)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/xcs/sources:select", bytes.NewReader(payload)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusGatewayTimeout, rec.Code, rec.Body.String())
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "timeout", resp.Kind)
}

func TestDestinationExactIn_Passthrough(t *testing.T) {
	h, _ := newTestAPI(t, nil)

	rec := post(t, h, "/v1/xcs/destinations:exact-in", models.ExactInRequest{
		UserAddress: userHex,
		ChainID:     "ETHEREUM_137",
		InputAmount: "12.5",
		OutputToken: polygonUSDC,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.DestinationSwap
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Quote)
	assert.Equal(t, "12500000", resp.OutputAmount)
}

func TestDetermineDestinations(t *testing.T) {
	h, _ := newTestAPI(t, nil)

	rec := post(t, h, "/v1/xcs/destinations:determine", models.DetermineDestinationsRequest{
		UserAddress: userHex,
		ChainID:     "ETHEREUM_137",
		Required: []models.RequiredAsset{
			{TokenAddress: polygonUSDC, Amount: "5000000"},
			{TokenAddress: polygonUSDT, Amount: "7000000"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.DetermineDestinationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Swaps, 2)
	assert.Nil(t, resp.Swaps[0].Quote)
	require.NotNil(t, resp.Swaps[1].Quote)
	assert.Equal(t, "parity", resp.Swaps[1].Aggregator)
}

func TestValueHoldings(t *testing.T) {
	h, _ := newTestAPI(t, nil)

	rec := post(t, h, "/v1/xcs/holdings:value", models.ValueHoldingsRequest{
		UserAddress: userHex,
		Holdings: []models.Holding{
			{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDC, Amount: "2000000"},
			{ChainID: "ETHEREUM_137", TokenAddress: polygonUSDT, Amount: "3000000"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ValueHoldingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "5", resp.Total)
	require.Len(t, resp.Holdings, 2)
	assert.True(t, resp.Holdings[0].Canonical)
	assert.Empty(t, resp.Unpriced)
}

func TestGetHoldings(t *testing.T) {
	usdc := chaindata.MustParseAddress(polygonUSDC)
	h, _ := newTestAPI(t, staticHoldings{{
		Chain:        chaindata.NewChainID(chaindata.UniverseEthereum, 137),
		TokenAddress: usdc,
		Amount:       big.NewInt(42),
	}})

	req := httptest.NewRequest(http.MethodGet, "/v1/xcs/holdings/ETHEREUM/"+userHex, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.HoldingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Holdings, 1)
	assert.Equal(t, "ETHEREUM_137", resp.Holdings[0].ChainID)
	assert.Equal(t, "42", resp.Holdings[0].Amount)
}

func TestGetHoldings_NotConfigured(t *testing.T) {
	h, _ := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/xcs/holdings/ETHEREUM/"+userHex, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	h, _ := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/xcs/sources:select", bytes.NewBufferString(`{"target":"1","surprise":true}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
