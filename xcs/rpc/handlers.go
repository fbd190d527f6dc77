package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/balances"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/models"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
)

const maxBodyBytes = 1 << 20

// HoldingsSource reads holdings of an address, e.g. the balance API client.
type HoldingsSource interface {
	Holdings(ctx context.Context, registry *chaindata.Registry, universe chaindata.Universe, address []byte) ([]router.Holding, error)
}

var _ HoldingsSource = (*balances.Client)(nil)

// XCSServer serves the source selection and destination endpoints.
type XCSServer struct {
	registry     *chaindata.Registry
	selector     *router.SourceSelector
	destinations *router.DestinationResolver
	holdings     HoldingsSource
	settlement   chaindata.CurrencyID
}

// NewXCSServer creates a new XCSServer. holdings may be nil, the holdings
// endpoint then answers 503.
func NewXCSServer(
	registry *chaindata.Registry,
	selector *router.SourceSelector,
	destinations *router.DestinationResolver,
	holdings HoldingsSource,
	settlement chaindata.CurrencyID,
) *XCSServer {
	if settlement == 0 {
		settlement = chaindata.CurrencyUSDC
	}
	return &XCSServer{
		registry:     registry,
		selector:     selector,
		destinations: destinations,
		holdings:     holdings,
		settlement:   settlement,
	}
}

// Routes mounts the API under the given router.
func (s *XCSServer) Routes(r chi.Router) {
	r.Post("/v1/xcs/sources:select", s.SelectSources)
	r.Post("/v1/xcs/destinations:determine", s.DetermineDestinations)
	r.Post("/v1/xcs/destinations:exact-in", s.DestinationExactIn)
	r.Post("/v1/xcs/holdings:value", s.ValueHoldings)
	r.Get("/v1/xcs/holdings/{universe}/{address}", s.GetHoldings)
}

func (s *XCSServer) SelectSources(w http.ResponseWriter, r *http.Request) {
	var body models.SelectSourcesRequest
	if !decode(w, r, &body) {
		return
	}
	user, err := parseUserAddress(body.UserAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	holdings, err := toHoldings(body.Holdings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	target, err := parseDecimal("target", body.Target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	settlement := s.settlement
	if body.Settlement != "" {
		settlement, err = chaindata.ParseCurrencyID(body.Settlement)
		if err != nil {
			writeError(w, r, badRequest("settlement: %v", err))
			return
		}
	}

	plan, err := s.selector.SelectSources(r.Context(), router.SelectSourcesRequest{
		UserAddress: user,
		Holdings:    holdings,
		Target:      target,
		Settlement:  settlement,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := models.SelectSourcesResponse{
		PlanID:     uuid.NewString(),
		Settlement: settlement.String(),
		Target:     target.String(),
		Records:    make([]models.ConsumptionRecord, len(plan)),
	}
	total := decimal.Zero
	for i, rec := range plan {
		resp.Records[i] = fromRecord(rec)
		total = total.Add(rec.Output)
	}
	resp.TotalOutput = total.String()
	zerolog.Ctx(r.Context()).Info().
		Str("plan_id", resp.PlanID).
		Int("records", len(plan)).
		Str("total_output", resp.TotalOutput).
		Msg("Source plan built")
	writeJSON(w, http.StatusOK, resp)
}

func (s *XCSServer) DetermineDestinations(w http.ResponseWriter, r *http.Request) {
	var body models.DetermineDestinationsRequest
	if !decode(w, r, &body) {
		return
	}
	user, err := parseUserAddress(body.UserAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chain, err := parseChainID(body.ChainID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(body.Required) == 0 {
		writeError(w, r, badRequest("required must not be empty"))
		return
	}
	required := make([]router.RequiredAsset, len(body.Required))
	for i, asset := range body.Required {
		token, err := parseToken("token_address", asset.TokenAddress, asset.Denom)
		if err != nil {
			writeError(w, r, fmt.Errorf("required %d: %w", i, err))
			return
		}
		amount, err := parseAtomic("amount", asset.Amount)
		if err != nil {
			writeError(w, r, fmt.Errorf("required %d: %w", i, err))
			return
		}
		required[i] = router.RequiredAsset{Token: token, Amount: amount}
	}

	swaps, err := s.destinations.DetermineDestinationSwaps(r.Context(), user, chain, required)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := models.DetermineDestinationsResponse{
		ChainID: chain.String(),
		Swaps:   make([]models.DestinationSwap, len(swaps)),
	}
	total := decimal.Zero
	for i, swap := range swaps {
		resp.Swaps[i] = fromDestinationSwap(swap)
		total = total.Add(swap.InputAmount)
	}
	resp.TotalInput = total.String()
	writeJSON(w, http.StatusOK, resp)
}

func (s *XCSServer) DestinationExactIn(w http.ResponseWriter, r *http.Request) {
	var body models.ExactInRequest
	if !decode(w, r, &body) {
		return
	}
	user, err := parseUserAddress(body.UserAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chain, err := parseChainID(body.ChainID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	input, err := parseDecimal("input_amount", body.InputAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := parseToken("output_token", body.OutputToken, body.OutputDenom)
	if err != nil {
		writeError(w, r, err)
		return
	}

	swap, err := s.destinations.DestinationSwapWithExactIn(r.Context(), user, chain, input, token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromDestinationSwap(swap))
}

func (s *XCSServer) ValueHoldings(w http.ResponseWriter, r *http.Request) {
	var body models.ValueHoldingsRequest
	if !decode(w, r, &body) {
		return
	}
	user, err := parseUserAddress(body.UserAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	holdings, err := toHoldings(body.Holdings)
	if err != nil {
		writeError(w, r, err)
		return
	}

	val, err := s.destinations.LiquidateInputHoldings(r.Context(), user, holdings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := models.ValueHoldingsResponse{
		Total:    val.Total.String(),
		Holdings: make([]models.HoldingValue, len(val.Holdings)),
		Unpriced: make([]models.Holding, len(val.Unpriced)),
	}
	for i, hv := range val.Holdings {
		resp.Holdings[i] = models.HoldingValue{
			Holding:    fromHolding(hv.Holding),
			Value:      hv.Value.String(),
			Canonical:  hv.Canonical,
			Aggregator: hv.Aggregator,
		}
	}
	for i, h := range val.Unpriced {
		resp.Unpriced[i] = fromHolding(h)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *XCSServer) GetHoldings(w http.ResponseWriter, r *http.Request) {
	if s.holdings == nil {
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "balance API is not configured",
			Kind:  "internal",
		})
		return
	}
	universe, err := chaindata.ParseUniverse(chi.URLParam(r, "universe"))
	if err != nil {
		writeError(w, r, badRequest("universe: %v", err))
		return
	}
	address, err := addressBytes(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	holdings, err := s.holdings.Holdings(r.Context(), s.registry, universe, address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := models.HoldingsResponse{
		Universe: universe.String(),
		Address:  chi.URLParam(r, "address"),
		Holdings: make([]models.Holding, len(holdings)),
	}
	for i, h := range holdings {
		resp.Holdings[i] = fromHolding(h)
	}
	writeJSON(w, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeError(w, r, badRequest("invalid JSON body: %v", err))
		return false
	}
	return true
}

// statusFor maps engine errors to HTTP statuses: configuration and request
// problems are the caller's, liquidity problems are unprocessable.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, router.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, router.ErrConfiguration):
		return http.StatusBadRequest, "configuration"
	case errors.Is(err, router.ErrLiquidity):
		return http.StatusUnprocessableEntity, "liquidity"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	event := zerolog.Ctx(r.Context()).Warn()
	if status == http.StatusInternalServerError {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, models.ErrorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		Logger.Error().Err(err).Msg("Failed to encode response")
	}
}
