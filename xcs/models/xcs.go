package models

// Holding is a user balance as sent by API clients.
type Holding struct {
	ChainID      string  `json:"chain_id"`        // e.g., "ETHEREUM_137" or "COSMOS_osmosis-1"
	TokenAddress string  `json:"token_address"`   // hex; Cosmos clients may send Denom instead
	Denom        string  `json:"denom,omitempty"` // Cosmos bank denom
	Amount       string  `json:"amount"`          // atomic units
	Value        *string `json:"value,omitempty"` // optional valuation score, e.g. USD value
}

// SelectSourcesRequest - POST /v1/xcs/sources:select body
type SelectSourcesRequest struct {
	UserAddress string    `json:"user_address"` // hex, or bech32 for Cosmos users
	Holdings    []Holding `json:"holdings"`     // in priority order
	Target      string    `json:"target"`       // whole units of settlement currency, e.g. "100.5"
	Settlement  string    `json:"settlement,omitempty"`
}

// Quote is an aggregator answer, amounts in atomic units.
type Quote struct {
	Type                string `json:"type"` // exact_in or exact_out
	InputAmount         string `json:"input_amount"`
	OutputAmountMinimum string `json:"output_amount_minimum"`
	OutputAmountLikely  string `json:"output_amount_likely"`
	Raw                 any    `json:"raw,omitempty"` // aggregator specific payload
}

// ConsumptionRecord is one step of a plan.
type ConsumptionRecord struct {
	Priority     int    `json:"priority"` // index in the request's holdings
	ChainID      string `json:"chain_id"`
	TokenAddress string `json:"token_address"`
	Kind         string `json:"kind"`   // direct or swap
	Amount       string `json:"amount"` // atomic amount taken from the holding
	Output       string `json:"output"` // settlement currency counted for this step
	Aggregator   string `json:"aggregator,omitempty"`
	Quote        *Quote `json:"quote,omitempty"`
}

type SelectSourcesResponse struct {
	PlanID      string              `json:"plan_id"`
	Settlement  string              `json:"settlement"`
	Target      string              `json:"target"`
	TotalOutput string              `json:"total_output"`
	Records     []ConsumptionRecord `json:"records"`
}

type RequiredAsset struct {
	TokenAddress string `json:"token_address"`
	Denom        string `json:"denom,omitempty"`
	Amount       string `json:"amount"` // atomic units
}

// DetermineDestinationsRequest - POST /v1/xcs/destinations:determine body
type DetermineDestinationsRequest struct {
	UserAddress string          `json:"user_address"`
	ChainID     string          `json:"chain_id"`
	Required    []RequiredAsset `json:"required"`
}

type DestinationSwap struct {
	TokenAddress string `json:"token_address"`
	Aggregator   string `json:"aggregator,omitempty"`
	Quote        *Quote `json:"quote,omitempty"` // nil for settlement currency passthrough
	InputAmount  string `json:"input_amount"`    // settlement currency spent, whole units
	OutputAmount string `json:"output_amount"`   // atomic units of the token
}

type DetermineDestinationsResponse struct {
	ChainID    string            `json:"chain_id"`
	TotalInput string            `json:"total_input"`
	Swaps      []DestinationSwap `json:"swaps"`
}

// ExactInRequest - POST /v1/xcs/destinations:exact-in body
type ExactInRequest struct {
	UserAddress string `json:"user_address"`
	ChainID     string `json:"chain_id"`
	InputAmount string `json:"input_amount"` // whole units of settlement currency
	OutputToken string `json:"output_token"`
	OutputDenom string `json:"output_denom,omitempty"`
}

// ValueHoldingsRequest - POST /v1/xcs/holdings:value body
type ValueHoldingsRequest struct {
	UserAddress string    `json:"user_address"`
	Holdings    []Holding `json:"holdings"`
}

type HoldingValue struct {
	Holding    Holding `json:"holding"`
	Value      string  `json:"value"`
	Canonical  bool    `json:"canonical"`
	Aggregator string  `json:"aggregator,omitempty"`
}

type ValueHoldingsResponse struct {
	Total    string         `json:"total"`
	Holdings []HoldingValue `json:"holdings"`
	Unpriced []Holding      `json:"unpriced"`
}

// HoldingsResponse - GET /v1/xcs/holdings/{universe}/{address}
type HoldingsResponse struct {
	Universe string    `json:"universe"`
	Address  string    `json:"address"`
	Holdings []Holding `json:"holdings"`
}

// ErrorResponse is returned with every non 2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"` // configuration, invalid_request, liquidity, internal
}
