package sqsquery

// QuoteResponse is the /router/quote payload. Amounts are atomic integer strings.
type QuoteResponse struct {
	AmountIn struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"amount_in"`
	AmountOut            string  `json:"amount_out"`
	Route                []Route `json:"route"`
	LiquidityCap         string  `json:"liquidity_cap"`
	LiquidityCapOverflow bool    `json:"liquidity_cap_overflow"`
	EffectiveFee         string  `json:"effective_fee"`
	PriceImpact          string  `json:"price_impact"`
	SpotPrice            string  `json:"in_base_out_quote_spot_price"`
}

type Route struct {
	Pools     []Pool `json:"pools"`
	HasCwPool bool   `json:"has-cw-pool"`
	OutAmount string `json:"out_amount"`
	InAmount  string `json:"in_amount"`
}

type Pool struct {
	ID            int    `json:"id"`
	Type          int    `json:"type"`
	SpreadFactor  string `json:"spread_factor"`
	TokenOutDenom string `json:"token_out_denom"`
	TakerFee      string `json:"taker_fee"`
}

// Coin is an amount of a bank denom.
type Coin struct {
	Denom  string
	Amount string
}
