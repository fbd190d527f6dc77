package config

import "time"

// ServiceConfig is the XCS quote service configuration.
type ServiceConfig struct {
	// rpc configs
	Port int    `mapstructure:"port" toml:"port"`
	Host string `mapstructure:"host" toml:"host"`

	// CORS configs
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `mapstructure:"rate_per_minute" toml:"rate_per_minute"`
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests" toml:"max_concurrent_requests"`

	LogLevel string `mapstructure:"log_level" toml:"log_level"`

	// engine configs
	SettlementCurrency string        `mapstructure:"settlement_currency" toml:"settlement_currency"`
	SafetyMultiplier   float64       `mapstructure:"safety_multiplier" toml:"safety_multiplier"`
	MaxIterations      int           `mapstructure:"max_iterations" toml:"max_iterations"`
	QuoteTimeout       time.Duration `mapstructure:"quote_timeout" toml:"quote_timeout"`

	// ChainsConfig is a local chain config file. RegistrySource, when set,
	// is downloaded first and ChainsConfig is resolved inside it.
	ChainsConfig   string `mapstructure:"chains_config" toml:"chains_config"`
	RegistrySource string `mapstructure:"registry_source" toml:"registry_source"`

	// aggregator configs
	LifiAPIKey   string   `mapstructure:"lifi_api_key" toml:"lifi_api_key"`
	LifiURL      string   `mapstructure:"lifi_url" toml:"lifi_url"`
	ZeroExAPIKey string   `mapstructure:"zeroex_api_key" toml:"zeroex_api_key"`
	ZeroExURL    string   `mapstructure:"zeroex_url" toml:"zeroex_url"`
	BebopURL     string   `mapstructure:"bebop_url" toml:"bebop_url"`
	BebopSource  string   `mapstructure:"bebop_source" toml:"bebop_source"`
	BebopAuth    string   `mapstructure:"bebop_auth" toml:"bebop_auth"`
	SqsURLs      []string `mapstructure:"sqs_urls" toml:"sqs_urls"`
	// OsmosisChainID is the textual Cosmos chain id, e.g. osmosis-1.
	OsmosisChainID string `mapstructure:"osmosis_chain_id" toml:"osmosis_chain_id"`
	// EVMRPCURLs entries are "<chain id>=<url>", used by on-chain aggregators.
	EVMRPCURLs []string `mapstructure:"evm_rpc_urls" toml:"evm_rpc_urls"`

	BalanceAPIURL string `mapstructure:"balance_api_url" toml:"balance_api_url"`

	// OpenTelemetry configs
	ServiceName    string `mapstructure:"service_name" toml:"service_name"`
	ServiceVersion string `mapstructure:"service_version" toml:"service_version"`
	Environment    string `mapstructure:"environment" toml:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `mapstructure:"enable_tracing" toml:"enable_tracing"`
	UseOTLPTraces  bool   `mapstructure:"use_otlp_traces" toml:"use_otlp_traces"`
	OTLPTracesURL  string `mapstructure:"otlp_traces_url" toml:"otlp_traces_url"`
	EnableMetrics  bool   `mapstructure:"enable_metrics" toml:"enable_metrics"`
	UsePrometheus  bool   `mapstructure:"use_prometheus" toml:"use_prometheus"`
	UseOTLPMetrics bool   `mapstructure:"use_otlp_metrics" toml:"use_otlp_metrics"`
	OTLPMetricsURL string `mapstructure:"otlp_metrics_url" toml:"otlp_metrics_url"`

	InsecureOTLP bool `mapstructure:"insecure_otlp" toml:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `mapstructure:"development_mode" toml:"development_mode"`
}

// ChainsFile is the on-disk chain registry and fee table.
type ChainsFile struct {
	Chains []ChainEntry `json:"chains" toml:"chains"`
}

type ChainEntry struct {
	Universe string `json:"universe" toml:"universe"`
	// ChainID is a decimal or 0x number, or the textual id for Cosmos chains.
	ChainID    string          `json:"chain_id" toml:"chain_id"`
	Name       string          `json:"name" toml:"name"`
	Currencies []CurrencyEntry `json:"currencies" toml:"currencies"`
}

type CurrencyEntry struct {
	// Currency is a symbol such as USDC or a numeric currency id.
	Currency string `json:"currency" toml:"currency"`
	// TokenAddress is hex. Cosmos currencies set Denom instead.
	TokenAddress string `json:"token_address,omitempty" toml:"token_address,omitempty"`
	Denom        string `json:"denom,omitempty" toml:"denom,omitempty"`
	Decimals     int32  `json:"decimals" toml:"decimals"`
	IsGasToken   bool   `json:"is_gas_token,omitempty" toml:"is_gas_token,omitempty"`
	// CollectionFee is in settlement currency, empty means no fee.
	CollectionFee string `json:"collection_fee,omitempty" toml:"collection_fee,omitempty"`
}
