package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
)

const envPrefix = "XCS"

// LoadServiceConfig loads the service config from the given toml file, or from
// XCS_ prefixed env vars when configPath is nil.
func LoadServiceConfig(configPath *string) (*ServiceConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		// if no file expect envs
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("rate_per_minute", 120)
	v.SetDefault("max_concurrent_requests", 64)
	v.SetDefault("log_level", "info")
	v.SetDefault("settlement_currency", "USDC")
	v.SetDefault("safety_multiplier", 1.025)
	v.SetDefault("max_iterations", 12)
	v.SetDefault("quote_timeout", 15*time.Second)
	v.SetDefault("lifi_url", "https://li.quest/v1")
	v.SetDefault("zeroex_url", "https://api.0x.org")
	v.SetDefault("bebop_url", "https://api.bebop.xyz/router")
	v.SetDefault("osmosis_chain_id", "osmosis-1")
	v.SetDefault("service_name", "spectra-xcs")
}

func loadEnv(v *viper.Viper) (*ServiceConfig, error) {
	// a missing .env file is fine, envs may come from docker or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config ServiceConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests", "log_level",
		"settlement_currency", "safety_multiplier", "max_iterations", "quote_timeout",
		"chains_config", "registry_source",
		"lifi_api_key", "lifi_url", "zeroex_api_key", "zeroex_url",
		"bebop_url", "bebop_source", "bebop_auth",
		"sqs_urls", "osmosis_chain_id", "evm_rpc_urls", "balance_api_url",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"insecure_otlp", "development_mode",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*ServiceConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ServiceConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// Validate reports every problem at once.
func (c *ServiceConfig) Validate() error {
	var err error
	if c.Port <= 0 || c.Port > 65535 {
		err = multierr.Append(err, errors.New("port must be between 1 and 65535"))
	}
	if c.Host == "" {
		err = multierr.Append(err, errors.New("host is required"))
	}
	if len(c.AllowedOrigins) == 0 {
		err = multierr.Append(err, errors.New("allowed_origins is required"))
	}
	if _, perr := zerolog.ParseLevel(c.LogLevel); perr != nil {
		err = multierr.Append(err, fmt.Errorf("log_level: %w", perr))
	}
	if _, perr := chaindata.ParseCurrencyID(c.SettlementCurrency); perr != nil {
		err = multierr.Append(err, fmt.Errorf("settlement_currency: %w", perr))
	}
	if c.SafetyMultiplier <= 1 {
		err = multierr.Append(err, errors.New("safety_multiplier must be greater than 1"))
	}
	if c.MaxIterations <= 0 {
		err = multierr.Append(err, errors.New("max_iterations must be positive"))
	}
	if c.QuoteTimeout <= 0 {
		err = multierr.Append(err, errors.New("quote_timeout must be positive"))
	}
	for _, u := range c.SqsURLs {
		if u == "" {
			err = multierr.Append(err, errors.New("sqs_urls must not be empty"))
		}
	}
	if len(c.SqsURLs) > 0 {
		if _, cerr := chaindata.CosmosChainID(c.OsmosisChainID); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("osmosis_chain_id: %w", cerr))
		}
	}
	if _, perr := c.RPCEndpoints(); perr != nil {
		err = multierr.Append(err, perr)
	}
	if c.BalanceAPIURL != "" {
		if _, perr := url.ParseRequestURI(c.BalanceAPIURL); perr != nil {
			err = multierr.Append(err, fmt.Errorf("balance_api_url: %w", perr))
		}
	}
	if c.EnableTracing && c.UseOTLPTraces && c.OTLPTracesURL == "" {
		err = multierr.Append(err, errors.New("otlp_traces_url is required when use_otlp_traces is set"))
	}
	if c.EnableMetrics && c.UseOTLPMetrics && c.OTLPMetricsURL == "" {
		err = multierr.Append(err, errors.New("otlp_metrics_url is required when use_otlp_metrics is set"))
	}
	return err
}

// RPCEndpoints parses EVMRPCURLs into a chain id to url map.
func (c *ServiceConfig) RPCEndpoints() (map[uint64]string, error) {
	out := make(map[uint64]string, len(c.EVMRPCURLs))
	for _, entry := range c.EVMRPCURLs {
		id, rpcURL, ok := strings.Cut(entry, "=")
		if !ok || rpcURL == "" {
			return nil, fmt.Errorf("evm_rpc_urls entry %q must be <chain id>=<url>", entry)
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("evm_rpc_urls entry %q: %w", entry, err)
		}
		out[chainID] = strings.TrimSpace(rpcURL)
	}
	return out, nil
}

// Settlement returns the parsed settlement currency.
func (c *ServiceConfig) Settlement() chaindata.CurrencyID {
	id, err := chaindata.ParseCurrencyID(c.SettlementCurrency)
	if err != nil {
		return chaindata.CurrencyUSDC
	}
	return id
}
