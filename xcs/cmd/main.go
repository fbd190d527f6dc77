package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/balances"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/config"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators/bebop"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators/lifi"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators/osmosis"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators/yieldyak"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators/zeroex"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/rpc"
	sqsquery "github.com/Cogwheel-Validator/spectra-xcs/xcs/sqs_query"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	// Share the logger with the rpc and router packages
	rpc.SetLogger(log)
	router.SetLogger(log.With().Str("component", "xcs-router").Logger())
}

func main() {
	configPath := flag.String("config", "", "toml config file, XCS_ env vars are used when empty")
	chainsPath := flag.String("config-chains", "", "chain config file, overrides chains_config")
	flag.Parse()

	var cfgFile *string
	if *configPath != "" {
		cfgFile = configPath
	}
	cfg, err := config.LoadServiceConfig(cfgFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if *chainsPath != "" {
		cfg.ChainsConfig = *chainsPath
	}

	log.Info().
		Str("config", *configPath).
		Str("chains_config", cfg.ChainsConfig).
		Str("registry_source", cfg.RegistrySource).
		Msg("Starting Spectra XCS")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, fees, err := loadRegistry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load chain config")
	}
	log.Info().Int("chains", len(registry.Chains())).Int("fees", fees.Len()).Msg("Loaded chains")

	aggs, closers, err := buildAggregators(ctx, cfg, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build aggregators")
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	if len(aggs) == 0 {
		log.Fatal().Msg("No aggregator configured")
	}

	metrics := rpc.NewMetrics(nil)
	resolver := router.NewQuoteResolver(aggs,
		router.WithCallTimeout(cfg.QuoteTimeout),
		router.WithRecorder(metrics),
	)
	opts := []router.Option{
		router.WithSettlementCurrency(cfg.Settlement()),
		router.WithConvergence(router.ConvergenceConfig{
			Multiplier:    decimal.NewFromFloat(cfg.SafetyMultiplier),
			MaxIterations: cfg.MaxIterations,
		}),
		router.WithOperationRecorder(metrics),
	}
	selector := router.NewSourceSelector(registry, fees, resolver, opts...)
	destinations := router.NewDestinationResolver(registry, resolver, opts...)

	var holdings rpc.HoldingsSource
	if cfg.BalanceAPIURL != "" {
		holdings = balances.NewClient(cfg.BalanceAPIURL, nil)
	}

	xcs := rpc.NewXCSServer(registry, selector, destinations, holdings, cfg.Settlement())
	server, err := rpc.NewServer(ctx, buildServerConfig(cfg), xcs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

// loadRegistry prefers a downloaded registry, then a local chain config, then
// the built-in chain table.
func loadRegistry(ctx context.Context, cfg *config.ServiceConfig) (*chaindata.Registry, *chaindata.FeeTable, error) {
	loader := config.NewChainConfigLoader()
	if cfg.RegistrySource != "" {
		name := cfg.ChainsConfig
		if name == "" {
			name = "chains.toml"
		}
		path, dir, err := config.FetchRegistry(ctx, cfg.RegistrySource, filepath.Base(name))
		if err != nil {
			return nil, nil, err
		}
		defer func() { _ = os.RemoveAll(dir) }()
		return loader.LoadFromFile(path)
	}
	if cfg.ChainsConfig != "" {
		return loader.LoadFromFile(cfg.ChainsConfig)
	}
	log.Warn().Msg("No chain config given, using the built-in chain table")
	return chaindata.DefaultRegistry(), chaindata.NewFeeTable(nil), nil
}

// buildAggregators wires every configured venue. Order matters: earlier
// aggregators win ties.
func buildAggregators(
	ctx context.Context,
	cfg *config.ServiceConfig,
	registry *chaindata.Registry,
) ([]aggregators.Aggregator, []func(), error) {
	var aggs []aggregators.Aggregator
	var closers []func()

	aggs = append(aggs, lifi.New(lifi.Config{BaseURL: cfg.LifiURL, APIKey: cfg.LifiAPIKey}))
	if cfg.ZeroExAPIKey != "" {
		aggs = append(aggs, zeroex.New(zeroex.Config{BaseURL: cfg.ZeroExURL, APIKey: cfg.ZeroExAPIKey}))
	} else {
		log.Info().Msg("0x disabled, no zeroex_api_key")
	}
	if cfg.BebopSource != "" {
		aggs = append(aggs, bebop.New(bebop.Config{BaseURL: cfg.BebopURL, APIKey: cfg.BebopAuth, Source: cfg.BebopSource}))
	}

	endpoints, err := cfg.RPCEndpoints()
	if err != nil {
		return nil, nil, err
	}
	if len(endpoints) > 0 {
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		yak, clients, err := yieldyak.Dial(dialCtx, endpoints)
		cancel()
		if err != nil {
			return nil, nil, err
		}
		for _, c := range clients {
			closers = append(closers, c.Close)
		}
		if yak.Chains() > 0 {
			aggs = append(aggs, yak)
			log.Info().Int("chains", yak.Chains()).Msg("YieldYak aggregator initialized")
		}
	}

	if len(cfg.SqsURLs) > 0 {
		osmo, err := chaindata.CosmosChainID(cfg.OsmosisChainID)
		if err != nil {
			return nil, nil, err
		}
		if _, err := registry.Chain(osmo); err != nil {
			log.Warn().Str("chain", cfg.OsmosisChainID).Msg("Osmosis chain not in registry, SQS aggregator disabled")
		} else {
			client, err := sqsquery.NewClient(cfg.SqsURLs, sqsquery.DefaultFailoverConfig())
			if err != nil {
				return nil, nil, err
			}
			closers = append(closers, client.Close)
			aggs = append(aggs, osmosis.New(client, registry, osmosis.Config{Chain: osmo}))
			log.Info().
				Str("primary", cfg.SqsURLs[0]).
				Int("backups", len(cfg.SqsURLs)-1).
				Msg("Osmosis SQS aggregator initialized")
		}
	}

	names := make([]string, len(aggs))
	for i, a := range aggs {
		names[i] = a.Name()
	}
	log.Info().Strs("aggregators", names).Msg("Aggregators configured")
	return aggs, closers, nil
}

// buildServerConfig converts the loaded ServiceConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.ServiceConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		AllowedOrigins: cfg.AllowedOrigins,
		// the engine metrics are always registered, so always served
		EnableMetrics:  true,
		RequestTimeout: 4*cfg.QuoteTimeout + 10*time.Second,
	}
	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	if cfg.EnableTracing || cfg.EnableMetrics {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:     defaultString(cfg.ServiceName, "spectra-xcs"),
			ServiceVersion:  defaultString(cfg.ServiceVersion, "1.0.0"),
			Environment:     defaultString(cfg.Environment, "development"),
			EnableTracing:   cfg.EnableTracing,
			UseOTLPTraces:   cfg.UseOTLPTraces,
			OTLPTracesURL:   cfg.OTLPTracesURL,
			EnableMetrics:   cfg.EnableMetrics,
			UsePrometheus:   cfg.UsePrometheus,
			UseOTLPMetrics:  cfg.UseOTLPMetrics,
			OTLPMetricsURL:  cfg.OTLPMetricsURL,
			InsecureOTLP:    cfg.InsecureOTLP,
			DevelopmentMode: cfg.DevelopmentMode,
		}
	}
	return serverConfig
}

// defaultString returns the default value if s is empty
func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
