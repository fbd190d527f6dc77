package chaindata

// Built-in chain table, used when no chain config file is supplied.
var defaultChains = []Chain{
	{
		ID:   NewChainID(UniverseEthereum, 137),
		Name: "Polygon",
		Currencies: []Currency{
			{ID: CurrencyUSDC, TokenAddress: MustParseAddress("0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"), Decimals: 6},
			{ID: CurrencyUSDT, TokenAddress: MustParseAddress("0xc2132d05d31c914a87c6611c10748aeb04b58e8f"), Decimals: 6},
			{ID: CurrencyPOL, Decimals: 18, IsGasToken: true},
		},
	},
	{
		ID:   NewChainID(UniverseEthereum, 42161),
		Name: "Arbitrum One",
		Currencies: []Currency{
			{ID: CurrencyUSDC, TokenAddress: MustParseAddress("0xaf88d065e77c8cc2239327c5edb3a432268e5831"), Decimals: 6},
			{ID: CurrencyUSDT, TokenAddress: MustParseAddress("0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9"), Decimals: 6},
			{ID: CurrencyETH, Decimals: 18, IsGasToken: true},
		},
	},
	{
		ID:   NewChainID(UniverseEthereum, 10),
		Name: "OP Mainnet",
		Currencies: []Currency{
			{ID: CurrencyUSDC, TokenAddress: MustParseAddress("0x0b2c639c533813f4aa9d7837caf62653d097ff85"), Decimals: 6},
			{ID: CurrencyUSDT, TokenAddress: MustParseAddress("0x94b008aa00579c1307b0ef2c499ad98a8ce58e58"), Decimals: 6},
			{ID: CurrencyETH, Decimals: 18, IsGasToken: true},
		},
	},
	{
		ID:   NewChainID(UniverseEthereum, 8453),
		Name: "Base",
		Currencies: []Currency{
			{ID: CurrencyUSDC, TokenAddress: MustParseAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"), Decimals: 6},
			{ID: CurrencyETH, Decimals: 18, IsGasToken: true},
		},
	},
	{
		ID:   NewChainID(UniverseEthereum, 43114),
		Name: "Avalanche C-Chain",
		Currencies: []Currency{
			{ID: CurrencyUSDC, TokenAddress: MustParseAddress("0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e"), Decimals: 6},
			{ID: CurrencyUSDT, TokenAddress: MustParseAddress("0x9702230a8ea53601f5cd2dc00fdbc13d4df4a8c7"), Decimals: 6},
			{ID: CurrencyAVAX, Decimals: 18, IsGasToken: true},
		},
	},
	{
		ID:   NewChainID(UniverseFuel, 9889),
		Name: "Fuel Ignition",
		Currencies: []Currency{
			{ID: CurrencyUSDC, TokenAddress: MustParseAddress("0x286c479da40dc953bddc3bb4c453b608bba2e0ac483b077bd475174115395e6b"), Decimals: 6},
			{ID: CurrencyUSDT, TokenAddress: MustParseAddress("0xa0265fb5c32f6e8db3197af3c7eb05c48ae373605b8165b6f4a51c5b0ba4812e"), Decimals: 6},
			{ID: CurrencyETH, TokenAddress: MustParseAddress("0xf8f8b6283d7fa5b672b530cbb84fcccb4ff8dc40f8176ef4544ddb1f1952ad07"), Decimals: 9, IsGasToken: true},
		},
	},
}

// DefaultRegistry returns a registry built from the built-in chain table.
func DefaultRegistry() *Registry {
	chains := make([]Chain, len(defaultChains))
	for i, c := range defaultChains {
		chains[i] = Chain{ID: c.ID, Name: c.Name, Currencies: append([]Currency(nil), c.Currencies...)}
	}
	return NewRegistry(chains)
}
