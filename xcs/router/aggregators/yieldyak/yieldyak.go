// Package yieldyak quotes swaps by calling the YieldYak router contract's
// findBestPathWithGas view directly over JSON-RPC.
package yieldyak

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

const (
	Name = "yieldyak"

	// MaxSteps is the longest hop count queried; every count from 1 is tried.
	MaxSteps = 4
)

const routerABI = `[{"inputs":[{"internalType":"uint256","name":"_amountIn","type":"uint256"},{"internalType":"address","name":"_tokenIn","type":"address"},{"internalType":"address","name":"_tokenOut","type":"address"},{"internalType":"uint256","name":"_maxSteps","type":"uint256"},{"internalType":"uint256","name":"_gasPrice","type":"uint256"}],"name":"findBestPathWithGas","outputs":[{"components":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"},{"internalType":"address[]","name":"adapters","type":"address[]"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"uint256","name":"gasEstimate","type":"uint256"}],"internalType":"struct YakRouter.FormattedOffer","name":"","type":"tuple"}],"stateMutability":"view","type":"function"}]`

// RouterAddresses lists the deployed YakRouter per EVM chain id.
var RouterAddresses = map[uint64]common.Address{
	42161: common.HexToAddress("0xb32C79a25291265eF240Eb32E9faBbc6DcEE3cE3"),
	10:    common.HexToAddress("0xCd887F78c77b36B0b541E77AfD6F91C0253182A2"),
	43114: common.HexToAddress("0xC4729E56b831d74bBc18797e0e17A295fA77488c"),
}

// Offer is the router's FormattedOffer. For exact output quotes the slices are
// reversed so Path always runs from input to output token.
type Offer struct {
	Amounts     []*big.Int
	Adapters    []common.Address
	Path        []common.Address
	GasEstimate *big.Int
}

// gasPrice is the nominal 1 wei passed to findBestPathWithGas so the router
// still weighs each adapter's gas estimate when ranking paths.
var gasPrice = big.NewInt(1)

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		panic(fmt.Sprintf("yieldyak: invalid router ABI: %v", err))
	}
	return parsed
}

type chainRouter struct {
	caller  ethereum.ContractCaller
	address common.Address
}

// Aggregator holds one contract caller per supported chain.
type Aggregator struct {
	routers map[chaindata.ChainID]chainRouter
}

// New keeps only callers for chains with a known router deployment.
func New(callers map[chaindata.ChainID]ethereum.ContractCaller) *Aggregator {
	a := &Aggregator{routers: make(map[chaindata.ChainID]chainRouter)}
	for chain, caller := range callers {
		if chain.Universe != chaindata.UniverseEthereum {
			continue
		}
		addr, ok := RouterAddresses[chain.Uint64()]
		if !ok {
			log.Debug().Stringer("chain", chain).Msg("No YakRouter deployment, chain ignored")
			continue
		}
		a.routers[chain] = chainRouter{caller: caller, address: addr}
	}
	return a
}

// Dial connects to every RPC endpoint keyed by EVM chain id.
func Dial(ctx context.Context, rpcURLs map[uint64]string) (*Aggregator, []*ethclient.Client, error) {
	callers := make(map[chaindata.ChainID]ethereum.ContractCaller, len(rpcURLs))
	clients := make([]*ethclient.Client, 0, len(rpcURLs))
	for chainID, rpcURL := range rpcURLs {
		if _, ok := RouterAddresses[chainID]; !ok {
			continue
		}
		client, err := ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			for _, c := range clients {
				c.Close()
			}
			return nil, nil, fmt.Errorf("failed to dial chain %d: %w", chainID, err)
		}
		clients = append(clients, client)
		callers[chaindata.NewChainID(chaindata.UniverseEthereum, chainID)] = client
	}
	return New(callers), clients, nil
}

func (a *Aggregator) Name() string { return Name }

// Chains reports how many chains are served.
func (a *Aggregator) Chains() int { return len(a.routers) }

func (a *Aggregator) GetQuotes(ctx context.Context, requests []aggregators.QuoteRequest) ([]*aggregators.Quote, error) {
	return aggregators.QuoteEach(ctx, Name, requests, aggregators.DefaultRequestConcurrency, a.quote), nil
}

func (a *Aggregator) quote(ctx context.Context, req aggregators.QuoteRequest) (*aggregators.Quote, error) {
	c := req.Common()
	router, ok := a.routers[c.Chain]
	if !ok {
		return nil, nil
	}

	in := common.BytesToAddress(c.InputToken.Last20())
	out := common.BytesToAddress(c.OutputToken.Last20())
	var amount *big.Int
	switch r := req.(type) {
	case aggregators.ExactInRequest:
		amount = r.InputAmount
	case aggregators.ExactOutRequest:
		// Price the reverse direction and flip the offer afterwards.
		amount = r.OutputAmount
		in, out = out, in
	default:
		return nil, nil
	}

	offers := make([]Offer, MaxSteps)
	g, gctx := errgroup.WithContext(ctx)
	for steps := 1; steps <= MaxSteps; steps++ {
		g.Go(func() error {
			offer, err := findBestPath(gctx, router, amount, in, out, steps)
			if err != nil {
				return fmt.Errorf("findBestPathWithGas with %d steps: %w", steps, err)
			}
			offers[steps-1] = offer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := bestOffer(offers)
	if best == nil {
		return nil, nil
	}
	if req.Type() == aggregators.QuoteTypeExactOut {
		reverse(best.Amounts)
		reverse(best.Adapters)
		reverse(best.Path)
	}

	output := best.Amounts[len(best.Amounts)-1]
	return &aggregators.Quote{
		Type:                req.Type(),
		InputAmount:         best.Amounts[0],
		OutputAmountMinimum: output,
		OutputAmountLikely:  output,
		Raw:                 best,
	}, nil
}

func findBestPath(
	ctx context.Context,
	router chainRouter,
	amount *big.Int,
	tokenIn, tokenOut common.Address,
	steps int,
) (Offer, error) {
	data, err := parsedABI.Pack("findBestPathWithGas", amount, tokenIn, tokenOut, big.NewInt(int64(steps)), gasPrice)
	if err != nil {
		return Offer{}, fmt.Errorf("failed to pack call: %w", err)
	}
	result, err := router.caller.CallContract(ctx, ethereum.CallMsg{To: &router.address, Data: data}, nil)
	if err != nil {
		return Offer{}, err
	}
	values, err := parsedABI.Unpack("findBestPathWithGas", result)
	if err != nil {
		return Offer{}, fmt.Errorf("failed to unpack offer: %w", err)
	}
	if len(values) != 1 {
		return Offer{}, fmt.Errorf("expected one return value, got %d", len(values))
	}
	offer := *abi.ConvertType(values[0], new(Offer)).(*Offer)
	return offer, nil
}

// bestOffer picks the offer with the largest final amount. The shorter path
// wins a tie. Offers without a path are ignored.
func bestOffer(offers []Offer) *Offer {
	var best *Offer
	for i := range offers {
		o := &offers[i]
		if len(o.Path) == 0 || len(o.Amounts) == 0 {
			continue
		}
		if best == nil || last(o.Amounts).Cmp(last(best.Amounts)) > 0 {
			best = o
		}
	}
	return best
}

func last(amounts []*big.Int) *big.Int {
	return amounts[len(amounts)-1]
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
