package yieldyak

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

var (
	avalanche = chaindata.NewChainID(chaindata.UniverseEthereum, 43114)
	wavax     = chaindata.MustParseAddress("0xb31f66aa3c1e785363f0875a1b74e27b85fd66c7")
	usdc      = chaindata.MustParseAddress("0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e")
	dead      = chaindata.MustParseAddress("0x000000000000000000000000000000000000dead")
)

// fakeRouter multiplies the input by the hop count, capped at three hops. It
// reverts unless the gas price is 1 wei.
type fakeRouter struct {
	calls atomic.Int64
	fail  bool
}

func (f *fakeRouter) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("execution reverted")
	}
	method := parsedABI.Methods["findBestPathWithGas"]
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	amount := args[0].(*big.Int)
	tokenIn := args[1].(common.Address)
	tokenOut := args[2].(common.Address)
	steps := args[3].(*big.Int).Int64()
	if args[4].(*big.Int).Cmp(big.NewInt(1)) != 0 {
		return nil, errors.New("gas price must be 1 wei")
	}

	offer := Offer{GasEstimate: big.NewInt(100_000)}
	if tokenOut != common.BytesToAddress(dead.Last20()) {
		hops := min(steps, 3)
		offer.Amounts = []*big.Int{amount, new(big.Int).Mul(amount, big.NewInt(hops))}
		offer.Adapters = []common.Address{common.HexToAddress("0x01")}
		offer.Path = []common.Address{tokenIn, tokenOut}
	}
	return method.Outputs.Pack(offer)
}

func TestGetQuotesPicksBestStepCount(t *testing.T) {
	fake := &fakeRouter{}
	agg := New(map[chaindata.ChainID]ethereum.ContractCaller{
		avalanche: fake,
		chaindata.NewChainID(chaindata.UniverseEthereum, 1): fake,
	})
	assert.Equal(t, agg.Chains(), 1)

	base := aggregators.RequestCommon{Chain: avalanche, InputToken: wavax, OutputToken: usdc}
	noRoute := base
	noRoute.OutputToken = dead
	mainnet := base
	mainnet.Chain = chaindata.NewChainID(chaindata.UniverseEthereum, 1)

	quotes, err := agg.GetQuotes(context.Background(), []aggregators.QuoteRequest{
		aggregators.ExactInRequest{RequestCommon: base, InputAmount: big.NewInt(10)},
		aggregators.ExactOutRequest{RequestCommon: base, OutputAmount: big.NewInt(10)},
		aggregators.ExactInRequest{RequestCommon: noRoute, InputAmount: big.NewInt(10)},
		aggregators.ExactInRequest{RequestCommon: mainnet, InputAmount: big.NewInt(10)},
	})
	assert.NoError(t, err)
	assert.Equal(t, fake.calls.Load(), int64(3*MaxSteps))

	assert.NotNil(t, quotes[0])
	assert.Equal(t, quotes[0].InputAmount.String(), "10")
	assert.Equal(t, quotes[0].OutputAmountMinimum.String(), "30")

	assert.NotNil(t, quotes[1])
	assert.Equal(t, quotes[1].Type, aggregators.QuoteTypeExactOut)
	assert.Equal(t, quotes[1].InputAmount.String(), "30")
	assert.Equal(t, quotes[1].OutputAmountMinimum.String(), "10")
	offer := quotes[1].Raw.(*Offer)
	assert.Equal(t, offer.Path[0], common.BytesToAddress(wavax.Last20()))

	assert.True(t, quotes[2] == nil)
	assert.True(t, quotes[3] == nil)
}

func TestCallFailureBecomesNoQuote(t *testing.T) {
	agg := New(map[chaindata.ChainID]ethereum.ContractCaller{avalanche: &fakeRouter{fail: true}})
	quotes, err := agg.GetQuotes(context.Background(), []aggregators.QuoteRequest{
		aggregators.ExactInRequest{
			RequestCommon: aggregators.RequestCommon{Chain: avalanche, InputToken: wavax, OutputToken: usdc},
			InputAmount:   big.NewInt(1),
		},
	})
	assert.NoError(t, err)
	assert.True(t, quotes[0] == nil)
}
