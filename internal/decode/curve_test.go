package decode

import (
	"math/big"
	"testing"

	"github.com/arbcore/detector/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func staticLookup(tokens map[int64]common.Address) PoolTokenLookup {
	return func(chain uint64, pool common.Address, index int64) (common.Address, bool) {
		t, ok := tokens[index]
		return t, ok
	}
}

func TestCurveDecoder_StableExchange(t *testing.T) {
	usdc := common.HexToAddress("0x1111")
	dai := common.HexToAddress("0x2222")
	pool := common.HexToAddress("0x3333")

	d := &curveDecoder{lookup: staticLookup(map[int64]common.Address{0: usdc, 1: dai})}
	body, err := curveExchangeArgs.Pack(big.NewInt(0), big.NewInt(1), big.NewInt(1_000_000), big.NewInt(990_000))
	require.NoError(t, err)
	rawTx := rawTxWithData(SelCurveExchange, body)
	rawTx.To = &pool

	intent, err := d.Decode(rawTx, 1, [20]byte(pool))
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, domain.ProtocolCurve, intent.Protocol)
	require.Equal(t, usdc, intent.TokenIn)
	require.Equal(t, dai, intent.TokenOut)
}

func TestCurveDecoder_UnknownPoolIsDropped(t *testing.T) {
	pool := common.HexToAddress("0x3333")
	d := &curveDecoder{lookup: staticLookup(map[int64]common.Address{})}
	body, err := curveExchangeArgs.Pack(big.NewInt(0), big.NewInt(1), big.NewInt(1_000_000), big.NewInt(990_000))
	require.NoError(t, err)
	rawTx := rawTxWithData(SelCurveExchange, body)
	rawTx.To = &pool

	intent, err := d.Decode(rawTx, 1, [20]byte(pool))
	require.NoError(t, err)
	require.Nil(t, intent)
}

func TestCurveDecoder_CryptoExchange(t *testing.T) {
	weth := common.HexToAddress("0x4444")
	usdt := common.HexToAddress("0x5555")
	pool := common.HexToAddress("0x6666")

	d := &curveDecoder{lookup: staticLookup(map[int64]common.Address{0: weth, 1: usdt})}
	body, err := curveCryptoExchangeArgs.Pack(big.NewInt(0), big.NewInt(1), big.NewInt(2_000_000), big.NewInt(1_900_000))
	require.NoError(t, err)
	rawTx := rawTxWithData(SelCurveCryptoExchange, body)
	rawTx.To = &pool

	intent, err := d.Decode(rawTx, 1, [20]byte(pool))
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, weth, intent.TokenIn)
	require.Equal(t, usdt, intent.TokenOut)
}

func TestCurveDecoder_RouterNG(t *testing.T) {
	tokenIn := common.HexToAddress("0x7777")
	tokenOut := common.HexToAddress("0x8888")

	var route [11]common.Address
	route[0] = tokenIn
	route[1] = tokenOut // final non-zero entry

	var swapParams [5][5]*big.Int
	for i := range swapParams {
		for j := range swapParams[i] {
			swapParams[i][j] = big.NewInt(0)
		}
	}
	var pools [5]common.Address

	body, err := curveRouterNGArgs.Pack(route, swapParams, big.NewInt(1_000_000), big.NewInt(990_000), pools)
	require.NoError(t, err)
	rawTx := rawTxWithData(SelCurveRouterNGExchange, body)

	d := &curveDecoder{}
	intent, err := d.decodeRouterNG(rawTx, 1)
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, tokenIn, intent.TokenIn)
	require.Equal(t, tokenOut, intent.TokenOut)
}
