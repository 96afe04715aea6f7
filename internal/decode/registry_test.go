package decode

import (
	"math/big"
	"testing"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/logging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestRegistry_V2ToleratesUnknownRouter(t *testing.T) {
	r := NewRegistry(staticLookup(nil), NewOneInchDecoder(&logging.Nop{}))

	path := []common.Address{common.HexToAddress("0x1111"), common.HexToAddress("0x2222")}
	body, err := v2ExactTokensIn.Pack(big.NewInt(1_000_000), big.NewInt(990_000), path, common.HexToAddress("0x3333"), big.NewInt(9_999_999_999))
	require.NoError(t, err)
	rawTx := rawTxWithData(SelV2SwapExactTokensForTokens, body)
	to := common.HexToAddress("0xdeadbeef") // not in any router table
	rawTx.To = &to

	now := time.Now()
	intent, err := r.Decode(rawTx, 1, now)
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, domain.ProtocolUniswapV2, intent.Protocol)
	require.Equal(t, to, intent.Router)
	require.Equal(t, now, intent.FirstSeenAt)
}

func TestRegistry_CurveRequiresKnownRouter(t *testing.T) {
	usdc := common.HexToAddress("0x1111")
	dai := common.HexToAddress("0x2222")
	lookup := staticLookup(map[int64]common.Address{0: usdc, 1: dai})
	r := NewRegistry(lookup, NewOneInchDecoder(&logging.Nop{}))

	body, err := curveExchangeArgs.Pack(big.NewInt(0), big.NewInt(1), big.NewInt(1_000_000), big.NewInt(990_000))
	require.NoError(t, err)
	rawTx := rawTxWithData(SelCurveExchange, body)
	pool := common.HexToAddress("0x3333")
	rawTx.To = &pool

	intent, err := r.Decode(rawTx, 1, time.Now())
	require.NoError(t, err)
	require.Nil(t, intent, "unregistered router must drop the Curve tx even though the selector matches")

	r.AddRouter(1, pool, domain.ProtocolCurve)
	intent, err = r.Decode(rawTx, 1, time.Now())
	require.NoError(t, err)
	require.NotNil(t, intent)
}

func TestRegistry_UnknownSelectorReturnsNilNil(t *testing.T) {
	r := NewRegistry(staticLookup(nil), NewOneInchDecoder(&logging.Nop{}))
	rawTx := rawTxWithData(Selector{0xff, 0xff, 0xff, 0xff}, nil)
	intent, err := r.Decode(rawTx, 1, time.Now())
	require.NoError(t, err)
	require.Nil(t, intent)
}

func TestRegistry_RouterLookupIsCaseInsensitive(t *testing.T) {
	usdc := common.HexToAddress("0x1111")
	dai := common.HexToAddress("0x2222")
	lookup := staticLookup(map[int64]common.Address{0: usdc, 1: dai})
	r := NewRegistry(lookup, NewOneInchDecoder(&logging.Nop{}))
	pool := common.HexToAddress("0xAbCd000000000000000000000000000000EF01")
	r.AddRouter(1, pool, domain.ProtocolCurve)

	body, err := curveExchangeArgs.Pack(big.NewInt(0), big.NewInt(1), big.NewInt(1_000_000), big.NewInt(990_000))
	require.NoError(t, err)
	rawTx := rawTxWithData(SelCurveExchange, body)
	to := common.HexToAddress("0xabcd000000000000000000000000000000ef01")
	rawTx.To = &to

	intent, err := r.Decode(rawTx, 1, time.Now())
	require.NoError(t, err)
	require.NotNil(t, intent)
}
