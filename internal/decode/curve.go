package decode

import (
	"fmt"
	"math/big"

	"github.com/arbcore/detector/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// PoolTokenLookup resolves a Curve pool's coin index to its token address.
// Curve pools carry no token addresses in calldata -- only integer indices
// into the pool's own coin array -- so the decoder needs an out-of-band
// (chain, pool, index) -> token mapping to normalize a SwapIntent at all.
type PoolTokenLookup func(chain uint64, pool common.Address, index int64) (common.Address, bool)

// curveDecoder handles Curve stable/crypto pool "exchange" calls and the
// Router-NG multi-hop "exchange" call (spec §4.2 Curve rules). Unlike V2/V3,
// an unknown pool means the decoder has no way to recover token identities
// and must drop the transaction rather than emit a partially-populated
// intent (resolved Open Question, see DESIGN.md).
type curveDecoder struct {
	lookup PoolTokenLookup
}

func NewCurveDecoder(lookup PoolTokenLookup) Decoder {
	return &curveDecoder{lookup: lookup}
}

var curveExchangeArgs = args("int128", "int128", "uint256", "uint256") // i, j, dx, min_dy
var curveCryptoExchangeArgs = args("uint256", "uint256", "uint256", "uint256") // i, j, dx, min_dy (uint256 indices)

func (d *curveDecoder) Decode(rawTx *domain.RawPendingTransaction, chain uint64, router [20]byte) (*domain.SwapIntent, error) {
	switch rawTx.Selector() {
	case SelCurveExchange, SelCurveExchangeUnderlying:
		return d.decodeStableExchange(rawTx, chain, common.Address(router))
	case SelCurveCryptoExchange:
		return d.decodeCryptoExchange(rawTx, chain, common.Address(router))
	case SelCurveRouterNGExchange:
		intent, err := d.decodeRouterNG(rawTx, chain)
		if intent != nil {
			intent.Router = common.Address(router)
		}
		return intent, err
	}
	return nil, nil
}

func (d *curveDecoder) decodeStableExchange(rawTx *domain.RawPendingTransaction, chain uint64, pool common.Address) (*domain.SwapIntent, error) {
	vals, err := unpackAfterSelector(curveExchangeArgs, rawTx.Data)
	if err != nil {
		return nil, err
	}
	i, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("i: unexpected type")
	}
	j, ok := vals[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("j: unexpected type")
	}
	dx, ok := vals[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("dx: unexpected type")
	}
	minDy, ok := vals[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("min_dy: unexpected type")
	}

	tokenIn, known := d.lookup(chain, pool, i.Int64())
	if !known {
		return nil, nil // unknown pool: drop (spec Open Question resolution)
	}
	tokenOut, known := d.lookup(chain, pool, j.Int64())
	if !known {
		return nil, nil
	}

	return d.buildIntent(rawTx, pool, []common.Address{tokenIn, tokenOut}, dx, minDy), nil
}

func (d *curveDecoder) decodeCryptoExchange(rawTx *domain.RawPendingTransaction, chain uint64, pool common.Address) (*domain.SwapIntent, error) {
	vals, err := unpackAfterSelector(curveCryptoExchangeArgs, rawTx.Data)
	if err != nil {
		return nil, err
	}
	i, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("i: unexpected type")
	}
	j, ok := vals[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("j: unexpected type")
	}
	dx, ok := vals[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("dx: unexpected type")
	}
	minDy, ok := vals[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("min_dy: unexpected type")
	}

	tokenIn, known := d.lookup(chain, pool, i.Int64())
	if !known {
		return nil, nil
	}
	tokenOut, known := d.lookup(chain, pool, j.Int64())
	if !known {
		return nil, nil
	}

	return d.buildIntent(rawTx, pool, []common.Address{tokenIn, tokenOut}, dx, minDy), nil
}

// curveRouterNGArgs: (address[11] route, uint256[5][5] swapParams, uint256 amount,
// uint256 expected, address[5] pools). Only route[0]/route[last-nonzero] (token
// in/out), amount and expected are needed to build a SwapIntent; the
// intermediate hop pools are opaque to this decoder.
var curveRouterNGArgs = args("address[11]", "uint256[5][5]", "uint256", "uint256", "address[5]")

func (d *curveDecoder) decodeRouterNG(rawTx *domain.RawPendingTransaction, chain uint64) (*domain.SwapIntent, error) {
	vals, err := unpackAfterSelector(curveRouterNGArgs, rawTx.Data)
	if err != nil {
		return nil, err
	}
	route, ok := vals[0].([11]common.Address)
	if !ok {
		return nil, fmt.Errorf("route: unexpected type")
	}
	amount, ok := vals[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amount: unexpected type")
	}
	expected, ok := vals[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected: unexpected type")
	}

	var zero common.Address
	if route[0] == zero {
		return nil, nil
	}
	tokenIn := route[0]
	tokenOut := zero
	for idx := len(route) - 1; idx >= 0; idx-- {
		if route[idx] != zero {
			tokenOut = route[idx]
			break
		}
	}
	if tokenOut == zero {
		return nil, nil
	}

	return d.buildIntent(rawTx, zero, []common.Address{tokenIn, tokenOut}, amount, expected), nil
}

func (d *curveDecoder) buildIntent(rawTx *domain.RawPendingTransaction, router common.Address, path []common.Address, amountIn, minOut *big.Int) *domain.SwapIntent {
	return &domain.SwapIntent{
		SourceTxHash:      rawTx.Hash,
		Protocol:          domain.ProtocolCurve,
		Router:            router,
		Sender:            rawTx.From,
		TokenIn:           path[0],
		TokenOut:          path[len(path)-1],
		Path:              path,
		AmountIn:          amountIn,
		ExpectedAmountOut: minOut,
		IsExactOutput:     false,
		GasPrice:          rawTx.GasPrice,
		GasFeeCap:         rawTx.GasFeeCap,
		GasTipCap:         rawTx.GasTipCap,
		Nonce:             rawTx.Nonce,
		ChainID:           rawTx.ChainID,
	}
}
