package decode

import (
	"fmt"
	"math/big"

	"github.com/arbcore/detector/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// v2Decoder handles every Uniswap-V2-like selector (spec §4.2 V2 rules).
type v2Decoder struct{}

var v2ExactTokensIn = args("uint256", "uint256", "address[]", "address", "uint256")
var v2ExactETHIn = args("uint256", "address[]", "address", "uint256")         // amountOutMin, path, to, deadline
var v2ExactOutTokens = args("uint256", "uint256", "address[]", "address", "uint256")
var v2ExactOutETHIn = args("uint256", "address[]", "address", "uint256") // amountOut, path, to, deadline (ETH cap = value)

func (v2Decoder) Decode(rawTx *domain.RawPendingTransaction, chain uint64, router [20]byte) (*domain.SwapIntent, error) {
	sel := rawTx.Selector()
	switch sel {
	case SelV2SwapExactTokensForTokens, SelV2FeeOnTransfer:
		return v2Decoder{}.decodeExactIn(rawTx, v2ExactTokensIn, router)
	case SelV2SwapExactETHForTokens:
		return v2Decoder{}.decodeExactInETH(rawTx, router)
	case SelV2SwapExactTokensForETH:
		return v2Decoder{}.decodeExactIn(rawTx, v2ExactTokensIn, router)
	case SelV2SwapTokensForExactTokens:
		return v2Decoder{}.decodeExactOut(rawTx, v2ExactOutTokens, router)
	case SelV2SwapETHForExactTokens:
		return v2Decoder{}.decodeExactOutETH(rawTx, router)
	case SelV2SwapTokensForExactETH:
		return v2Decoder{}.decodeExactOut(rawTx, v2ExactOutTokens, router)
	}
	return nil, nil
}

func pathToAddresses(raw interface{}) ([]common.Address, error) {
	addrs, ok := raw.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("path: unexpected decoded type %T", raw)
	}
	if len(addrs) < 2 {
		return nil, fmt.Errorf("path too short: %d", len(addrs))
	}
	return addrs, nil
}

func (v2Decoder) decodeExactIn(rawTx *domain.RawPendingTransaction, a interface{ Unpack([]byte) ([]interface{}, error) }, router [20]byte) (*domain.SwapIntent, error) {
	if len(rawTx.Data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	vals, err := a.Unpack(rawTx.Data[4:])
	if err != nil {
		return nil, err
	}
	amountIn, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amountIn: unexpected type")
	}
	amountOutMin, ok := vals[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amountOutMin: unexpected type")
	}
	path, err := pathToAddresses(vals[2])
	if err != nil {
		return nil, err
	}
	deadline, ok := vals[4].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("deadline: unexpected type")
	}

	return buildV2Intent(rawTx, path, amountIn, amountOutMin, false, deadline.Int64(), router), nil
}

func (v2Decoder) decodeExactInETH(rawTx *domain.RawPendingTransaction, router [20]byte) (*domain.SwapIntent, error) {
	vals, err := unpackAfterSelector(v2ExactETHIn, rawTx.Data)
	if err != nil {
		return nil, err
	}
	amountOutMin, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amountOutMin: unexpected type")
	}
	path, err := pathToAddresses(vals[1])
	if err != nil {
		return nil, err
	}
	deadline, ok := vals[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("deadline: unexpected type")
	}
	amountIn := rawTx.Value // ETH-in: amountIn is the tx value, not calldata (spec §4.2)
	if amountIn == nil {
		amountIn = big.NewInt(0)
	}
	return buildV2Intent(rawTx, path, amountIn, amountOutMin, false, deadline.Int64(), router), nil
}

func (v2Decoder) decodeExactOut(rawTx *domain.RawPendingTransaction, a interface{ Unpack([]byte) ([]interface{}, error) }, router [20]byte) (*domain.SwapIntent, error) {
	if len(rawTx.Data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	vals, err := a.Unpack(rawTx.Data[4:])
	if err != nil {
		return nil, err
	}
	amountOut, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amountOut: unexpected type")
	}
	amountInMax, ok := vals[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amountInMax: unexpected type")
	}
	path, err := pathToAddresses(vals[2])
	if err != nil {
		return nil, err
	}
	deadline, ok := vals[4].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("deadline: unexpected type")
	}
	return buildV2Intent(rawTx, path, amountInMax, amountOut, true, deadline.Int64(), router), nil
}

func (v2Decoder) decodeExactOutETH(rawTx *domain.RawPendingTransaction, router [20]byte) (*domain.SwapIntent, error) {
	vals, err := unpackAfterSelector(v2ExactOutETHIn, rawTx.Data)
	if err != nil {
		return nil, err
	}
	amountOut, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amountOut: unexpected type")
	}
	path, err := pathToAddresses(vals[1])
	if err != nil {
		return nil, err
	}
	deadline, ok := vals[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("deadline: unexpected type")
	}
	amountIn := rawTx.Value
	if amountIn == nil {
		amountIn = big.NewInt(0)
	}
	return buildV2Intent(rawTx, path, amountIn, amountOut, true, deadline.Int64(), router), nil
}

func buildV2Intent(rawTx *domain.RawPendingTransaction, path []common.Address, amountIn, expectedOut *big.Int, isExactOutput bool, deadline int64, router [20]byte) *domain.SwapIntent {
	return &domain.SwapIntent{
		SourceTxHash:      rawTx.Hash,
		Protocol:          domain.ProtocolUniswapV2,
		Router:            common.Address(router),
		Sender:            rawTx.From,
		TokenIn:           path[0],
		TokenOut:          path[len(path)-1],
		Path:              path,
		AmountIn:          amountIn,
		ExpectedAmountOut: expectedOut,
		IsExactOutput:     isExactOutput,
		Deadline:          deadline,
		GasPrice:          rawTx.GasPrice,
		GasFeeCap:         rawTx.GasFeeCap,
		GasTipCap:         rawTx.GasTipCap,
		Nonce:             rawTx.Nonce,
		ChainID:           rawTx.ChainID,
	}
}
