package decode

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/logging"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// UnknownTokenSentinel is emitted as tokenOut when 1inch's unoswap calldata
// gives no way to recover the destination token (spec §4.2, §9 Open
// Questions). Downstream consumers must treat it as "unknown" and avoid
// building arbitrage edges across it.
var UnknownTokenSentinel = common.HexToAddress("0x000000000000000000000000000000deadbeef")

// oneInchDecoder handles the 1inch AggregationRouter "swap" and "unoswap"
// selectors (spec §4.2 1inch rules).
type oneInchDecoder struct {
	log logging.Logger
}

func NewOneInchDecoder(log logging.Logger) Decoder {
	if log == nil {
		log = &logging.Nop{}
	}
	return &oneInchDecoder{log: log}
}

// swapDescriptionType mirrors 1inch's SwapDescription{srcToken, dstToken,
// srcReceiver, dstReceiver, amount, minReturnAmount, flags}.
var swapDescriptionType = tupleType(
	[2]string{"srcToken", "address"},
	[2]string{"dstToken", "address"},
	[2]string{"srcReceiver", "address"},
	[2]string{"dstReceiver", "address"},
	[2]string{"amount", "uint256"},
	[2]string{"minReturnAmount", "uint256"},
	[2]string{"flags", "uint256"},
)

var swapArgs = abi.Arguments{
	{Type: mustType("address")},
	{Type: swapDescriptionType},
	{Type: mustType("bytes")},
	{Type: mustType("bytes")},
}
var unoswapArgs = args("address", "uint256", "uint256", "uint256[]")

func (d *oneInchDecoder) Decode(rawTx *domain.RawPendingTransaction, chain uint64, router [20]byte) (*domain.SwapIntent, error) {
	switch rawTx.Selector() {
	case SelOneInchSwap:
		return d.decodeSwap(rawTx, common.Address(router))
	case SelOneInchUnoswap:
		return d.decodeUnoswap(rawTx, common.Address(router))
	}
	return nil, nil
}

func (d *oneInchDecoder) decodeSwap(rawTx *domain.RawPendingTransaction, router common.Address) (*domain.SwapIntent, error) {
	vals, err := unpackAfterSelector(swapArgs, rawTx.Data)
	if err != nil {
		return nil, err
	}
	// SwapDescription unpacks as a dynamically-built struct (abi.NewType
	// constructs a reflect.StructOf for every tuple type), so its fields
	// are read positionally by reflection rather than type-asserted.
	descVal := reflect.ValueOf(vals[1])
	if descVal.Kind() != reflect.Struct || descVal.NumField() < 6 {
		return nil, fmt.Errorf("desc: unexpected type %T", vals[1])
	}
	srcToken, ok := descVal.Field(0).Interface().(common.Address)
	if !ok {
		return nil, fmt.Errorf("srcToken: unexpected type")
	}
	dstToken, ok := descVal.Field(1).Interface().(common.Address)
	if !ok {
		return nil, fmt.Errorf("dstToken: unexpected type")
	}
	amount, ok := descVal.Field(4).Interface().(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amount: unexpected type")
	}
	minReturn, ok := descVal.Field(5).Interface().(*big.Int)
	if !ok {
		return nil, fmt.Errorf("minReturnAmount: unexpected type")
	}

	return &domain.SwapIntent{
		SourceTxHash:      rawTx.Hash,
		Protocol:          domain.ProtocolOneInch,
		Router:            router,
		Sender:            rawTx.From,
		TokenIn:           srcToken,
		TokenOut:          dstToken,
		Path:              []common.Address{srcToken, dstToken},
		AmountIn:          amount,
		ExpectedAmountOut: minReturn,
		IsExactOutput:     false,
		GasPrice:          rawTx.GasPrice,
		GasFeeCap:         rawTx.GasFeeCap,
		GasTipCap:         rawTx.GasTipCap,
		Nonce:             rawTx.Nonce,
		ChainID:           rawTx.ChainID,
	}, nil
}

func (d *oneInchDecoder) decodeUnoswap(rawTx *domain.RawPendingTransaction, router common.Address) (*domain.SwapIntent, error) {
	vals, err := unpackAfterSelector(unoswapArgs, rawTx.Data)
	if err != nil {
		return nil, err
	}
	srcToken, ok := vals[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("srcToken: unexpected type")
	}
	amount, ok := vals[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amount: unexpected type")
	}
	minReturn, ok := vals[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("minReturn: unexpected type")
	}

	d.log.Debugf("1inch unoswap: dstToken absent from calldata, using sentinel %s (tx %s)", UnknownTokenSentinel.Hex(), rawTx.Hash.Hex())

	return &domain.SwapIntent{
		SourceTxHash:      rawTx.Hash,
		Protocol:          domain.ProtocolOneInch,
		Router:            router,
		Sender:            rawTx.From,
		TokenIn:           srcToken,
		TokenOut:          UnknownTokenSentinel,
		Path:              []common.Address{srcToken, UnknownTokenSentinel},
		AmountIn:          amount,
		ExpectedAmountOut: minReturn,
		IsExactOutput:     false,
		GasPrice:          rawTx.GasPrice,
		GasFeeCap:         rawTx.GasFeeCap,
		GasTipCap:         rawTx.GasTipCap,
		Nonce:             rawTx.Nonce,
		ChainID:           rawTx.ChainID,
	}, nil
}
