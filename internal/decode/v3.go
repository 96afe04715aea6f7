package decode

import (
	"fmt"
	"math/big"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// v3Decoder handles the Uniswap-V3-family selectors (spec §4.2 V3 rules).
type v3Decoder struct{}

// ExactInputSingle / ExactOutputSingle / Router02's ExactInputSingle
// structs are entirely static fields, so a single dynamic tuple parameter
// ABI-encodes identically to the same fields written as flat top-level
// arguments -- no offset indirection is needed to decode them.
var v3SingleWithDeadline = args("address", "address", "uint24", "address", "uint256", "uint256", "uint256", "uint160")
// tokenIn, tokenOut, fee, recipient, deadline, amountIn, amountOutMinimum, sqrtPriceLimitX96

var v3Router02SingleNoDeadline = args("address", "address", "uint24", "address", "uint256", "uint256", "uint160")
// tokenIn, tokenOut, fee, recipient, amountIn, amountOutMinimum, sqrtPriceLimitX96

var v3SingleExactOutput = args("address", "address", "uint24", "address", "uint256", "uint256", "uint256", "uint160")
// tokenIn, tokenOut, fee, recipient, deadline, amountOut, amountInMaximum, sqrtPriceLimitX96

const wordSize = 32

func (v3Decoder) Decode(rawTx *domain.RawPendingTransaction, chain uint64, router [20]byte) (*domain.SwapIntent, error) {
	sel := rawTx.Selector()
	switch sel {
	case SelV3ExactInputSingle:
		return v3Decoder{}.decodeSingle(rawTx, v3SingleWithDeadline, true, false, router)
	case SelV3ExactOutputSingle:
		return v3Decoder{}.decodeSingle(rawTx, v3SingleExactOutput, true, true, router)
	case SelV3Router02ExactInputSingle:
		return v3Decoder{}.decodeSingle(rawTx, v3Router02SingleNoDeadline, false, false, router)
	case SelV3ExactInput:
		return v3Decoder{}.decodePackedPath(rawTx, false, router)
	}
	return nil, nil
}

func (v3Decoder) decodeSingle(rawTx *domain.RawPendingTransaction, a interface{ Unpack([]byte) ([]interface{}, error) }, hasDeadline, isExactOutput bool, router [20]byte) (*domain.SwapIntent, error) {
	if len(rawTx.Data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	vals, err := a.Unpack(rawTx.Data[4:])
	if err != nil {
		return nil, err
	}

	tokenIn, ok := vals[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("tokenIn: unexpected type")
	}
	tokenOut, ok := vals[1].(common.Address)
	if !ok {
		return nil, fmt.Errorf("tokenOut: unexpected type")
	}
	fee, ok := vals[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("fee: unexpected type")
	}

	idx := 4 // skip recipient at vals[3]
	var deadline int64
	if hasDeadline {
		d, ok := vals[idx].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("deadline: unexpected type")
		}
		deadline = d.Int64()
		idx++
	} else {
		// Router02 has no deadline in the struct: synthesize now+1h (spec §4.2).
		deadline = time.Now().Add(time.Hour).Unix()
	}

	amount1, ok := vals[idx].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amount: unexpected type")
	}
	amount2, ok := vals[idx+1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("amount: unexpected type")
	}

	var amountIn, expectedOut *big.Int
	if isExactOutput {
		expectedOut, amountIn = amount1, amount2 // (amountOut, amountInMaximum)
	} else {
		amountIn, expectedOut = amount1, amount2 // (amountIn, amountOutMinimum)
	}

	feeTier := uint32(fee.Uint64())

	return &domain.SwapIntent{
		SourceTxHash:      rawTx.Hash,
		Protocol:          domain.ProtocolUniswapV3,
		Router:            common.Address(router),
		Sender:            rawTx.From,
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Path:              []common.Address{tokenIn, tokenOut},
		AmountIn:          amountIn,
		ExpectedAmountOut: expectedOut,
		IsExactOutput:     isExactOutput,
		FeeTier:           &feeTier,
		FeeTiers:          []uint32{feeTier},
		Deadline:          deadline,
		GasPrice:          rawTx.GasPrice,
		GasFeeCap:         rawTx.GasFeeCap,
		GasTipCap:         rawTx.GasTipCap,
		Nonce:             rawTx.Nonce,
		ChainID:           rawTx.ChainID,
	}, nil
}

// decodePackedPath decodes ExactInputParams{bytes path; address recipient;
// uint256 deadline; uint256 amountIn; uint256 amountOutMinimum} -- the
// struct has a dynamic field, so it is encoded as an offset-indirected
// tuple rather than flat concatenation; decoded by direct offset
// arithmetic per the standard ABI layout (spec §4.2, §GLOSSARY packed path).
func (v3Decoder) decodePackedPath(rawTx *domain.RawPendingTransaction, isExactOutput bool, router [20]byte) (*domain.SwapIntent, error) {
	data := rawTx.Data
	if len(data) < 4+wordSize {
		return nil, fmt.Errorf("short calldata")
	}
	body := data[4:]
	if len(body) < wordSize {
		return nil, fmt.Errorf("short calldata: missing tuple offset")
	}
	tupleOffset := new(big.Int).SetBytes(body[0:wordSize]).Int64()
	if tupleOffset < 0 || int64(len(body)) < tupleOffset+5*wordSize {
		return nil, fmt.Errorf("malformed tuple offset")
	}
	tuple := body[tupleOffset:]

	pathOffset := new(big.Int).SetBytes(tuple[0:wordSize]).Int64()
	recipientWord := tuple[wordSize : 2*wordSize]
	deadline := new(big.Int).SetBytes(tuple[2*wordSize : 3*wordSize]).Int64()
	amount1 := new(big.Int).SetBytes(tuple[3*wordSize : 4*wordSize])
	amount2 := new(big.Int).SetBytes(tuple[4*wordSize : 5*wordSize])
	_ = recipientWord

	if pathOffset < 0 || int64(len(tuple)) < pathOffset+wordSize {
		return nil, fmt.Errorf("malformed path offset")
	}
	pathLen := new(big.Int).SetBytes(tuple[pathOffset : pathOffset+wordSize]).Int64()
	pathStart := pathOffset + wordSize
	if pathLen < 0 || int64(len(tuple)) < pathStart+pathLen {
		return nil, fmt.Errorf("malformed path data")
	}
	packed := tuple[pathStart : pathStart+pathLen]

	// Packed layout: addr(20) ‖ fee(3) ‖ addr(20) ‖ fee(3) ‖ ... ‖ addr(20);
	// strictly 20 + (3+20)*k bytes for k hops.
	if len(packed) < 20 || (len(packed)-20)%23 != 0 {
		return nil, fmt.Errorf("malformed packed path: %d bytes", len(packed))
	}
	hops := (len(packed) - 20) / 23
	path := make([]common.Address, 0, hops+1)
	fees := make([]uint32, 0, hops)
	path = append(path, common.BytesToAddress(packed[0:20]))
	pos := 20
	for i := 0; i < hops; i++ {
		fee := uint32(packed[pos])<<16 | uint32(packed[pos+1])<<8 | uint32(packed[pos+2])
		fees = append(fees, fee)
		pos += 3
		path = append(path, common.BytesToAddress(packed[pos:pos+20]))
		pos += 20
	}

	var amountIn, expectedOut *big.Int
	if isExactOutput {
		expectedOut, amountIn = amount1, amount2
	} else {
		amountIn, expectedOut = amount1, amount2
	}

	return &domain.SwapIntent{
		SourceTxHash:      rawTx.Hash,
		Protocol:          domain.ProtocolUniswapV3,
		Router:            common.Address(router),
		Sender:            rawTx.From,
		TokenIn:           path[0],
		TokenOut:          path[len(path)-1],
		Path:              path,
		AmountIn:          amountIn,
		ExpectedAmountOut: expectedOut,
		IsExactOutput:     isExactOutput,
		FeeTiers:          fees,
		Deadline:          deadline,
		GasPrice:          rawTx.GasPrice,
		GasFeeCap:         rawTx.GasFeeCap,
		GasTipCap:         rawTx.GasTipCap,
		Nonce:             rawTx.Nonce,
		ChainID:           rawTx.ChainID,
	}, nil
}
