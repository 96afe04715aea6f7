package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol tags the DEX family a swap intent was decoded from.
type Protocol string

const (
	ProtocolUniswapV2 Protocol = "uniswapV2"
	ProtocolUniswapV3 Protocol = "uniswapV3"
	ProtocolCurve     Protocol = "curve"
	ProtocolOneInch   Protocol = "oneInch"
)

// SwapIntent is the normalized output of a protocol decoder (C3). All
// fields are set once at construction and never mutated afterward — the
// intent is a value, shared by copy or reference but never written to.
type SwapIntent struct {
	SourceTxHash      common.Hash
	Protocol          Protocol
	Router            common.Address
	Sender            common.Address
	TokenIn           common.Address
	TokenOut          common.Address
	Path              []common.Address // len >= 2
	AmountIn          *big.Int
	ExpectedAmountOut *big.Int // minAmountOut (exact-input) or amountOut (exact-output)
	IsExactOutput     bool
	FeeTier           *uint32 // only set for V3-family hops; nil otherwise
	FeeTiers          []uint32 // per-hop fees for multi-hop V3 packed paths
	Deadline          int64   // unix seconds, synthesized when absent on the wire
	GasPrice          *big.Int
	GasFeeCap         *big.Int
	GasTipCap         *big.Int
	Nonce             uint64
	ChainID           uint64
	FirstSeenAt       time.Time
}
