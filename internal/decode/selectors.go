// Package decode implements C2 (the selector-dispatched decoder registry)
// and C3 (the per-protocol decoders) described in spec §4.2. Grounded on
// the teacher's pkg/contractclient ABI-decode-by-registry contract
// (DecodeTransaction/Abi()/ParseReceipt) and its own accounts/abi.Pack
// usage in blackhole.go's Mint/Unstake paths, generalized here to
// unpack-only, selector-indexed dispatch.
package decode

import "github.com/arbcore/detector/internal/domain"

// Selector is the first four bytes of calldata.
type Selector [4]byte

// The authoritative selector table (spec §4.2) -- bit-exact; any change is
// a protocol break.
var (
	SelV2SwapExactTokensForTokens = Selector{0x38, 0xed, 0x17, 0x39}
	SelV2SwapExactETHForTokens    = Selector{0x7f, 0xf3, 0x6a, 0xb5}
	SelV2SwapExactTokensForETH    = Selector{0x18, 0xcb, 0xaf, 0xe5}
	SelV2SwapTokensForExactTokens = Selector{0x88, 0x03, 0xdb, 0xee}
	SelV2SwapETHForExactTokens    = Selector{0xfb, 0x3b, 0xdb, 0x41}
	SelV2SwapTokensForExactETH    = Selector{0x4a, 0x25, 0xd9, 0x4a}
	SelV2FeeOnTransfer            = Selector{0x5c, 0x11, 0xd7, 0x95} // same layout as SwapExactTokensForTokens

	SelV3ExactInputSingle      = Selector{0x41, 0x4b, 0xf3, 0x89} // with deadline
	SelV3ExactOutputSingle     = Selector{0xdb, 0x3e, 0x21, 0x98}
	SelV3ExactInput            = Selector{0xc0, 0x4b, 0x8d, 0x59} // packed path
	SelV3Router02ExactInputSingle = Selector{0x04, 0xe4, 0x5a, 0xaf} // no deadline

	SelCurveExchange           = Selector{0x3d, 0xf0, 0x21, 0x24}
	SelCurveExchangeUnderlying = Selector{0xa6, 0x41, 0x7e, 0xd6}
	SelCurveCryptoExchange     = Selector{0x5b, 0x41, 0xb9, 0x08}
	SelCurveRouterNGExchange   = Selector{0x37, 0xed, 0x3a, 0x7a}

	SelOneInchSwap     = Selector{0x12, 0xaa, 0x3c, 0xaf}
	SelOneInchUnoswap  = Selector{0x05, 0x02, 0xb1, 0xc5}
)

// Decoder is implemented by each protocol family in C3.
type Decoder interface {
	// Decode attempts to produce a SwapIntent from rawTx's calldata.
	// Returns (nil, nil) when the selector is not one this decoder handles
	// or the transaction cannot be normalized (e.g. an unknown Curve pool),
	// and (nil, err) for malformed calldata. Decoders never panic.
	Decode(rawTx *domain.RawPendingTransaction, chain uint64, router [20]byte) (*domain.SwapIntent, error)
}
