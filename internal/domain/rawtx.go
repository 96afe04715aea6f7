// Package domain holds the value types shared across the detection and
// simulation pipelines: raw pending transactions, swap intents, provider
// health/metrics, and simulation requests/results (spec §3).
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RawPendingTransaction is the wire form C1 hands to C2. Immutable once
// constructed: nothing downstream may mutate a field after the feed client
// emits it.
type RawPendingTransaction struct {
	Hash      common.Hash
	From      common.Address
	To        *common.Address // nil for contract creation
	Value     *big.Int
	Data      []byte
	GasLimit  uint64
	GasPrice  *big.Int // legacy gas price, nil when using fee-market fields
	GasFeeCap *big.Int // EIP-1559 max fee, nil for legacy txs
	GasTipCap *big.Int // EIP-1559 max priority fee, nil for legacy txs
	Nonce     uint64
	ChainID   uint64
}

// Selector returns the first four bytes of calldata, or the zero selector
// if the calldata is shorter than four bytes.
func (t *RawPendingTransaction) Selector() [4]byte {
	var sel [4]byte
	if len(t.Data) < 4 {
		return sel
	}
	copy(sel[:], t.Data[:4])
	return sel
}
