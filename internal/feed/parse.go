package feed

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/arbcore/detector/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// parseHexBig parses a "0x..." quantity into a *big.Int, treating an empty
// string as zero.
func parseHexBig(s string) (*big.Int, error) {
	if s == "" || s == "0x" {
		return big.NewInt(0), nil
	}
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

// parseHexUint64 parses a "0x..." quantity into a uint64. The chain
// identifier is parsed this way and carried verbatim onto the RawTx,
// including 0x0 -- zero is never coerced to a default (spec §4.1, §6).
func parseHexUint64(s string) (uint64, error) {
	v, err := parseHexBig(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantity %q overflows uint64", s)
	}
	return v.Uint64(), nil
}

// toRawTx converts a decoded subscription-push payload into the immutable
// domain type C1 hands to C2.
func toRawTx(txHash string, c txContentsWire) (*domain.RawPendingTransaction, error) {
	value, err := parseHexBig(c.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	gas, err := parseHexUint64(c.Gas)
	if err != nil {
		return nil, fmt.Errorf("gas: %w", err)
	}
	nonce, err := parseHexUint64(c.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	chainID, err := parseHexUint64(c.ChainID)
	if err != nil {
		return nil, fmt.Errorf("chainId: %w", err)
	}

	tx := &domain.RawPendingTransaction{
		Hash:     common.HexToHash(txHash),
		From:     common.HexToAddress(c.From),
		Value:    value,
		GasLimit: gas,
		Nonce:    nonce,
		ChainID:  chainID,
	}

	if c.To != "" {
		to := common.HexToAddress(c.To)
		tx.To = &to
	}

	if c.Input != "" {
		data := strings.TrimPrefix(c.Input, "0x")
		if len(data)%2 != 0 {
			data = "0" + data
		}
		b, err := hex.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		tx.Data = b
	}

	if c.MaxFee != "" || c.MaxTip != "" {
		if tx.GasFeeCap, err = parseHexBig(c.MaxFee); err != nil {
			return nil, fmt.Errorf("maxFeePerGas: %w", err)
		}
		if tx.GasTipCap, err = parseHexBig(c.MaxTip); err != nil {
			return nil, fmt.Errorf("maxPriorityFeePerGas: %w", err)
		}
	} else if c.GasPrice != "" {
		if tx.GasPrice, err = parseHexBig(c.GasPrice); err != nil {
			return nil, fmt.Errorf("gasPrice: %w", err)
		}
	}

	return tx, nil
}
