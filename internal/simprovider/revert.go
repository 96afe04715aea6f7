package simprovider

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var panicCodeDescriptions = map[byte]string{
	0x01: "Assertion",
	0x11: "overflow/underflow",
	0x12: "div/zero",
	0x21: "invalid enum",
	0x22: "invalid storage access",
	0x31: "empty array pop",
	0x32: "array OOB",
	0x41: "memory alloc overflow",
	0x51: "zero-initialized variable",
}

var (
	errorStringArgs = args("string")
	panicCodeArgs   = args("uint256")
)

// DecodeRevertReason turns raw revert return data into a human-readable
// reason string (spec §4.3). Never errors -- any undecodable payload falls
// back to a hex dump.
func DecodeRevertReason(data []byte) string {
	switch {
	case len(data) >= 4 && string(data[:4]) == string([]byte{0x08, 0xc3, 0x79, 0xa0}):
		vals, err := errorStringArgs.Unpack(data[4:])
		if err != nil || len(vals) == 0 {
			return "Revert: " + hexDump(data)
		}
		s, ok := vals[0].(string)
		if !ok {
			return "Revert: " + hexDump(data)
		}
		return "Error: " + s
	case len(data) >= 4 && string(data[:4]) == string([]byte{0x4e, 0x48, 0x7b, 0x71}):
		vals, err := panicCodeArgs.Unpack(data[4:])
		if err != nil || len(vals) == 0 {
			return "Revert: " + hexDump(data)
		}
		n, ok := vals[0].(*big.Int)
		if !ok {
			return "Revert: " + hexDump(data)
		}
		code := byte(n.Uint64())
		desc, known := panicCodeDescriptions[code]
		if !known {
			desc = "unknown"
		}
		return fmt.Sprintf("Panic(0x%02x): %s", code, desc)
	default:
		return "Revert: " + hexDump(data)
	}
}

func hexDump(data []byte) string {
	return "0x" + strings.ToLower(hex.EncodeToString(data))
}

func args(types ...string) abi.Arguments {
	a := make(abi.Arguments, len(types))
	for i, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("simprovider: invalid abi type %q: %v", t, err))
		}
		a[i] = abi.Argument{Type: typ}
	}
	return a
}
