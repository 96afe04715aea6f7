package simprovider

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRevertReason_ErrorString(t *testing.T) {
	data, err := errorStringArgs.Pack("insufficient liquidity")
	require.NoError(t, err)
	full := append([]byte{0x08, 0xc3, 0x79, 0xa0}, data...)
	require.Equal(t, "Error: insufficient liquidity", DecodeRevertReason(full))
}

func TestDecodeRevertReason_PanicCode(t *testing.T) {
	data, err := panicCodeArgs.Pack(big.NewInt(0x11))
	require.NoError(t, err)
	full := append([]byte{0x4e, 0x48, 0x7b, 0x71}, data...)
	require.Equal(t, "Panic(0x11): overflow/underflow", DecodeRevertReason(full))
}

func TestDecodeRevertReason_UnknownFallsBackToHex(t *testing.T) {
	reason := DecodeRevertReason([]byte{0xde, 0xad, 0xbe, 0xef})
	require.Equal(t, "Revert: 0xdeadbeef", reason)
}
