package decode

import (
	"math/big"
	"testing"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func rawTxWithData(sel Selector, body []byte) *domain.RawPendingTransaction {
	data := append(append([]byte{}, sel[:]...), body...)
	return &domain.RawPendingTransaction{
		Hash: common.HexToHash("0x01"),
		From: common.HexToAddress("0xaaaa"),
		Data: data,
	}
}

func TestV3Decoder_ExactInputSingleWithDeadline(t *testing.T) {
	tokenIn := common.HexToAddress("0x1111")
	tokenOut := common.HexToAddress("0x2222")
	recipient := common.HexToAddress("0x3333")
	deadline := time.Now().Add(time.Hour).Unix()

	body, err := v3SingleWithDeadline.Pack(
		tokenIn, tokenOut, big.NewInt(3000), recipient,
		big.NewInt(deadline), big.NewInt(1_000_000), big.NewInt(990_000), big.NewInt(0),
	)
	require.NoError(t, err)
	rawTx := rawTxWithData(SelV3ExactInputSingle, body)

	intent, err := (v3Decoder{}).Decode(rawTx, 1, [20]byte{})
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, domain.ProtocolUniswapV3, intent.Protocol)
	require.Equal(t, tokenIn, intent.TokenIn)
	require.Equal(t, tokenOut, intent.TokenOut)
	require.False(t, intent.IsExactOutput)
	require.Equal(t, deadline, intent.Deadline)
	require.NotNil(t, intent.FeeTier)
	require.Equal(t, uint32(3000), *intent.FeeTier)
}

func TestV3Decoder_Router02ExactInputSingleSynthesizesDeadline(t *testing.T) {
	tokenIn := common.HexToAddress("0x1111")
	tokenOut := common.HexToAddress("0x2222")
	recipient := common.HexToAddress("0x3333")

	before := time.Now()
	body, err := v3Router02SingleNoDeadline.Pack(
		tokenIn, tokenOut, big.NewInt(500), recipient,
		big.NewInt(1_000_000), big.NewInt(990_000), big.NewInt(0),
	)
	require.NoError(t, err)
	rawTx := rawTxWithData(SelV3Router02ExactInputSingle, body)

	intent, err := (v3Decoder{}).Decode(rawTx, 1, [20]byte{})
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.False(t, intent.IsExactOutput)
	require.InDelta(t, before.Add(time.Hour).Unix(), intent.Deadline, 5)
}

func TestV3Decoder_ExactOutputSingle(t *testing.T) {
	tokenIn := common.HexToAddress("0x1111")
	tokenOut := common.HexToAddress("0x2222")
	recipient := common.HexToAddress("0x3333")
	deadline := time.Now().Add(time.Hour).Unix()

	body, err := v3SingleExactOutput.Pack(
		tokenIn, tokenOut, big.NewInt(3000), recipient,
		big.NewInt(deadline), big.NewInt(500_000), big.NewInt(510_000), big.NewInt(0),
	)
	require.NoError(t, err)
	rawTx := rawTxWithData(SelV3ExactOutputSingle, body)

	intent, err := (v3Decoder{}).Decode(rawTx, 1, [20]byte{})
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.True(t, intent.IsExactOutput)
	require.Equal(t, big.NewInt(500_000), intent.ExpectedAmountOut)
	require.Equal(t, big.NewInt(510_000), intent.AmountIn)
}

func word(n *big.Int) []byte {
	b := make([]byte, 32)
	n.FillBytes(b)
	return b
}

func addrWord(a common.Address) []byte {
	b := make([]byte, 32)
	copy(b[12:], a[:])
	return b
}

// packedPathCalldata hand-builds calldata for exactInput(ExactInputParams)
// matching the standard ABI encoding of a single dynamic tuple parameter.
func packedPathCalldata(sel Selector, pathBytes []byte, recipient common.Address, deadline, amountIn, amountOutMin int64) []byte {
	var body []byte
	body = append(body, word(big.NewInt(0x20))...) // offset to tuple

	tuplePathOffset := int64(5 * 32)
	var tuple []byte
	tuple = append(tuple, word(big.NewInt(tuplePathOffset))...)
	tuple = append(tuple, addrWord(recipient)...)
	tuple = append(tuple, word(big.NewInt(deadline))...)
	tuple = append(tuple, word(big.NewInt(amountIn))...)
	tuple = append(tuple, word(big.NewInt(amountOutMin))...)
	tuple = append(tuple, word(big.NewInt(int64(len(pathBytes))))...)
	padded := make([]byte, (len(pathBytes)+31)/32*32)
	copy(padded, pathBytes)
	tuple = append(tuple, padded...)

	body = append(body, tuple...)
	return append(append([]byte{}, sel[:]...), body...)
}

func TestV3Decoder_ExactInputPackedPathMultiHop(t *testing.T) {
	weth := common.HexToAddress("0xaaaa")
	usdc := common.HexToAddress("0xbbbb")
	dai := common.HexToAddress("0xcccc")
	recipient := common.HexToAddress("0xdddd")

	// path bytes: weth ‖ fee(0.3%) ‖ usdc ‖ fee(0.05%) ‖ dai
	var path []byte
	path = append(path, weth[:]...)
	path = append(path, byte(3000>>16), byte(3000>>8), byte(3000))
	path = append(path, usdc[:]...)
	path = append(path, byte(500>>16), byte(500>>8), byte(500))
	path = append(path, dai[:]...)

	data := packedPathCalldata(SelV3ExactInput, path, recipient, time.Now().Add(time.Hour).Unix(), 1_000_000, 990_000)
	rawTx := &domain.RawPendingTransaction{Hash: common.HexToHash("0x02"), From: common.HexToAddress("0xe1"), Data: data}

	intent, err := (v3Decoder{}).Decode(rawTx, 1, [20]byte{})
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, weth, intent.TokenIn)
	require.Equal(t, dai, intent.TokenOut)
	require.Equal(t, []common.Address{weth, usdc, dai}, intent.Path)
	require.Equal(t, []uint32{3000, 500}, intent.FeeTiers)
}

func TestV3Decoder_MalformedPackedPathLengthIsDropped(t *testing.T) {
	recipient := common.HexToAddress("0xdddd")
	badPath := make([]byte, 21) // not 20 + 23k
	data := packedPathCalldata(SelV3ExactInput, badPath, recipient, time.Now().Unix(), 1, 1)
	rawTx := &domain.RawPendingTransaction{Hash: common.HexToHash("0x03"), From: common.HexToAddress("0xe1"), Data: data}

	intent, err := (v3Decoder{}).Decode(rawTx, 1, [20]byte{})
	require.Error(t, err)
	require.Nil(t, intent)
}

func TestV3Decoder_UnknownSelectorReturnsNilNil(t *testing.T) {
	rawTx := rawTxWithData(Selector{0xde, 0xad, 0xbe, 0xef}, nil)
	intent, err := (v3Decoder{}).Decode(rawTx, 1, [20]byte{})
	require.NoError(t, err)
	require.Nil(t, intent)
}
