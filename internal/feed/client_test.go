package feed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/arbcore/detector/internal/config"
	"github.com/arbcore/detector/internal/domain"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory conn used to drive the read loop deterministically.
type fakeConn struct {
	mu       sync.Mutex
	inbound  chan []byte
	closed   bool
	writes   [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (f *fakeConn) push(msg []byte) { f.inbound <- msg }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.inbound
	if !ok {
		return 0, nil, errClosed
	}
	return 1, msg, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

var errClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "fake conn closed" }

func newTestClient(t *testing.T, fc *fakeConn) *Client {
	t.Helper()
	cfg := &config.FeedConfig{Endpoint: "wss://example.invalid", Chains: []uint64{1}}
	c := NewClient(cfg, WithDialer(func(ctx context.Context, endpoint string, header map[string][]string) (conn, error) {
		return fc, nil
	}))
	return c
}

func TestClient_ConnectIsIdempotent(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(t, fc)

	require.NoError(t, c.Connect(context.Background()))
	require.Equal(t, StateConnected, c.State())

	// Calling connect again while already connected is a documented no-op.
	require.NoError(t, c.Connect(context.Background()))
	require.Equal(t, StateConnected, c.State())
}

func TestClient_DisconnectIsIdempotent(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(t, fc)
	require.NoError(t, c.Connect(context.Background()))

	c.Disconnect()
	require.Equal(t, StateDisconnected, c.State())

	c.Disconnect() // must not panic or error
	require.Equal(t, StateDisconnected, c.State())
}

func TestClient_EmitsPendingTxOnSubscriptionPush(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(t, fc)
	require.NoError(t, c.Connect(context.Background()))

	received := make(chan *domain.RawPendingTransaction, 1)
	c.Subscribe(&Handlers{
		OnPendingTx: func(tx *domain.RawPendingTransaction) { received <- tx },
	})

	push := map[string]any{
		"method": "eth_subscription",
		"params": map[string]any{
			"result": map[string]any{
				"txHash": "0xabc123",
				"txContents": map[string]any{
					"from":    "0x0000000000000000000000000000000000000001",
					"to":      "0x0000000000000000000000000000000000000002",
					"value":   "0x16345785d8a0000",
					"input":   "0x",
					"gas":     "0x5208",
					"nonce":   "0x1",
					"chainId": "0x0", // zero chain id must be preserved verbatim
				},
			},
		},
	}
	payload, err := json.Marshal(push)
	require.NoError(t, err)
	fc.push(payload)

	select {
	case tx := <-received:
		require.Equal(t, uint64(0), tx.ChainID)
		require.Equal(t, uint64(1), tx.Nonce)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pendingTx event")
	}
}

func TestClient_MalformedFrameIsDroppedNotFatal(t *testing.T) {
	fc := newFakeConn()
	c := newTestClient(t, fc)
	require.NoError(t, c.Connect(context.Background()))

	errCh := make(chan error, 1)
	c.Subscribe(&Handlers{OnError: func(err error) { errCh <- err }})

	fc.push([]byte(`{not json`))

	select {
	case <-errCh:
		t.Fatal("malformed JSON must be dropped locally, not surfaced as an error event")
	case <-time.After(100 * time.Millisecond):
		// expected: nothing emitted
	}
	require.Equal(t, int64(1), c.GetHealth().ErrorCount)
}

func TestClient_RouterAllowlistFiltersEmissions(t *testing.T) {
	fc := newFakeConn()
	cfg := &config.FeedConfig{
		Endpoint:        "wss://example.invalid",
		Chains:          []uint64{1},
		RouterAllowlist: []string{"0x0000000000000000000000000000000000000099"},
	}
	c := NewClient(cfg, WithDialer(func(ctx context.Context, endpoint string, header map[string][]string) (conn, error) {
		return fc, nil
	}))
	require.NoError(t, c.Connect(context.Background()))

	received := make(chan *domain.RawPendingTransaction, 1)
	c.Subscribe(&Handlers{OnPendingTx: func(tx *domain.RawPendingTransaction) { received <- tx }})

	push := map[string]any{
		"method": "eth_subscription",
		"params": map[string]any{
			"result": map[string]any{
				"txHash": "0xabc123",
				"txContents": map[string]any{
					"from":    "0x0000000000000000000000000000000000000001",
					"to":      "0x0000000000000000000000000000000000000002", // not allow-listed
					"value":   "0x0",
					"gas":     "0x5208",
					"nonce":   "0x1",
					"chainId": "0x1",
				},
			},
		},
	}
	payload, err := json.Marshal(push)
	require.NoError(t, err)
	fc.push(payload)

	select {
	case <-received:
		t.Fatal("expected the non-allow-listed router tx to be filtered out")
	case <-time.After(100 * time.Millisecond):
		// expected
	}
}
