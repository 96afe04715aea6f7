package simprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestRemoteRPCProvider_SuccessfulCallUpdatesHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x01"}`))
	}))
	defer srv.Close()

	p := NewRemoteRPCProvider("test", srv.URL, time.Second, 0, true)
	req := &domain.SimulationRequest{From: common.HexToAddress("0x1"), To: common.HexToAddress("0x2"), Data: []byte{1, 2, 3}}

	result, err := p.Simulate(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.False(t, result.WouldRevert)

	h := p.GetHealth()
	require.True(t, h.Healthy)
	require.Equal(t, 0, h.ConsecutiveFailures)

	m := p.GetMetrics()
	require.Equal(t, int64(1), m.TotalSimulations)
	require.Equal(t, int64(1), m.SuccessfulSimulations)
}

func TestRemoteRPCProvider_RevertIsStillSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":3,"message":"execution reverted","data":"0x08c379a0"}}`))
	}))
	defer srv.Close()

	p := NewRemoteRPCProvider("test", srv.URL, time.Second, 0, true)
	req := &domain.SimulationRequest{From: common.HexToAddress("0x1"), To: common.HexToAddress("0x2")}

	result, err := p.Simulate(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.WouldRevert)

	m := p.GetMetrics()
	require.Equal(t, int64(1), m.PredictedReverts)
}

func TestRemoteRPCProvider_ThreeConsecutiveFailuresFlipUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewRemoteRPCProvider("test", srv.URL, time.Second, 0, true)
	req := &domain.SimulationRequest{From: common.HexToAddress("0x1"), To: common.HexToAddress("0x2")}

	for i := 0; i < 3; i++ {
		_, err := p.Simulate(context.Background(), req)
		require.Error(t, err)
	}

	h := p.GetHealth()
	require.False(t, h.Healthy)
	require.Equal(t, 3, h.ConsecutiveFailures)
}

func TestRemoteRPCProvider_InitialHealthIsUnhealthy(t *testing.T) {
	p := NewRemoteRPCProvider("test", "http://example.invalid", time.Second, 0, true)
	h := p.GetHealth()
	require.False(t, h.Healthy)
	require.Equal(t, 0.0, h.SuccessRate)
}
