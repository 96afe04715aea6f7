package metrics

import (
	"testing"
	"time"

	"github.com/arbcore/detector/internal/config"
	"github.com/arbcore/detector/internal/simprovider"
	"github.com/arbcore/detector/internal/simservice"
	"github.com/stretchr/testify/require"
)

func testSimConfig() *config.SimulationConfig {
	return &config.SimulationConfig{
		NoSimulationThreshold:    50,
		LightSimulationThreshold: 500,
		TimeCriticalThresholdMs:  2000,
		CacheTTL:                 time.Minute,
		CacheMaxEntries:          500,
		FallbackEnabled:          true,
	}
}

func TestCollect_NoProvidersIsNotConfigured(t *testing.T) {
	svc := simservice.NewService(nil, testSimConfig(), nil)
	c := NewCollector(svc, time.Second, nil)

	snap := c.Collect()
	require.Equal(t, StatusNotConfigured, snap.ServiceStatus)
	require.False(t, snap.Skipped)
}

func TestCollect_StoppedServiceSkipsSnapshot(t *testing.T) {
	svc := simservice.NewService(nil, testSimConfig(), nil)
	svc.Stop()
	c := NewCollector(svc, time.Second, nil)

	snap := c.Collect()
	require.True(t, snap.Skipped)
}

func TestCollect_ReportsDegradedWhenAnyProviderUnhealthy(t *testing.T) {
	p := simprovider.NewRemoteRPCProvider("rpc1", "http://example.invalid", time.Second, 0, true)
	svc := simservice.NewService([]simprovider.Provider{p}, testSimConfig(), nil)
	c := NewCollector(svc, time.Second, nil)

	snap := c.Collect()
	require.Equal(t, StatusDegraded, snap.ServiceStatus)
	require.Len(t, snap.Providers, 1)
}
