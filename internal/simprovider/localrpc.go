package simprovider

import (
	"context"
	"net/http"
	"time"

	"github.com/arbcore/detector/internal/domain"
)

// LocalRPCProvider issues the same bare eth_call as RemoteRPCProvider but
// reuses an *http.Client (and RPC endpoint) the caller already holds
// elsewhere, rather than owning its own connection pool (spec §4.3
// variant iii).
type LocalRPCProvider struct {
	*healthTracker
	name     string
	endpoint string
	timeout  time.Duration
	priority int
	enabled  bool
	client   *http.Client
}

// NewLocalRPCProvider wires an externally-owned client in; passing nil
// falls back to http.DefaultClient.
func NewLocalRPCProvider(name, endpoint string, client *http.Client, timeout time.Duration, priority int, enabled bool) *LocalRPCProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &LocalRPCProvider{
		healthTracker: newHealthTracker(),
		name:          name,
		endpoint:      endpoint,
		timeout:       timeout,
		priority:      priority,
		enabled:       enabled,
		client:        client,
	}
}

func (p *LocalRPCProvider) Name() string                      { return p.name }
func (p *LocalRPCProvider) IsEnabled() bool                    { return p.enabled }
func (p *LocalRPCProvider) GetHealth() domain.ProviderHealth   { return p.health() }
func (p *LocalRPCProvider) GetMetrics() domain.ProviderMetrics { return p.metricsSnapshot() }
func (p *LocalRPCProvider) ResetMetrics()                      { p.reset() }

func (p *LocalRPCProvider) Priority() int { return p.priority }

func (p *LocalRPCProvider) Simulate(ctx context.Context, req *domain.SimulationRequest) (*domain.SimulationResult, error) {
	p.recordAttempt()
	start := time.Now()

	out, err := doEthCall(ctx, p.client, p.endpoint, p.timeout, req)
	latencyMs := time.Since(start).Milliseconds()
	if err != nil && out == "" {
		p.recordFailure(err.Error())
		return nil, err
	}

	p.recordSuccess(latencyMs)
	returnValue, _ := hexDecodeLoose(out)
	result := &domain.SimulationResult{
		Success:     true,
		WouldRevert: err != nil,
		ReturnValue: returnValue,
		Provider:    p.name,
		LatencyMs:   latencyMs,
	}
	if result.WouldRevert {
		result.RevertReason = DecodeRevertReason(returnValue)
		p.recordPredictedRevert()
	}
	return result, nil
}

func (p *LocalRPCProvider) HealthCheck(ctx context.Context) (bool, string) {
	_, err := doEthCall(ctx, p.client, p.endpoint, p.timeout, &domain.SimulationRequest{})
	if err != nil {
		return false, err.Error()
	}
	return true, "ok"
}
