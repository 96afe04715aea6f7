// Package simprovider implements C4: the simulation-provider variant set
// (remote-rich, remote-rpc, local-rpc, solana), each sharing the same
// health/metrics tracking discipline and revert-reason decoding, grounded
// on the teacher's habit of tracking rolling provider health inline with
// the call site (blackhole.go's own retry/backoff bookkeeping) generalized
// into a reusable tracker.
package simprovider

import (
	"context"
	"sync"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/ringbuf"
)

// Provider is the contract every C4 variant implements (spec §4.3).
type Provider interface {
	Simulate(ctx context.Context, req *domain.SimulationRequest) (*domain.SimulationResult, error)
	IsEnabled() bool
	GetHealth() domain.ProviderHealth
	GetMetrics() domain.ProviderMetrics
	ResetMetrics()
	HealthCheck(ctx context.Context) (healthy bool, message string)
	Name() string
	// Priority is the caller-supplied ordering bias (§4.4 score formula);
	// -1 means unset.
	Priority() int
}

// healthTracker is embedded by every provider variant; it owns the
// consecutive-failure counter, rolling success-rate buffer, rolling
// latency average, and monotonic metrics counters for one provider.
type healthTracker struct {
	mu sync.Mutex

	consecutiveFailures int
	healthy             bool
	lastError           string
	lastCheck           time.Time
	successWindow       *ringbuf.BoolBuffer
	latency             *ringbuf.RollingAverage

	metrics domain.ProviderMetrics
}

func newHealthTracker() *healthTracker {
	return &healthTracker{
		successWindow: ringbuf.NewBoolBuffer(100),
		latency:       ringbuf.NewRollingAverage(1000),
		// healthy starts false: spec §4.3 "Initial health posture".
	}
}

// recordAttempt increments total-simulations before dispatch, per spec
// §4.3's "On every call, increment total-simulations before dispatch (even
// on early exit)" rule. Call this first, unconditionally.
func (h *healthTracker) recordAttempt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics.TotalSimulations++
}

func (h *healthTracker) recordSuccess(latencyMs int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures = 0
	h.healthy = true
	h.lastCheck = time.Now()
	h.successWindow.Push(true)
	h.latency.Update(float64(latencyMs))
	h.metrics.SuccessfulSimulations++
	h.metrics.AverageLatencyMs = h.latency.Value()
	h.metrics.LastUpdated = h.lastCheck
}

func (h *healthTracker) recordFailure(errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
	if h.consecutiveFailures >= 3 {
		h.healthy = false
	}
	h.lastError = errMsg
	h.lastCheck = time.Now()
	h.successWindow.Push(false)
	h.metrics.FailedSimulations++
	h.metrics.LastUpdated = h.lastCheck
}

func (h *healthTracker) recordPredictedRevert() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics.PredictedReverts++
}

func (h *healthTracker) recordCacheHit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics.CacheHits++
}

func (h *healthTracker) recordFallbackUsed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics.FallbackUsed++
}

func (h *healthTracker) health() domain.ProviderHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return domain.ProviderHealth{
		Healthy:             h.healthy,
		LastCheck:           h.lastCheck,
		ConsecutiveFailures: h.consecutiveFailures,
		LastError:           h.lastError,
		AverageLatencyMs:    h.latency.Value(),
		SuccessRate:         h.successWindow.SuccessRate(),
	}
}

func (h *healthTracker) metricsSnapshot() domain.ProviderMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}

func (h *healthTracker) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = domain.ProviderMetrics{}
	h.consecutiveFailures = 0
	h.healthy = false
	h.lastError = ""
	h.successWindow = ringbuf.NewBoolBuffer(100)
	h.latency = ringbuf.NewRollingAverage(1000)
}
