// Package metrics implements C8: a periodic snapshot of C4/C5 health and
// throughput counters, published both as plain Go structs and as
// Prometheus gauges, grounded on the teacher-adjacent Synnergy repo's
// HealthLogger (registry + per-metric Gauge/Counter + periodic
// MetricsSnapshot call), generalized from chain-height/peer-count metrics
// to simulation-provider health.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/arbcore/detector/internal/logging"
	"github.com/arbcore/detector/internal/simservice"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusHealthy      = "healthy"
	StatusDegraded     = "degraded"
	StatusNotConfigured = "not_configured"
)

// ProviderSnapshot is one provider's health as of the last collection.
type ProviderSnapshot struct {
	Name             string
	Healthy          bool
	SuccessRate      float64
	AverageLatencyMs float64
}

// Snapshot is the plain-struct result of one Collect call.
type Snapshot struct {
	Providers     []ProviderSnapshot
	Aggregated    simservice.AggregatedMetrics
	ServiceStatus string
	Timestamp     time.Time
	Skipped       bool
}

// Collector runs a time.Ticker loop that snapshots the simulation
// service's provider health and aggregated counters, publishing each
// snapshot as Prometheus gauges in addition to returning it as a struct
// (spec §4.6: "independently scrapeable").
type Collector struct {
	svc      *simservice.Service
	interval time.Duration
	log      logging.Logger

	registry *prometheus.Registry

	providerHealthy     *prometheus.GaugeVec
	providerSuccessRate *prometheus.GaugeVec
	providerLatencyMs   *prometheus.GaugeVec

	totalSimulations   prometheus.Gauge
	skippedSimulations prometheus.Gauge
	performed          prometheus.Gauge
	predictedReverts   prometheus.Gauge
	errorsGauge        prometheus.Gauge
	successRateGauge   prometheus.Gauge
	fallbackUsed       prometheus.Gauge
	cacheHits          prometheus.Gauge
	serviceStatus      *prometheus.GaugeVec

	mu   sync.RWMutex
	last Snapshot
}

// NewCollector registers every gauge into a fresh prometheus.Registry,
// mirroring HealthLogger's constructor-time MustRegister call.
func NewCollector(svc *simservice.Service, interval time.Duration, log logging.Logger) *Collector {
	if log == nil {
		log = &logging.Nop{}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	reg := prometheus.NewRegistry()

	c := &Collector{
		svc:      svc,
		interval: interval,
		log:      log,
		registry: reg,

		providerHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbcore_simprovider_healthy",
			Help: "1 if the provider is currently healthy, 0 otherwise",
		}, []string{"provider"}),
		providerSuccessRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbcore_simprovider_success_rate",
			Help: "Rolling success rate over the last 100 simulations",
		}, []string{"provider"}),
		providerLatencyMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbcore_simprovider_avg_latency_ms",
			Help: "Rolling average simulation latency in milliseconds",
		}, []string{"provider"}),
		totalSimulations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbcore_sim_total_simulations",
			Help: "Total simulation dispatch attempts across all providers",
		}),
		skippedSimulations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbcore_sim_skipped_simulations",
			Help: "Simulations skipped by tier policy",
		}),
		performed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbcore_sim_performed_simulations",
			Help: "Simulations actually dispatched to a provider",
		}),
		predictedReverts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbcore_sim_predicted_reverts",
			Help: "Simulations that completed successfully but predicted an on-chain revert",
		}),
		errorsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbcore_sim_errors",
			Help: "Simulation dispatch failures across all providers",
		}),
		successRateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbcore_sim_success_rate",
			Help: "Aggregate success rate across all providers",
		}),
		fallbackUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbcore_sim_fallback_used",
			Help: "Times dispatch fell through to a non-primary provider",
		}),
		cacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbcore_sim_cache_hits",
			Help: "Simulation result cache hits",
		}),
		serviceStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbcore_sim_service_status",
			Help: "1 for the currently active status label (healthy|degraded|not_configured)",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.providerHealthy, c.providerSuccessRate, c.providerLatencyMs,
		c.totalSimulations, c.skippedSimulations, c.performed, c.predictedReverts,
		c.errorsGauge, c.successRateGauge, c.fallbackUsed, c.cacheHits, c.serviceStatus,
	)

	return c
}

// Registry exposes the underlying *prometheus.Registry so a caller can
// wire it into an HTTP /metrics handler via promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Run blocks, collecting on every tick until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Collect takes one snapshot, publishing it as Prometheus gauges and
// caching it for LastSnapshot. Collection errors are logged, never
// propagated (spec §4.6).
func (c *Collector) Collect() Snapshot {
	if c.svc == nil || !c.svc.IsRunning() {
		snap := Snapshot{Timestamp: time.Now(), Skipped: true, ServiceStatus: StatusNotConfigured}
		c.mu.Lock()
		c.last = snap
		c.mu.Unlock()
		return snap
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Warnf("metrics: collect panicked: %v", r)
		}
	}()

	health := c.svc.GetProvidersHealth()
	agg := c.svc.GetAggregatedMetrics()

	providers := make([]ProviderSnapshot, 0, len(health))
	allHealthy := len(health) > 0
	for name, h := range health {
		providers = append(providers, ProviderSnapshot{
			Name: name, Healthy: h.Healthy, SuccessRate: h.SuccessRate, AverageLatencyMs: h.AverageLatencyMs,
		})
		c.providerHealthy.WithLabelValues(name).Set(boolToFloat(h.Healthy))
		c.providerSuccessRate.WithLabelValues(name).Set(h.SuccessRate)
		c.providerLatencyMs.WithLabelValues(name).Set(h.AverageLatencyMs)
		if !h.Healthy {
			allHealthy = false
		}
	}

	status := StatusNotConfigured
	if len(health) > 0 {
		if allHealthy {
			status = StatusHealthy
		} else {
			status = StatusDegraded
		}
	}

	c.totalSimulations.Set(float64(agg.TotalSimulations))
	c.skippedSimulations.Set(float64(agg.SkippedSimulations))
	c.performed.Set(float64(agg.PerformedSimulations))
	c.predictedReverts.Set(float64(agg.PredictedReverts))
	c.errorsGauge.Set(float64(agg.Errors))
	c.successRateGauge.Set(agg.SuccessRate)
	c.fallbackUsed.Set(float64(agg.FallbackUsed))
	c.cacheHits.Set(float64(agg.CacheHits))

	for _, s := range []string{StatusHealthy, StatusDegraded, StatusNotConfigured} {
		if s == status {
			c.serviceStatus.WithLabelValues(s).Set(1)
		} else {
			c.serviceStatus.WithLabelValues(s).Set(0)
		}
	}

	snap := Snapshot{
		Providers:     providers,
		Aggregated:    agg,
		ServiceStatus: status,
		Timestamp:     time.Now(),
	}
	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()
	return snap
}

// LastSnapshot returns the most recently collected snapshot.
func (c *Collector) LastSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
