// Package simservice implements C5: tiered dispatch across the C4
// provider set, provider-score ordering, and the simulation-result cache,
// grounded on the teacher's own "don't hold a lock across an RPC call"
// discipline in blackhole.go.
package simservice

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbcore/detector/internal/config"
	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/errs"
	"github.com/arbcore/detector/internal/logging"
	"github.com/arbcore/detector/internal/simprovider"
)

// Tier is the simulation-depth decision for one opportunity (spec §4.4).
type Tier string

const (
	TierNone  Tier = "none"
	TierLight Tier = "light"
	TierFull  Tier = "full"
)

// AggregatedMetrics is the cross-provider rollup GetAggregatedMetrics
// returns.
type AggregatedMetrics struct {
	TotalSimulations      int64
	SkippedSimulations    int64
	PerformedSimulations  int64
	PredictedReverts      int64
	Errors                int64
	SuccessRate           float64
	FallbackUsed          int64
	CacheHits             int64
}

type cacheEntry struct {
	result     *domain.SimulationResult
	insertedAt time.Time
	expiresAt  time.Time
}

// Service implements C5.
type Service struct {
	cfg       *config.SimulationConfig
	log       logging.Logger
	providers []simprovider.Provider

	mu             sync.Mutex
	cache          map[string]*cacheEntry
	orderedCache   []simprovider.Provider
	orderedCacheAt time.Time
	orderedCacheKey string

	stopped atomic.Bool

	skipped      int64
	errors       int64
	cacheHits    int64
	fallbackUsed int64
}

func NewService(providers []simprovider.Provider, cfg *config.SimulationConfig, log logging.Logger) *Service {
	if log == nil {
		log = &logging.Nop{}
	}
	return &Service{
		cfg:       cfg,
		log:       log,
		providers: providers,
		cache:     make(map[string]*cacheEntry),
	}
}

func (s *Service) isStopped() bool { return s.stopped.Load() }

// IsRunning reports whether the service will still dispatch simulations;
// C8 skips its snapshot when this is false (spec §4.6).
func (s *Service) IsRunning() bool { return !s.stopped.Load() }

// Stop marks the service stopped; subsequent Simulate calls return
// errs.SimServiceStopped instead of panicking (spec §5).
func (s *Service) Stop() { s.stopped.Store(true) }

// GetSimulationTier applies the exact tier rules in spec §4.4.
func (s *Service) GetSimulationTier(expectedProfit float64, opportunityAgeMs int64) Tier {
	if opportunityAgeMs > s.cfg.TimeCriticalThresholdMs && s.cfg.BypassForTimeCritical {
		return TierNone
	}
	if expectedProfit < s.cfg.NoSimulationThreshold {
		return TierNone
	}
	if expectedProfit < s.cfg.LightSimulationThreshold {
		return TierLight
	}
	return TierFull
}

// ShouldSimulate is the O(N_providers) fast path: true only for tiers
// light/full, and only when at least one provider is enabled.
func (s *Service) ShouldSimulate(expectedProfit float64, opportunityAgeMs int64) bool {
	anyEnabled := false
	for _, p := range s.providers {
		if p.IsEnabled() {
			anyEnabled = true
			break
		}
	}
	if !anyEnabled {
		return false
	}
	tier := s.GetSimulationTier(expectedProfit, opportunityAgeMs)
	return tier == TierLight || tier == TierFull
}

// Simulate runs the dispatch algorithm in spec §4.4.
func (s *Service) Simulate(ctx context.Context, req *domain.SimulationRequest, tier Tier) (*domain.SimulationResult, error) {
	if s.isStopped() {
		return nil, errs.New(errs.SimServiceStopped, "Service.Simulate", fmt.Errorf("simulation service stopped"))
	}
	if tier == TierNone {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		return nil, nil
	}

	key := cacheKey(req)
	if cached, ok := s.getCached(key); ok {
		s.mu.Lock()
		s.cacheHits++
		s.mu.Unlock()
		return cached, nil
	}

	var pool []simprovider.Provider
	if tier == TierLight {
		pool = s.localOnly()
	} else {
		pool = s.orderedProviders()
	}
	if len(pool) == 0 {
		s.mu.Lock()
		s.errors++
		s.mu.Unlock()
		return nil, errs.New(errs.SimAllProvidersFailed, "Service.Simulate", fmt.Errorf("no enabled providers"))
	}

	result, err := pool[0].Simulate(ctx, req)
	if err == nil && result.Success {
		s.putCached(key, result)
		return result, nil
	}

	if !s.cfg.FallbackEnabled || tier == TierLight {
		s.mu.Lock()
		s.errors++
		s.mu.Unlock()
		return nil, lastErrorOrWrap(err, pool[0].Name())
	}

	s.log.Warnf("simservice: %s failed, falling back: %v", pool[0].Name(), err)
	lastErr := err
	lastProvider := pool[0].Name()
	for _, p := range pool[1:] {
		result, err = p.Simulate(ctx, req)
		if err == nil && result.Success {
			s.putCached(key, result)
			s.mu.Lock()
			s.fallbackUsed++
			s.mu.Unlock()
			return result, nil
		}
		s.log.Warnf("simservice: %s failed, falling back: %v", p.Name(), err)
		lastErr = err
		lastProvider = p.Name()
	}

	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
	return nil, lastErrorOrWrap(lastErr, lastProvider)
}

func lastErrorOrWrap(err error, providerName string) error {
	if err == nil {
		err = fmt.Errorf("unknown simulation failure")
	}
	return errs.New(errs.SimAllProvidersFailed, "Service.Simulate["+providerName+"]", err)
}

func (s *Service) localOnly() []simprovider.Provider {
	var out []simprovider.Provider
	for _, p := range s.providers {
		if p.IsEnabled() {
			if _, ok := p.(*simprovider.LocalRPCProvider); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// orderedProviders returns the score-sorted enabled provider list, served
// from a 1-second TTL cache keyed on the set of currently-enabled
// providers (spec §4.4).
func (s *Service) orderedProviders() []simprovider.Provider {
	key := enabledKey(s.providers)

	s.mu.Lock()
	if s.orderedCacheKey == key && time.Since(s.orderedCacheAt) < time.Second {
		cached := s.orderedCache
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	scored := make([]simprovider.Provider, 0, len(s.providers))
	scores := make(map[string]float64, len(s.providers))
	for _, p := range s.providers {
		if !p.IsEnabled() {
			continue
		}
		scored = append(scored, p)
		scores[p.Name()] = providerScore(p)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scores[scored[i].Name()] > scores[scored[j].Name()]
	})

	s.mu.Lock()
	s.orderedCache = scored
	s.orderedCacheAt = time.Now()
	s.orderedCacheKey = key
	s.mu.Unlock()

	return scored
}

func providerScore(p simprovider.Provider) float64 {
	h := p.GetHealth()
	score := 0.0
	if h.Healthy {
		score += 100
	}
	score += h.SuccessRate * 50
	if h.AverageLatencyMs > 0 {
		latencyScore := 3000 / h.AverageLatencyMs
		if latencyScore > 30 {
			latencyScore = 30
		}
		score += latencyScore
	} else {
		score += 15
	}
	if p.Priority() >= 0 {
		score += 20 - 5*float64(p.Priority())
	}
	return score
}

func enabledKey(providers []simprovider.Provider) string {
	var names []string
	for _, p := range providers {
		if p.IsEnabled() {
			names = append(names, p.Name())
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func cacheKey(req *domain.SimulationRequest) string {
	var b strings.Builder
	value := req.Value
	if value == "" {
		value = "0"
	}
	fmt.Fprintf(&b, "%d|%s|%s|%x|%s", req.Chain, req.From.Hex(), req.To.Hex(), req.Data, value)
	if req.BlockNumber != nil {
		fmt.Fprintf(&b, "|%d", *req.BlockNumber)
	}
	if req.SolanaTxBase64 != "" {
		fmt.Fprintf(&b, "|sol:%s|%s", req.SolanaTxBase64, req.Commitment)
	}
	return b.String()
}

func (s *Service) getCached(key string) (*domain.SimulationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.cache, key)
		return nil, false
	}
	return entry.result, true
}

func (s *Service) putCached(key string, result *domain.SimulationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.cache[key] = &cacheEntry{result: result, insertedAt: now, expiresAt: now.Add(s.cfg.CacheTTL)}
	s.evictLocked()
}

// evictLocked implements the exact two-pass eviction in spec §4.4. Caller
// holds s.mu.
func (s *Service) evictLocked() {
	maxEntries := s.cfg.CacheMaxEntries
	threshold := int(float64(maxEntries) * 0.8)
	if len(s.cache) <= threshold {
		return
	}

	now := time.Now()
	for k, e := range s.cache {
		if now.After(e.expiresAt) {
			delete(s.cache, k)
		}
	}
	if len(s.cache) <= maxEntries {
		return
	}

	type kv struct {
		key        string
		insertedAt time.Time
	}
	entries := make([]kv, 0, len(s.cache))
	for k, e := range s.cache {
		entries = append(entries, kv{k, e.insertedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].insertedAt.Before(entries[j].insertedAt) })

	target := maxEntries - 50
	for _, e := range entries {
		if len(s.cache) <= target {
			break
		}
		delete(s.cache, e.key)
	}
}

// GetProvidersHealth snapshots every provider's health keyed by name.
func (s *Service) GetProvidersHealth() map[string]domain.ProviderHealth {
	out := make(map[string]domain.ProviderHealth, len(s.providers))
	for _, p := range s.providers {
		out[p.Name()] = p.GetHealth()
	}
	return out
}

// GetAggregatedMetrics rolls every provider's counters up into one
// cross-provider view, combined with this service's own skip/error
// counters.
func (s *Service) GetAggregatedMetrics() AggregatedMetrics {
	s.mu.Lock()
	skipped := s.skipped
	errCount := s.errors
	cacheHits := s.cacheHits
	fallbackUsed := s.fallbackUsed
	s.mu.Unlock()

	agg := AggregatedMetrics{SkippedSimulations: skipped, Errors: errCount, CacheHits: cacheHits, FallbackUsed: fallbackUsed}
	var totalSuccess, totalAttempts int64
	for _, p := range s.providers {
		m := p.GetMetrics()
		agg.TotalSimulations += m.TotalSimulations
		agg.PerformedSimulations += m.SuccessfulSimulations + m.FailedSimulations
		agg.PredictedReverts += m.PredictedReverts
		totalSuccess += m.SuccessfulSimulations
		totalAttempts += m.SuccessfulSimulations + m.FailedSimulations
	}
	if totalAttempts > 0 {
		agg.SuccessRate = float64(totalSuccess) / float64(totalAttempts)
	}
	return agg
}
