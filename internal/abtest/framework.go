package abtest

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbcore/detector/internal/config"
	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/errs"
	"github.com/arbcore/detector/internal/logging"
	"github.com/arbcore/detector/internal/stats"
	"github.com/arbcore/detector/internal/store"
)

// variantMetrics holds both arms' accumulators for one experiment, guarded
// by its own mutex so recordResult never contends with the framework-wide
// lock held during assignVariant.
type variantMetrics struct {
	mu      sync.Mutex
	control domain.ExperimentMetrics
	variant domain.ExperimentMetrics
	dirty   bool
}

func newVariantMetrics() *variantMetrics {
	return &variantMetrics{
		control: domain.ExperimentMetrics{TotalProfit: big.NewInt(0), TotalGasCost: big.NewInt(0)},
		variant: domain.ExperimentMetrics{TotalProfit: big.NewInt(0), TotalGasCost: big.NewInt(0)},
	}
}

// Framework implements C6. Its running-experiment cache is an
// atomic.Pointer swapped wholesale every refresh interval so hot-path
// assignVariant readers never observe a half-rebuilt map.
type Framework struct {
	cfg   *config.ExperimentConfig
	store store.KV
	log   logging.Logger

	mu          sync.RWMutex
	experiments map[string]*domain.Experiment
	metrics     map[string]*variantMetrics

	running atomic.Pointer[map[string]*domain.Experiment]
	stopped atomic.Bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewFramework wires the framework to its key/value collaborator (C10 or
// any other internal/store.KV implementation) and experiment config (C9).
func NewFramework(cfg *config.ExperimentConfig, kv store.KV, log logging.Logger) *Framework {
	if log == nil {
		log = &logging.Nop{}
	}
	f := &Framework{
		cfg:         cfg,
		store:       kv,
		log:         log,
		experiments: make(map[string]*domain.Experiment),
		metrics:     make(map[string]*variantMetrics),
		stopCh:      make(chan struct{}),
	}
	empty := make(map[string]*domain.Experiment)
	f.running.Store(&empty)
	return f
}

// Start launches the periodic cache-refresh and metrics-flush loop (spec
// §4.5/§5). Call it once: every call starts another loop.
func (f *Framework) Start() {
	f.refreshRunningCache()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
				f.refreshRunningCache()
				f.flushDirtyMetrics()
			}
		}
	}()
}

// Stop halts the refresh loop and flips the stopped flag: afterwards
// AssignVariant and AssignAllVariants return no assignment, and
// RecordResult returns errs.ABStoreUnavailable rather than panicking.
func (f *Framework) Stop() {
	if f.stopped.CompareAndSwap(false, true) {
		close(f.stopCh)
		f.wg.Wait()
	}
}

func (f *Framework) isStopped() bool { return f.stopped.Load() }

// refreshRunningCache rebuilds the running-experiment snapshot in full,
// then atomically swaps it in (spec §4.5, §5 ordering guarantee).
func (f *Framework) refreshRunningCache() {
	f.mu.RLock()
	fresh := make(map[string]*domain.Experiment, len(f.experiments))
	for id, exp := range f.experiments {
		if exp.Status == domain.StatusRunning {
			fresh[id] = exp
		}
	}
	f.mu.RUnlock()
	f.running.Store(&fresh)
}

// fnv1aHash32 is the exact 32-bit FNV-1a hash spec §4.5 mandates in place
// of a cryptographic hash: fast, deterministic, and reproducible bit-for-bit
// across implementations via hash/fnv's New32a.
func fnv1aHash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// AssignVariant is the O(1), allocation-free hot path (spec §4.5).
func (f *Framework) AssignVariant(experimentID, opportunityFingerprint string) (domain.Variant, bool) {
	if !f.cfg.Enabled || f.isStopped() {
		return "", false
	}
	runningPtr := f.running.Load()
	if runningPtr == nil {
		return "", false
	}
	exp, ok := (*runningPtr)[experimentID]
	if !ok || exp.Status != domain.StatusRunning {
		return "", false
	}

	bucket := float64(fnv1aHash32(opportunityFingerprint)) / 4294967296.0
	if bucket < exp.TrafficSplit {
		return domain.VariantVariant, true
	}
	return domain.VariantControl, true
}

// AssignAllVariants assigns a single fingerprint against every running
// experiment matching the optional chain/dex filters.
func (f *Framework) AssignAllVariants(fingerprint string, chain *uint64, dex *string) map[string]domain.Variant {
	out := make(map[string]domain.Variant)
	if !f.cfg.Enabled || f.isStopped() {
		return out
	}
	runningPtr := f.running.Load()
	if runningPtr == nil {
		return out
	}
	for id, exp := range *runningPtr {
		if exp.ChainFilter != nil && (chain == nil || *exp.ChainFilter != *chain) {
			continue
		}
		if exp.DexFilter != nil && (dex == nil || *exp.DexFilter != *dex) {
			continue
		}
		if variant, ok := f.AssignVariant(id, fingerprint); ok {
			out[id] = variant
		}
	}
	return out
}

// RecordResult folds one execution outcome into the per-variant
// accumulator, using 256-bit-capable big.Int arithmetic for profit/gas
// totals per spec §4.5.
func (f *Framework) RecordResult(experimentID string, variant domain.Variant, outcome domain.ExecutionOutcome, latencyMs int64, mevFrontrunDetected bool) error {
	if f.isStopped() {
		return errs.New(errs.ABStoreUnavailable, "Framework.RecordResult", fmt.Errorf("framework stopped"))
	}

	f.mu.RLock()
	vm, ok := f.metrics[experimentID]
	f.mu.RUnlock()
	if !ok {
		return errs.New(errs.ABExperimentNotFound, "Framework.RecordResult", fmt.Errorf("experiment %q not found", experimentID))
	}

	vm.mu.Lock()
	m := &vm.control
	if variant == domain.VariantVariant {
		m = &vm.variant
	}
	now := time.Now()
	if outcome.Success {
		m.SuccessCount++
	} else {
		m.FailureCount++
	}
	if outcome.Profit != nil {
		m.TotalProfit.Add(m.TotalProfit, outcome.Profit)
	}
	if outcome.GasCost != nil {
		m.TotalGasCost.Add(m.TotalGasCost, outcome.GasCost)
	}
	m.TotalLatencyMs += latencyMs
	if mevFrontrunDetected {
		m.MevFrontrunCount++
	}
	if m.FirstExecutionAt == nil {
		m.FirstExecutionAt = &now
	}
	m.LastExecutionAt = &now
	vm.dirty = true
	vm.mu.Unlock()

	return nil
}

// flushDirtyMetrics re-persists the experiment record of every experiment
// whose accumulators changed since the last flush, clearing the dirty flag
// only on a successful write. The accumulator values themselves are not
// written to the store: they live in memory only.
func (f *Framework) flushDirtyMetrics() {
	f.mu.RLock()
	ids := make([]string, 0, len(f.metrics))
	for id := range f.metrics {
		ids = append(ids, id)
	}
	f.mu.RUnlock()

	for _, id := range ids {
		f.mu.RLock()
		vm := f.metrics[id]
		exp := f.experiments[id]
		f.mu.RUnlock()
		if vm == nil || exp == nil {
			continue
		}

		vm.mu.Lock()
		dirty := vm.dirty
		vm.dirty = false
		vm.mu.Unlock()
		if !dirty {
			continue
		}

		if err := f.persistExperiment(exp); err != nil {
			f.log.Warnf("abtest: flush metrics for %s: %v", id, err)
			vm.mu.Lock()
			vm.dirty = true
			vm.mu.Unlock()
		}
	}
}

// GetExperimentSummary feeds both arms' derived views into C7's
// significance test and computes readiness-for-conclusion (spec §4.5).
func (f *Framework) GetExperimentSummary(id string) (*domain.ExperimentSummary, error) {
	exp, err := f.GetExperiment(id)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	vm := f.metrics[id]
	f.mu.RUnlock()
	if vm == nil {
		return nil, errs.New(errs.ABExperimentNotFound, "Framework.GetExperimentSummary", fmt.Errorf("no metrics for %q", id))
	}

	vm.mu.Lock()
	controlView := vm.control.Derive()
	variantView := vm.variant.Derive()
	vm.mu.Unlock()

	sig := stats.CalculateSignificance(
		stats.SampleGroup{Successes: float64(controlView.SuccessCount), SampleSize: float64(controlView.SampleSize)},
		stats.SampleGroup{Successes: float64(variantView.SuccessCount), SampleSize: float64(variantView.SampleSize)},
		0.05,
		float64(exp.MinSampleSize),
	)

	var runtimeSeconds float64
	end := time.Now()
	if exp.End != nil {
		end = *exp.End
	}
	runtimeSeconds = end.Sub(exp.Start).Seconds()

	readyForConclusion := controlView.SampleSize >= exp.MinSampleSize &&
		variantView.SampleSize >= exp.MinSampleSize && sig.Significant

	return &domain.ExperimentSummary{
		Experiment:         exp,
		Control:            controlView,
		VariantView:        variantView,
		PValue:             sig.PValue,
		Significant:        sig.Significant,
		ZScore:             sig.ZScore,
		EffectSize:         sig.EffectSize,
		Recommendation:     sig.Recommendation,
		SampleSizeWarning:  sig.SampleSizeWarning,
		ReadyForConclusion: readyForConclusion,
		RuntimeSeconds:     runtimeSeconds,
	}, nil
}

// wireExperiment is the JSON shape persisted to the key/value store; dates
// marshal as ISO-8601 strings via time.Time's default JSON encoding (spec
// §6 experiment layout).
type wireExperiment struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	ControlStrategy string     `json:"controlStrategy"`
	VariantStrategy string     `json:"variantStrategy"`
	TrafficSplit    float64    `json:"trafficSplit"`
	MinSampleSize   int64      `json:"minSampleSize"`
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end,omitempty"`
	Status          string     `json:"status"`
	ChainFilter     *uint64    `json:"chainFilter,omitempty"`
	DexFilter       *string    `json:"dexFilter,omitempty"`
}

// persistExperiment writes the experiment record and registers its id in
// the experiments set, per the §6 key layout ("<prefix>experiment:<id>",
// "<prefix>experiments").
func (f *Framework) persistExperiment(exp *domain.Experiment) error {
	if f.store == nil {
		return nil
	}
	w := wireExperiment{
		ID: exp.ID, Name: exp.Name, ControlStrategy: exp.ControlStrategy, VariantStrategy: exp.VariantStrategy,
		TrafficSplit: exp.TrafficSplit, MinSampleSize: exp.MinSampleSize, Start: exp.Start, End: exp.End,
		Status: string(exp.Status), ChainFilter: exp.ChainFilter, DexFilter: exp.DexFilter,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return errs.New(errs.ABStoreUnavailable, "Framework.persistExperiment", err)
	}
	if err := f.store.Set(f.experimentKey(exp.ID), string(data)); err != nil {
		return errs.New(errs.ABStoreUnavailable, "Framework.persistExperiment", err)
	}
	if err := f.store.SAdd(f.experimentsSetKey(), exp.ID); err != nil {
		return errs.New(errs.ABStoreUnavailable, "Framework.persistExperiment", err)
	}
	return nil
}

func (f *Framework) experimentKey(id string) string {
	return f.cfg.KeyPrefix + "experiment:" + id
}

func (f *Framework) experimentsSetKey() string {
	return f.cfg.KeyPrefix + "experiments"
}
