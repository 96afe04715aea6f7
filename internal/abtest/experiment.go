// Package abtest implements C6: the A/B testing framework — experiment
// lifecycle, O(1) hot-path variant assignment, result recording with
// write-through persistence, and significance summaries fed by
// internal/stats (C7). Grounded on the teacher's own pattern of an
// in-memory map guarded by a mutex with a periodic external-store
// refresh (blackhole.go's pool-state cache), generalized to experiments.
package abtest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/errs"
)

// CreateExperimentParams is the input to CreateExperiment.
type CreateExperimentParams struct {
	Name            string
	ControlStrategy string
	VariantStrategy string
	TrafficSplit    float64
	MinSampleSize   int64
	ChainFilter     *uint64
	DexFilter       *string
}

// CreateExperiment allocates a new experiment in draft status.
func (f *Framework) CreateExperiment(p CreateExperimentParams) (*domain.Experiment, error) {
	if p.TrafficSplit < 0 || p.TrafficSplit > 1 {
		return nil, fmt.Errorf("Framework.CreateExperiment: trafficSplit must be in [0,1], got %f", p.TrafficSplit)
	}
	minSampleSize := p.MinSampleSize
	if minSampleSize == 0 {
		minSampleSize = f.cfg.DefaultMinSampleSize
	}

	exp := &domain.Experiment{
		ID:              experimentID(p.Name, time.Now()),
		Name:            p.Name,
		ControlStrategy: p.ControlStrategy,
		VariantStrategy: p.VariantStrategy,
		TrafficSplit:    p.TrafficSplit,
		MinSampleSize:   minSampleSize,
		Start:           time.Now(),
		Status:          domain.StatusDraft,
		ChainFilter:     p.ChainFilter,
		DexFilter:       p.DexFilter,
	}

	f.mu.Lock()
	f.experiments[exp.ID] = exp
	f.metrics[exp.ID] = newVariantMetrics()
	f.mu.Unlock()

	if err := f.persistExperiment(exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// experimentID derives the identifier spec §3 mandates: name + base-36
// timestamp, lowercased, with runs of non-alphanumerics collapsed to a
// single dash.
func experimentID(name string, now time.Time) string {
	raw := name + "-" + strconv.FormatInt(now.Unix(), 36)
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// validStatusTransitions is the §3 experiment lifecycle: draft, running and
// paused can still move; completed and cancelled are terminal.
var validStatusTransitions = map[domain.ExperimentStatus]map[domain.ExperimentStatus]bool{
	domain.StatusDraft:   {domain.StatusRunning: true, domain.StatusCancelled: true},
	domain.StatusRunning: {domain.StatusPaused: true, domain.StatusCompleted: true, domain.StatusCancelled: true},
	domain.StatusPaused:  {domain.StatusRunning: true, domain.StatusCancelled: true},
}

// GetExperiment looks up one experiment by id.
func (f *Framework) GetExperiment(id string) (*domain.Experiment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	exp, ok := f.experiments[id]
	if !ok {
		return nil, errs.New(errs.ABExperimentNotFound, "Framework.GetExperiment", fmt.Errorf("experiment %q not found", id))
	}
	return exp, nil
}

// ListExperiments returns every experiment, optionally filtered by status.
func (f *Framework) ListExperiments(statusFilter *domain.ExperimentStatus) []*domain.Experiment {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*domain.Experiment, 0, len(f.experiments))
	for _, exp := range f.experiments {
		if statusFilter != nil && exp.Status != *statusFilter {
			continue
		}
		out = append(out, exp)
	}
	return out
}

// UpdateExperimentStatus transitions an experiment's status and marks End
// on terminal transitions (completed/cancelled).
func (f *Framework) UpdateExperimentStatus(id string, status domain.ExperimentStatus) error {
	f.mu.Lock()
	exp, ok := f.experiments[id]
	if !ok {
		f.mu.Unlock()
		return errs.New(errs.ABExperimentNotFound, "Framework.UpdateExperimentStatus", fmt.Errorf("experiment %q not found", id))
	}
	if exp.Status != status && !validStatusTransitions[exp.Status][status] {
		f.mu.Unlock()
		return errs.New(errs.ABInvalidStatusTransition, "Framework.UpdateExperimentStatus",
			fmt.Errorf("experiment %q: cannot transition from %s to %s", id, exp.Status, status))
	}
	exp.Status = status
	if status == domain.StatusCompleted || status == domain.StatusCancelled {
		now := time.Now()
		exp.End = &now
	}
	f.mu.Unlock()

	return f.persistExperiment(exp)
}
