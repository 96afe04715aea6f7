package domain

import (
	"math/big"
	"time"
)

// ExperimentStatus is the lifecycle state of an A/B experiment.
type ExperimentStatus string

const (
	StatusDraft     ExperimentStatus = "draft"
	StatusRunning   ExperimentStatus = "running"
	StatusPaused    ExperimentStatus = "paused"
	StatusCompleted ExperimentStatus = "completed"
	StatusCancelled ExperimentStatus = "cancelled"
)

// Variant identifies which arm of an experiment an opportunity was
// assigned to.
type Variant string

const (
	VariantControl Variant = "control"
	VariantVariant Variant = "variant"
)

// Experiment is mutable during its lifetime; §3 invariants: Start <= End
// when End is set, TrafficSplit in [0,1], exactly one Status value.
type Experiment struct {
	ID              string
	Name            string
	ControlStrategy string
	VariantStrategy string
	TrafficSplit    float64
	MinSampleSize   int64
	Start           time.Time
	End             *time.Time
	Status          ExperimentStatus
	ChainFilter     *uint64
	DexFilter       *string
}

// ExperimentMetrics accumulates monotonically non-decreasing counters for
// one variant of one experiment.
type ExperimentMetrics struct {
	SuccessCount      int64
	FailureCount      int64
	TotalProfit       *big.Int
	TotalGasCost      *big.Int
	TotalLatencyMs    int64
	MevFrontrunCount  int64
	FirstExecutionAt  *time.Time
	LastExecutionAt   *time.Time
}

// View is the derived, read-only projection of ExperimentMetrics used for
// significance computation and summaries.
type View struct {
	SuccessCount     int64
	FailureCount     int64
	SampleSize       int64
	SuccessRate      float64
	AverageProfit    float64
	AverageGasCost   float64
	AverageLatencyMs float64
	MevFrontrunRate  float64
}

// Derive computes the read-only view from accumulated counters.
func (m *ExperimentMetrics) Derive() View {
	sampleSize := m.SuccessCount + m.FailureCount
	v := View{
		SuccessCount: m.SuccessCount,
		FailureCount: m.FailureCount,
		SampleSize:   sampleSize,
	}
	if sampleSize > 0 {
		v.SuccessRate = float64(m.SuccessCount) / float64(sampleSize)
		v.MevFrontrunRate = float64(m.MevFrontrunCount) / float64(sampleSize)
		v.AverageLatencyMs = float64(m.TotalLatencyMs) / float64(sampleSize)
		if m.TotalProfit != nil {
			profit := new(big.Float).SetInt(m.TotalProfit)
			profit.Quo(profit, big.NewFloat(float64(sampleSize)))
			v.AverageProfit, _ = profit.Float64()
		}
		if m.TotalGasCost != nil {
			gas := new(big.Float).SetInt(m.TotalGasCost)
			gas.Quo(gas, big.NewFloat(float64(sampleSize)))
			v.AverageGasCost, _ = gas.Float64()
		}
	}
	return v
}

// ExecutionOutcome is the caller-reported result of acting on an
// opportunity, fed into recordResult.
type ExecutionOutcome struct {
	Success bool
	Profit  *big.Int
	GasCost *big.Int
}

// ExperimentSummary is the output of getExperimentSummary.
type ExperimentSummary struct {
	Experiment          *Experiment
	Control             View
	VariantView         View
	PValue              float64
	Significant         bool
	ZScore              float64
	EffectSize          float64
	Recommendation      string
	SampleSizeWarning   string
	ReadyForConclusion  bool
	RuntimeSeconds       float64
}
