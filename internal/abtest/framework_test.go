package abtest

import (
	"math/big"
	"testing"
	"time"

	"github.com/arbcore/detector/internal/config"
	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/store"
	"github.com/stretchr/testify/require"
)

func testCfg() *config.ExperimentConfig {
	return &config.ExperimentConfig{
		Enabled:              true,
		RefreshInterval:      50 * time.Millisecond,
		KeyPrefix:            "arbcore:",
		DefaultMinSampleSize: 100,
	}
}

func TestAssignVariant_DeterministicAcrossCalls(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	exp, err := f.CreateExperiment(CreateExperimentParams{Name: "exp1", TrafficSplit: 0.5})
	require.NoError(t, err)
	require.NoError(t, f.UpdateExperimentStatus(exp.ID, domain.StatusRunning))
	f.refreshRunningCache()

	v1, ok1 := f.AssignVariant(exp.ID, "opp-123-abc")
	v2, ok2 := f.AssignVariant(exp.ID, "opp-123-abc")
	v3, ok3 := f.AssignVariant(exp.ID, "opp-123-abc")
	require.True(t, ok1)
	require.True(t, ok2)
	require.True(t, ok3)
	require.Equal(t, v1, v2)
	require.Equal(t, v2, v3)
}

func TestAssignVariant_NotRunningReturnsNone(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	exp, err := f.CreateExperiment(CreateExperimentParams{Name: "exp1", TrafficSplit: 0.5})
	require.NoError(t, err)
	f.refreshRunningCache()

	_, ok := f.AssignVariant(exp.ID, "opp-1")
	require.False(t, ok)
}

func TestAssignVariant_DisabledFrameworkReturnsNone(t *testing.T) {
	cfg := testCfg()
	cfg.Enabled = false
	f := NewFramework(cfg, store.NewMemoryStore(), nil)
	exp, err := f.CreateExperiment(CreateExperimentParams{Name: "exp1", TrafficSplit: 0.5})
	require.NoError(t, err)
	require.NoError(t, f.UpdateExperimentStatus(exp.ID, domain.StatusRunning))
	f.refreshRunningCache()

	_, ok := f.AssignVariant(exp.ID, "opp-1")
	require.False(t, ok)
}

func TestFNV1aHash32_KnownValue(t *testing.T) {
	// FNV-1a 32-bit of the empty string is the canonical offset basis.
	require.Equal(t, uint32(0x811c9dc5), fnv1aHash32(""))
}

func TestAssignVariant_SplitBoundaryRespectsAllOrNothing(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	exp, err := f.CreateExperiment(CreateExperimentParams{Name: "exp1", TrafficSplit: 0})
	require.NoError(t, err)
	require.NoError(t, f.UpdateExperimentStatus(exp.ID, domain.StatusRunning))
	f.refreshRunningCache()

	v, ok := f.AssignVariant(exp.ID, "anything")
	require.True(t, ok)
	require.Equal(t, domain.VariantControl, v)
}

func TestRecordResult_AccumulatesAndSummaryComputesSignificance(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	exp, err := f.CreateExperiment(CreateExperimentParams{Name: "exp1", TrafficSplit: 0.5, MinSampleSize: 2})
	require.NoError(t, err)
	require.NoError(t, f.UpdateExperimentStatus(exp.ID, domain.StatusRunning))

	for i := 0; i < 5; i++ {
		require.NoError(t, f.RecordResult(exp.ID, domain.VariantControl, domain.ExecutionOutcome{Success: true, Profit: big.NewInt(10), GasCost: big.NewInt(1)}, 100, false))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, f.RecordResult(exp.ID, domain.VariantVariant, domain.ExecutionOutcome{Success: false, Profit: big.NewInt(0), GasCost: big.NewInt(1)}, 150, false))
	}

	summary, err := f.GetExperimentSummary(exp.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), summary.Control.SampleSize)
	require.Equal(t, int64(5), summary.VariantView.SampleSize)
	require.True(t, summary.ReadyForConclusion || summary.Recommendation == "keep_control")
}

func TestRecordResult_UnknownExperimentErrors(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	err := f.RecordResult("nope", domain.VariantControl, domain.ExecutionOutcome{Success: true}, 1, false)
	require.Error(t, err)
}

func TestStop_RejectsSubsequentRecordResult(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	exp, err := f.CreateExperiment(CreateExperimentParams{Name: "exp1", TrafficSplit: 0.5})
	require.NoError(t, err)
	f.Stop()

	err = f.RecordResult(exp.ID, domain.VariantControl, domain.ExecutionOutcome{Success: true}, 1, false)
	require.Error(t, err)
}

func TestAssignAllVariants_RespectsChainFilter(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	chain1 := uint64(1)
	chain2 := uint64(2)
	exp1, err := f.CreateExperiment(CreateExperimentParams{Name: "e1", TrafficSplit: 0.5, ChainFilter: &chain1})
	require.NoError(t, err)
	exp2, err := f.CreateExperiment(CreateExperimentParams{Name: "e2", TrafficSplit: 0.5, ChainFilter: &chain2})
	require.NoError(t, err)
	require.NoError(t, f.UpdateExperimentStatus(exp1.ID, domain.StatusRunning))
	require.NoError(t, f.UpdateExperimentStatus(exp2.ID, domain.StatusRunning))
	f.refreshRunningCache()

	out := f.AssignAllVariants("fingerprint", &chain1, nil)
	require.Contains(t, out, exp1.ID)
	require.NotContains(t, out, exp2.ID)
}

func TestExperimentID_SlugifiesNameAndTimestamp(t *testing.T) {
	ts := time.Unix(1234567890, 0)
	id := experimentID("Fee Tier A/B v2!!", ts)
	require.Equal(t, "fee-tier-a-b-v2-kf12oi", id)
}

func TestUpdateExperimentStatus_RejectsIllegalTransition(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	exp, err := f.CreateExperiment(CreateExperimentParams{Name: "exp1", TrafficSplit: 0.5})
	require.NoError(t, err)
	require.NoError(t, f.UpdateExperimentStatus(exp.ID, domain.StatusRunning))
	require.NoError(t, f.UpdateExperimentStatus(exp.ID, domain.StatusCompleted))

	err = f.UpdateExperimentStatus(exp.ID, domain.StatusRunning)
	require.Error(t, err)

	got, getErr := f.GetExperiment(exp.ID)
	require.NoError(t, getErr)
	require.Equal(t, domain.StatusCompleted, got.Status)
}

func TestListExperiments_FiltersByStatus(t *testing.T) {
	f := NewFramework(testCfg(), store.NewMemoryStore(), nil)
	exp1, err := f.CreateExperiment(CreateExperimentParams{Name: "e1", TrafficSplit: 0.5})
	require.NoError(t, err)
	_, err = f.CreateExperiment(CreateExperimentParams{Name: "e2", TrafficSplit: 0.5})
	require.NoError(t, err)
	require.NoError(t, f.UpdateExperimentStatus(exp1.ID, domain.StatusRunning))

	running := domain.StatusRunning
	out := f.ListExperiments(&running)
	require.Len(t, out, 1)
	require.Equal(t, exp1.ID, out[0].ID)
}
