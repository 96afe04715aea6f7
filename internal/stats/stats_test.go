package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalCdf_KnownPoints(t *testing.T) {
	require.InDelta(t, 0.5, normalCdf(0), 1e-6)
	require.InDelta(t, 0.8413, normalCdf(1), 1e-3)
	require.InDelta(t, 0.1587, normalCdf(-1), 1e-3)
}

func TestTwoProportionsZScore_ZeroSampleSizeReturnsZero(t *testing.T) {
	require.Equal(t, 0.0, twoProportionsZScore(0, 0, 5, 10))
	require.Equal(t, 0.0, twoProportionsZScore(5, 10, 0, 0))
}

func TestCalculateSignificance_InsufficientSampleSizeContinuesTesting(t *testing.T) {
	r := calculateSignificance(SampleGroup{Successes: 1, SampleSize: 2}, SampleGroup{Successes: 1, SampleSize: 2}, 0.05, 100)
	require.False(t, r.Significant)
	require.Equal(t, RecommendationContinueTesting, r.Recommendation)
	require.NotEmpty(t, r.SampleSizeWarning)
}

func TestCalculateSignificance_ZeroSamplesBothGroupsNoDivByZero(t *testing.T) {
	r := calculateSignificance(SampleGroup{}, SampleGroup{}, 0.05, 100)
	require.False(t, math.IsNaN(r.PValue))
	require.False(t, math.IsInf(r.PValue, 0))
	require.Equal(t, RecommendationContinueTesting, r.Recommendation)
}

func TestCalculateSignificance_SignificantImprovementAdoptsVariant(t *testing.T) {
	control := SampleGroup{Successes: 50, SampleSize: 500}
	variant := SampleGroup{Successes: 120, SampleSize: 500}
	r := calculateSignificance(control, variant, 0.05, 100)
	require.True(t, r.Significant)
	require.Equal(t, RecommendationAdoptVariant, r.Recommendation)
	require.Greater(t, r.EffectSize, 0.0)
}

func TestCalculateRequiredSampleSize_ZeroMdeIsInfinite(t *testing.T) {
	require.True(t, math.IsInf(calculateRequiredSampleSize(0.1, 0, 0.8, 0.05), 1))
}

func TestEstimateTimeToSignificance(t *testing.T) {
	require.Equal(t, 0.0, EstimateTimeToSignificance(200, 100, 10))
	require.True(t, math.IsInf(EstimateTimeToSignificance(0, 100, 0), 1))
	require.InDelta(t, 10.0, EstimateTimeToSignificance(0, 100, 10), 1e-9)
}

func TestShouldStopEarly_BelowQuarterNeverStops(t *testing.T) {
	stop, alpha := ShouldStopEarly(0.0001, 10, 1000, 0.05)
	require.False(t, stop)
	require.Equal(t, 0.0001, alpha)
}

func TestShouldStopEarly_AdjustedAlphaMonotonicInT(t *testing.T) {
	_, alphaAtHalf := ShouldStopEarly(1, 500, 1000, 0.05)
	_, alphaAtFull := ShouldStopEarly(1, 1000, 1000, 0.05)
	require.LessOrEqual(t, alphaAtHalf, alphaAtFull)
}

func TestWilsonConfidenceInterval95_ZeroSampleSize(t *testing.T) {
	ci := WilsonConfidenceInterval95(0, 0)
	require.Equal(t, ConfidenceInterval{}, ci)
}
