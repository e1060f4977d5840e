package calibration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompute_EmptySamplesIsNoData(t *testing.T) {
	r := Compute(nil, 10, 5)
	require.Equal(t, 0, r.SampleCount)
}

func TestCompute_BrierAndECEBoundedAndBinCountsSumToSampleCount(t *testing.T) {
	samples := []Sample{
		{Probability: 0.05, Realized: 0},
		{Probability: 0.1, Realized: 0},
		{Probability: 0.5, Realized: 1},
		{Probability: 0.52, Realized: 0},
		{Probability: 0.9, Realized: 1},
		{Probability: 0.95, Realized: 1},
	}

	r := Compute(samples, 10, 1)
	require.GreaterOrEqual(t, r.ECE, 0.0)
	require.LessOrEqual(t, r.ECE, 1.0)
	require.GreaterOrEqual(t, r.Brier, 0.0)
	require.LessOrEqual(t, r.Brier, 1.0)
	require.GreaterOrEqual(t, r.MCE, 0.0)
	require.LessOrEqual(t, r.MCE, 1.0)

	sum := 0
	for _, b := range r.Bins {
		sum += b.Count
	}
	require.Equal(t, r.SampleCount, sum)
}

func TestBucket_MergesSparseBinsBelowMinimum(t *testing.T) {
	samples := []Sample{
		{Probability: 0.01, Realized: 0},
		{Probability: 0.99, Realized: 1},
		{Probability: 0.99, Realized: 1},
		{Probability: 0.99, Realized: 1},
	}

	bins := Bucket(samples, 10, 3)
	for _, b := range bins {
		require.True(t, b.Count == 0 || b.Count >= 3 || len(bins) == 1)
	}
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	require.Equal(t, 4, total)
}

func TestCompute_PerfectCalibrationYieldsZeroECE(t *testing.T) {
	var samples []Sample
	for i := 0; i < 10; i++ {
		samples = append(samples, Sample{Probability: 0.5, Realized: i % 2})
	}
	r := Compute(samples, 2, 1)
	require.InDelta(t, 0.0, r.ECE, 1e-9)
}
