package training

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bottomrun/internal/label"
)

// syntheticSeries builds a closes series with periodic sharp drops and
// strong rebounds so the bottom-event rule fires a mix of 0/1 labels,
// and feature vectors that are simple deterministic functions of the
// recent return so a classifier has real signal to learn.
func syntheticSeries(n int) ([]float64, [][]float64) {
	rng := rand.New(rand.NewSource(42))
	closes := make([]float64, n)
	closes[0] = 100
	for i := 1; i < n; i++ {
		drift := 0.0005
		noise := (rng.Float64() - 0.5) * 0.01
		if i%37 == 0 {
			noise -= 0.05 // sharp drop
		}
		if i%37 == 3 {
			noise += 0.06 // strong rebound
		}
		closes[i] = closes[i-1] * (1 + drift + noise)
	}

	features := make([][]float64, n)
	for i := range closes {
		var r1, r5 float64
		if i >= 1 {
			r1 = (closes[i] - closes[i-1]) / closes[i-1]
		}
		if i >= 5 {
			r5 = (closes[i] - closes[i-5]) / closes[i-5]
		}
		features[i] = []float64{r1, r5}
	}
	return closes, features
}

func TestBuildDataset_DropsPendingRows(t *testing.T) {
	closes, features := syntheticSeries(200)
	lp := label.Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}

	ds := BuildDataset(closes, features, lp)
	require.LessOrEqual(t, len(ds.Examples), len(closes)-lp.Lookahead)
	for _, ex := range ds.Examples {
		require.LessOrEqual(t, ex.AsOf+lp.Lookahead, len(closes)-1)
	}
}

func TestChronologicalSplit_HoldsOutTailWithoutShuffling(t *testing.T) {
	ds := Dataset{}
	for i := 0; i < 100; i++ {
		ds.Examples = append(ds.Examples, Example{AsOf: i, Features: []float64{float64(i)}, Label: i % 2})
	}
	train, val := ChronologicalSplit(ds, 0.2)
	require.Len(t, val.Examples, 20)
	require.Len(t, train.Examples, 80)
	require.Equal(t, 79, train.Examples[len(train.Examples)-1].AsOf)
	require.Equal(t, 80, val.Examples[0].AsOf)
}

func TestFitXGBLike_IsDeterministicForSameSeed(t *testing.T) {
	closes, features := syntheticSeries(300)
	lp := label.Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}
	ds := BuildDataset(closes, features, lp)
	require.Greater(t, len(ds.Examples), 10)

	m1, err := FitXGBLike(ds, 7)
	require.NoError(t, err)
	m2, err := FitXGBLike(ds, 7)
	require.NoError(t, err)

	require.Equal(t, m1.Weights, m2.Weights)
	require.InDelta(t, m1.Bias, m2.Bias, 1e-12)
}

func TestFitXGBLike_EmptyDatasetIsInsufficientData(t *testing.T) {
	_, err := FitXGBLike(Dataset{}, 1)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestEvaluate_MetricsAreBounded(t *testing.T) {
	closes, features := syntheticSeries(400)
	lp := label.Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}
	ds := BuildDataset(closes, features, lp)
	train, val := ChronologicalSplit(ds, 0.2)

	pred, err := FitXGBLike(train, 3)
	require.NoError(t, err)

	metrics, err := Evaluate(val, pred, "bottom", Params{Label: lp})
	require.NoError(t, err)
	require.GreaterOrEqual(t, metrics.AUC, 0.0)
	require.LessOrEqual(t, metrics.AUC, 1.0)
	require.GreaterOrEqual(t, metrics.Brier, 0.0)
	require.LessOrEqual(t, metrics.Brier, 1.0)
	require.False(t, math.IsNaN(metrics.ECE))
	require.Equal(t, len(val.Examples), metrics.Samples)
}
