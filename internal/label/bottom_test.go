package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssign_BottomPositive(t *testing.T) {
	closes := []float64{100, 99.5, 99.0, 98.5, 98.0, 98.6, 99.2}
	p := Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}

	out := Assign(closes, 0, p)
	require.False(t, out.Pending)
	assert.Equal(t, 1, out.Label)
	assert.InDelta(t, -0.02, out.Drop, 1e-9)
	assert.InDelta(t, 0.012244897959, out.Rise, 1e-9)
}

func TestAssign_BottomNegative_NoRebound(t *testing.T) {
	closes := []float64{100, 99, 98, 97, 96, 96.1, 96.2}
	p := Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}

	out := Assign(closes, 0, p)
	require.False(t, out.Pending)
	assert.Equal(t, 0, out.Label)
	assert.InDelta(t, -0.04, out.Drop, 1e-9)
	assert.InDelta(t, 0.0020833333, out.Rise, 1e-9)
}

func TestAssign_NoDrawdown(t *testing.T) {
	closes := []float64{100, 100.1, 100.2, 100.3, 100.4, 100.5, 100.6}
	p := Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}

	out := Assign(closes, 0, p)
	require.False(t, out.Pending)
	assert.Equal(t, 0, out.Label)
}

func TestAssign_Pending_WhenHorizonExceedsSeries(t *testing.T) {
	closes := []float64{100, 99, 98, 97, 96, 96.1, 96.2}
	p := Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}

	out := Assign(closes, 1, p) // t+H = 7 > n-1 = 6
	assert.True(t, out.Pending)
}

func TestAssign_Idempotent(t *testing.T) {
	closes := []float64{100, 99.5, 99.0, 98.5, 98.0, 98.6, 99.2}
	p := Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}

	a := Assign(closes, 0, p)
	b := Assign(closes, 0, p)
	assert.Equal(t, a, b)
}

func TestAssignAll_MarksPendingTail(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	p := Params{Lookahead: 6, Drawdown: 0.01, Rebound: 0.01}

	outs := AssignAll(closes, p)
	require.Len(t, outs, 10)
	for idx, o := range outs {
		if idx+p.Lookahead > len(closes)-1 {
			assert.True(t, o.Pending, "index %d should be pending", idx)
		} else {
			assert.False(t, o.Pending, "index %d should be defined", idx)
		}
	}
}
