package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff_DoublesUntilCap(t *testing.T) {
	b := &Backoff{Base: 1 * time.Second, Cap: 10 * time.Second, Jitter: 0}

	require.Equal(t, 1*time.Second, b.Next())
	require.Equal(t, 2*time.Second, b.Next())
	require.Equal(t, 4*time.Second, b.Next())
	require.Equal(t, 8*time.Second, b.Next())
	require.Equal(t, 10*time.Second, b.Next()) // 16s would exceed cap
}

func TestBackoff_JitterNeverExceedsConfiguredBound(t *testing.T) {
	b := &Backoff{Base: 1 * time.Second, Cap: 60 * time.Second, Jitter: 250 * time.Millisecond}
	for i := 0; i < 20; i++ {
		d := b.Next()
		require.LessOrEqual(t, d, 60*time.Second+250*time.Millisecond)
	}
}

func TestBackoff_ResetReturnsToBase(t *testing.T) {
	b := &Backoff{Base: 1500 * time.Millisecond, Cap: 60 * time.Second, Jitter: 0}
	b.Next()
	b.Next()
	b.Reset()
	require.Equal(t, 1500*time.Millisecond, b.Next())
}

func TestNewBackoff_MatchesReconnectPolicyDefaults(t *testing.T) {
	b := NewBackoff()
	require.Equal(t, 1500*time.Millisecond, b.Base)
	require.Equal(t, 60*time.Second, b.Cap)
	require.Equal(t, 250*time.Millisecond, b.Jitter)
}
