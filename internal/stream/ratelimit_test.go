package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsUpToBurstThenBlocks(t *testing.T) {
	l := NewLimiter(1, 2)

	require.True(t, l.Allow("host-a"))
	require.True(t, l.Allow("host-a"))
	require.False(t, l.Allow("host-a"))
}

func TestLimiter_TracksHostsIndependently(t *testing.T) {
	l := NewLimiter(1, 1)

	require.True(t, l.Allow("host-a"))
	require.False(t, l.Allow("host-a"))
	require.True(t, l.Allow("host-b")) // separate bucket, unaffected by host-a
}

func TestLimiter_WaitUnblocksWhenTokenAvailable(t *testing.T) {
	l := NewLimiter(1000, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "host-a"))
	require.NoError(t, l.Wait(ctx, "host-a"))
}

func TestLimiter_SetRPSAppliesToExistingHost(t *testing.T) {
	l := NewLimiter(1, 1)
	l.Allow("host-a")
	l.SetRPS(1000)

	stats := l.Stats()
	require.Contains(t, stats, "host-a")
}
