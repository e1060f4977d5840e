package inferlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppend_AssignsIDAndCreatedAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	e, err := m.Append(ctx, Entry{Symbol: "BTCUSD", Interval: "1m", Probability: 0.7})
	require.NoError(t, err)
	require.NotZero(t, e.ID)
	require.False(t, e.CreatedAt.IsZero())
}

func TestMarkRealized_SingleWriteOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	e, _ := m.Append(ctx, Entry{Symbol: "BTCUSD", FeatureCloseTime: time.Now().Add(-time.Hour)})

	require.NoError(t, m.MarkRealized(ctx, e.ID, 1, time.Now()))

	err := m.MarkRealized(ctx, e.ID, 0, time.Now())
	require.ErrorIs(t, err, ErrAlreadyRealized)

	got, err := m.Get(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Realized)
	require.Equal(t, 1, *got.Realized)
}

func TestUnrealized_ExcludesTooRecentAndAlreadyRealized(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	old, _ := m.Append(ctx, Entry{Symbol: "BTCUSD", FeatureCloseTime: time.Now().Add(-2 * time.Hour)})
	_, _ = m.Append(ctx, Entry{Symbol: "BTCUSD", FeatureCloseTime: time.Now()})
	realizedAlready, _ := m.Append(ctx, Entry{Symbol: "BTCUSD", FeatureCloseTime: time.Now().Add(-2 * time.Hour)})
	require.NoError(t, m.MarkRealized(ctx, realizedAlready.ID, 1, time.Now()))

	out, err := m.Unrealized(ctx, time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, old.ID, out[0].ID)
}

func TestUnrealized_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < 5; i++ {
		_, _ = m.Append(ctx, Entry{Symbol: "BTCUSD", FeatureCloseTime: time.Now().Add(-2 * time.Hour)})
	}

	out, err := m.Unrealized(ctx, time.Hour, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
}

func TestMarkRealized_NotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.MarkRealized(ctx, 999, 1, time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}
