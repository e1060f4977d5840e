package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func testCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	return testutil.ToFloat64(c)
}

func TestNewCollector_RegistersWithoutPanic(t *testing.T) {
	c := NewCollector()
	require.NotNil(t, c)
	require.NotNil(t, c.Handler())
}

func TestNewCollector_CountersAreIndependentAcrossInstances(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.IngestorTicks.WithLabelValues("BTC-USD").Inc()

	require.Equal(t, float64(1), testCounterValue(t, a.IngestorTicks.WithLabelValues("BTC-USD")))
	require.Equal(t, float64(0), testCounterValue(t, b.IngestorTicks.WithLabelValues("BTC-USD")))
}

func TestCircuitState_MapsKnownStates(t *testing.T) {
	require.Equal(t, float64(0), CircuitState("closed"))
	require.Equal(t, float64(1), CircuitState("half-open"))
	require.Equal(t, float64(2), CircuitState("open"))
	require.Equal(t, float64(0), CircuitState("unknown"))
}
