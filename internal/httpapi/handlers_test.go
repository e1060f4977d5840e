package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bottomrun/internal/calibration"
	"github.com/sawpanic/bottomrun/internal/inference"
	"github.com/sawpanic/bottomrun/internal/inferlog"
	"github.com/sawpanic/bottomrun/internal/label"
	"github.com/sawpanic/bottomrun/internal/labeler"
	"github.com/sawpanic/bottomrun/internal/ohlcv"
	"github.com/sawpanic/bottomrun/internal/settings"
)

type fakePredictor struct {
	result         inference.Result
	err            error
	overrideCalled bool
	gotPolicy      inference.Policy
	gotVersion     *int
}

func (f *fakePredictor) Tick(ctx context.Context) (inference.Result, error) {
	return f.result, f.err
}

func (f *fakePredictor) PredictWithOverride(ctx context.Context, policy inference.Policy, version *int) (inference.Result, error) {
	f.overrideCalled = true
	f.gotPolicy = policy
	f.gotVersion = version
	return f.result, f.err
}

type fakeLabelerRunner struct {
	result labeler.Result
	err    error
}

func (f *fakeLabelerRunner) RunEager(ctx context.Context, minAge time.Duration, limit int, lp label.Params) (labeler.Result, error) {
	return f.result, f.err
}

func newTestServer(deps Deps) *Server {
	if deps.Cache == nil {
		deps.Cache = settings.NewCache(nil)
	}
	return NewServer(DefaultConfig(), deps)
}

func TestHandlePredict_DefaultUsesLoopTick(t *testing.T) {
	pred := &fakePredictor{result: inference.Result{Status: inference.StatusOK, Probability: 0.8, Decision: 1, ModelVersion: 3}}
	s := newTestServer(Deps{Predictor: pred, Symbol: "BTC-USD", Interval: "1m"})

	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, pred.overrideCalled)

	var body PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, 0.8, body.Probability)
}

func TestHandlePredict_UseLatestWithVersionOverridesPolicy(t *testing.T) {
	pred := &fakePredictor{result: inference.Result{Status: inference.StatusOK}}
	s := newTestServer(Deps{Predictor: pred, Symbol: "BTC-USD", Interval: "1m"})

	req := httptest.NewRequest(http.MethodGet, "/predict?use=latest&version=7", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, pred.overrideCalled)
	require.Equal(t, inference.UseLatest, pred.gotPolicy)
	require.NotNil(t, pred.gotVersion)
	require.Equal(t, 7, *pred.gotVersion)
}

func TestHandlePredict_UnknownSymbolRejected(t *testing.T) {
	pred := &fakePredictor{}
	s := newTestServer(Deps{Predictor: pred, Symbol: "BTC-USD", Interval: "1m"})

	req := httptest.NewRequest(http.MethodGet, "/predict?symbol=ETH-USD", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLabelerRun_MapsResultFields(t *testing.T) {
	lr := &fakeLabelerRunner{result: labeler.Result{Scanned: 10, Realized: 6, StillPending: 4}}
	s := newTestServer(Deps{Labeler: lr})

	req := httptest.NewRequest(http.MethodPost, "/labeler/run", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body LabelerRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 6, body.LabeledCount)
	require.Equal(t, 4, body.PendingCount)
}

func TestHandleLabelerRun_RequiresAPIKeyWhenConfigured(t *testing.T) {
	lr := &fakeLabelerRunner{}
	s := NewServer(Config{Addr: ":0", APIKey: "secret"}, Deps{Labeler: lr, Cache: settings.NewCache(nil)})

	req := httptest.NewRequest(http.MethodPost, "/labeler/run", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/labeler/run", nil)
	req2.Header.Set("X-API-Key", "secret")
	rec2 := httptest.NewRecorder()
	s.router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestHandleCalibrationLive_NoDataWithoutEagerLabel(t *testing.T) {
	logs := inferlog.NewMemory()
	s := newTestServer(Deps{Logs: logs})

	req := httptest.NewRequest(http.MethodGet, "/calibration/live", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body CalibrationLiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "no_data", body.Status)
	require.False(t, body.AttemptedEagerLabel)
}

func TestHandleCalibrationLive_EagerLabelTriggersRunEagerThenRereads(t *testing.T) {
	logs := inferlog.NewMemory()
	lr := &fakeLabelerRunner{result: labeler.Result{Realized: 1}}
	s := newTestServer(Deps{Logs: logs, Labeler: lr})

	req := httptest.NewRequest(http.MethodGet, "/calibration/live?eager_label=true", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body CalibrationLiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.AttemptedEagerLabel)
	require.Equal(t, "no_data", body.Status) // fake labeler does not actually write rows
}

func TestHandleCalibrationLive_ComputesReportOverRealizedSamples(t *testing.T) {
	logs := inferlog.NewMemory()
	ctx := context.Background()
	now := time.Now()
	realized1, realized0 := 1, 0
	e1, err := logs.Append(ctx, inferlog.Entry{Symbol: "BTC-USD", Interval: "1m", FeatureCloseTime: now.Add(-time.Minute), Probability: 0.9})
	require.NoError(t, err)
	e2, err := logs.Append(ctx, inferlog.Entry{Symbol: "BTC-USD", Interval: "1m", FeatureCloseTime: now.Add(-2 * time.Minute), Probability: 0.2})
	require.NoError(t, err)
	entries, err := logs.RealizedSince(ctx, now.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, entries, 0) // not realized yet

	require.NoError(t, logs.MarkRealized(ctx, e1.ID, realized1, now))
	require.NoError(t, logs.MarkRealized(ctx, e2.ID, realized0, now))

	s := newTestServer(Deps{Logs: logs})
	req := httptest.NewRequest(http.MethodGet, "/calibration/live?bins=2", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body CalibrationLiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.NotNil(t, body.SampleCount)
	require.Equal(t, 2, *body.SampleCount)
}

type fakeBarStoreForDelta struct {
	earliest   ohlcv.Bar
	earliestOK bool
	bars       []ohlcv.Bar
}

func (f *fakeBarStoreForDelta) Upsert(ctx context.Context, bar ohlcv.Bar) (bool, error) {
	return true, nil
}
func (f *fakeBarStoreForDelta) ListRecent(ctx context.Context, symbol, interval string, n int) ([]ohlcv.Bar, error) {
	return f.bars, nil
}
func (f *fakeBarStoreForDelta) ListRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]ohlcv.Bar, error) {
	return f.bars, nil
}
func (f *fakeBarStoreForDelta) Earliest(ctx context.Context, symbol, interval string) (ohlcv.Bar, bool, error) {
	return f.earliest, f.earliestOK, nil
}

func TestHandleDelta_NoBarsYieldsEmptyResponse(t *testing.T) {
	store := &fakeBarStoreForDelta{earliestOK: false}
	s := newTestServer(Deps{Bars: store, Symbol: "BTC-USD", Interval: "1m"})

	req := httptest.NewRequest(http.MethodGet, "/delta", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body DeltaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Candles)
}

func TestHandleDelta_SinceBeforeEarliestIsOutOfRange(t *testing.T) {
	earliest := ohlcv.Bar{OpenTime: time.Now()}
	store := &fakeBarStoreForDelta{earliest: earliest, earliestOK: true}
	s := newTestServer(Deps{Bars: store, Symbol: "BTC-USD", Interval: "1m"})

	since := earliest.OpenTime.Add(-time.Hour).UnixMilli()
	req := httptest.NewRequest(http.MethodGet, "/delta?since="+itoa64(since), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDelta_ReturnsCandlesWithinRange(t *testing.T) {
	earliest := ohlcv.Bar{OpenTime: time.Now().Add(-time.Hour)}
	bar := ohlcv.Bar{OpenTime: time.Now(), CloseTime: time.Now().Add(time.Minute), Close: 100}
	store := &fakeBarStoreForDelta{earliest: earliest, earliestOK: true, bars: []ohlcv.Bar{bar}}
	s := newTestServer(Deps{Bars: store, Symbol: "BTC-USD", Interval: "1m"})

	req := httptest.NewRequest(http.MethodGet, "/delta", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body DeltaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Candles, 1)
	require.Equal(t, 100.0, body.Candles[0].Close)
}

func TestHandleMonitorStatus_DisabledWhenMonitorNil(t *testing.T) {
	s := newTestServer(Deps{})

	req := httptest.NewRequest(http.MethodPost, "/monitor/calibration/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body MonitorStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Enabled)
}

func TestHandleMonitorStatus_ReportsSnapshotWhenEnabled(t *testing.T) {
	mon := calibration.NewMonitor(calibration.DriftParams{ECEAbs: 0.05, ECERel: 0.2, MinSamples: 30})
	s := newTestServer(Deps{Monitor: mon})

	req := httptest.NewRequest(http.MethodPost, "/monitor/calibration/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body MonitorStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Enabled)
	require.Equal(t, 0.05, body.Thresholds.ECEAbs)
}

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
