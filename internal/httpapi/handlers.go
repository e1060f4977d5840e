package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sawpanic/bottomrun/internal/apperr"
	"github.com/sawpanic/bottomrun/internal/calibration"
	"github.com/sawpanic/bottomrun/internal/inference"
	"github.com/sawpanic/bottomrun/internal/label"
	"github.com/sawpanic/bottomrun/internal/settings"
)

// handlePredict serves GET /predict per spec section 6.2. symbol and
// interval are validated against the single stream this deployment
// serves; use selects production (default) or latest, version pins a
// specific artifact version.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if sym := q.Get("symbol"); sym != "" && sym != s.deps.Symbol {
		s.writeError(w, r, http.StatusBadRequest, "unknown_symbol", "this deployment only serves "+s.deps.Symbol)
		return
	}
	if iv := q.Get("interval"); iv != "" && iv != s.deps.Interval {
		s.writeError(w, r, http.StatusBadRequest, "unknown_interval", "this deployment only serves "+s.deps.Interval)
		return
	}

	var result inference.Result
	var err error

	if useParam := q.Get("use"); useParam != "" || q.Get("version") != "" {
		policy := inference.UseProduction
		if useParam == "latest" {
			policy = inference.UseLatest
		}
		var version *int
		if vStr := q.Get("version"); vStr != "" {
			v, perr := strconv.Atoi(vStr)
			if perr != nil {
				s.writeError(w, r, http.StatusBadRequest, "invalid_version", "version must be an integer")
				return
			}
			version = &v
		}
		result, err = s.deps.Predictor.PredictWithOverride(r.Context(), policy, version)
	} else {
		result, err = s.deps.Predictor.Tick(r.Context())
	}

	if err != nil && !apperr.IsKind(err, apperr.DataAbsence) {
		s.writeError(w, r, http.StatusInternalServerError, "predict_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Status:            result.Status,
		Probability:       result.Probability,
		Decision:          result.Decision,
		Threshold:         result.Threshold,
		ModelVersion:      result.ModelVersion,
		UsedProduction:    result.UsedProduction,
		FeatureAgeSeconds: result.FeatureAgeSeconds,
		Hint:              result.Hint,
	})
}

// handleLabelerRun serves POST /labeler/run per spec section 6.2.
func (s *Server) handleLabelerRun(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minAge := parseDurationSeconds(q.Get("min_age_seconds"), 0)
	limit := parseInt(q.Get("limit"), labelerDefaultLimit)
	lp := label.Params{
		Lookahead: parseInt(q.Get("lookahead"), labelerDefaultLookahead),
		Drawdown:  parseFloat(q.Get("drawdown"), labelerDefaultDrawdown),
		Rebound:   parseFloat(q.Get("rebound"), labelerDefaultRebound),
	}

	res, err := s.deps.Labeler.RunEager(r.Context(), minAge, limit, lp)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "labeler_run_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LabelerRunResponse{
		Status:       "ok",
		LabeledCount: res.Realized,
		PendingCount: res.StillPending,
	})
}

const (
	labelerDefaultLimit     = 200
	labelerDefaultLookahead = 5
	labelerDefaultDrawdown  = 0.01
	labelerDefaultRebound   = 0.005
)

// handleCalibrationLive serves GET /calibration/live per spec section 6.2.
func (s *Server) handleCalibrationLive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	windowSec, _ := s.deps.Cache.GetDurationSeconds(ctx, settings.CalibrationLiveWindowSeconds, time.Hour)
	if ws := q.Get("window_seconds"); ws != "" {
		windowSec = time.Duration(parseInt(ws, int(windowSec.Seconds()))) * time.Second
	}
	bins, _ := s.deps.Cache.GetInt(ctx, settings.CalibrationLiveBins, 10)
	if b := q.Get("bins"); b != "" {
		bins = parseInt(b, bins)
	}

	attemptedEager := false
	samples, err := s.loadLiveSamples(ctx, windowSec)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "calibration_read_failed", err.Error())
		return
	}

	if len(samples) == 0 && q.Get("eager_label") == "true" {
		attemptedEager = true
		minAge := parseDurationSeconds(q.Get("eager_min_age_seconds"), 0)
		limit := parseInt(q.Get("eager_limit"), labelerDefaultLimit)
		lp := label.Params{Lookahead: labelerDefaultLookahead, Drawdown: labelerDefaultDrawdown, Rebound: labelerDefaultRebound}
		if _, err := s.deps.Labeler.RunEager(ctx, minAge, limit, lp); err != nil {
			s.writeError(w, r, http.StatusInternalServerError, "eager_label_failed", err.Error())
			return
		}
		samples, err = s.loadLiveSamples(ctx, windowSec)
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, "calibration_read_failed", err.Error())
			return
		}
	}

	if len(samples) == 0 {
		writeJSON(w, http.StatusOK, CalibrationLiveResponse{Status: "no_data", AttemptedEagerLabel: attemptedEager})
		return
	}

	report := calibration.Compute(samples, bins, 1)
	bv := make([]BinView, len(report.Bins))
	for i, b := range report.Bins {
		bv[i] = BinView{Index: b.Index, Count: b.Count, MeanPredProb: b.MeanPredProb, EmpiricalProb: b.EmpiricalProb}
	}
	count := report.SampleCount

	writeJSON(w, http.StatusOK, CalibrationLiveResponse{
		Status:              "ok",
		ECE:                 &report.ECE,
		MCE:                 &report.MCE,
		Brier:               &report.Brier,
		ReliabilityBins:     bv,
		AttemptedEagerLabel: attemptedEager,
		SampleCount:         &count,
	})
}

func (s *Server) loadLiveSamples(ctx context.Context, windowSec time.Duration) ([]calibration.Sample, error) {
	entries, err := s.deps.Logs.RealizedSince(ctx, time.Now().Add(-windowSec), 0)
	if err != nil {
		return nil, err
	}
	samples := make([]calibration.Sample, 0, len(entries))
	for _, e := range entries {
		if e.Realized == nil {
			continue
		}
		samples = append(samples, calibration.Sample{Probability: e.Probability, Realized: *e.Realized})
	}
	return samples, nil
}

// handleDelta serves GET /delta per spec section 6.2.
func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	symbol := q.Get("symbol")
	if symbol == "" {
		symbol = s.deps.Symbol
	}
	interval := q.Get("interval")
	if interval == "" {
		interval = s.deps.Interval
	}
	limit := parseInt(q.Get("limit"), 500)

	earliest, ok, err := s.deps.Bars.Earliest(ctx, symbol, interval)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "delta_read_failed", err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, DeltaResponse{Candles: []DeltaCandle{}, Repairs: []DeltaRepair{}})
		return
	}

	sinceMillis := q.Get("since")
	since := earliest.OpenTime
	if sinceMillis != "" {
		ms, perr := strconv.ParseInt(sinceMillis, 10, 64)
		if perr != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_since", "since must be a unix millis open_time")
			return
		}
		since = time.UnixMilli(ms)
	}

	if since.Before(earliest.OpenTime) {
		s.writeError(w, r, http.StatusBadRequest, "since_out_of_range", "since predates the oldest retained bar")
		return
	}

	bars, err := s.deps.Bars.ListRange(ctx, symbol, interval, since, time.Now())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "delta_read_failed", err.Error())
		return
	}

	truncated := false
	if len(bars) > limit {
		bars = bars[:limit]
		truncated = true
	}

	candles := make([]DeltaCandle, len(bars))
	var baseTo time.Time
	for i, b := range bars {
		candles[i] = DeltaCandle{OpenTime: b.OpenTime, CloseTime: b.CloseTime, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		if b.CloseTime.After(baseTo) {
			baseTo = b.CloseTime
		}
	}

	var repairs []DeltaRepair
	if s.deps.Gaps != nil {
		segs, gerr := s.deps.Gaps.ListOpen(ctx, symbol, interval)
		if gerr == nil {
			for _, seg := range segs {
				if seg.ToTS.Before(since) {
					continue
				}
				repairs = append(repairs, DeltaRepair{FromTS: seg.FromTS, ToTS: seg.ToTS, State: string(seg.State)})
			}
		}
	}
	if repairs == nil {
		repairs = []DeltaRepair{}
	}

	writeJSON(w, http.StatusOK, DeltaResponse{
		BaseFrom:  since,
		BaseTo:    baseTo,
		Candles:   candles,
		Repairs:   repairs,
		Truncated: truncated,
	})
}

// handleMonitorStatus serves POST /monitor/calibration/status per spec
// section 6.2: a read-only snapshot of the drift monitor.
func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Monitor == nil {
		writeJSON(w, http.StatusOK, MonitorStatusResponse{Enabled: false})
		return
	}

	state := s.deps.Monitor.Snapshot()
	params := s.deps.Monitor.Params()

	writeJSON(w, http.StatusOK, MonitorStatusResponse{
		Enabled:          true,
		AbsStreak:        state.AbsStreak,
		RelStreak:        state.RelStreak,
		LastSnapshot:     state.LastSnapshot,
		Thresholds:       Thresholds{ECEAbs: params.ECEAbs, ECERel: params.ECERel},
		RecommendRetrain: state.RecommendRetrain,
		Reasons:          state.Reasons,
		MinSamples:       params.MinSamples,
	})
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseDurationSeconds(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(v * float64(time.Second))
}
