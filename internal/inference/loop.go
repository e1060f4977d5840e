package inference

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/bottomrun/internal/apperr"
	"github.com/sawpanic/bottomrun/internal/features"
	"github.com/sawpanic/bottomrun/internal/inferlog"
	"github.com/sawpanic/bottomrun/internal/ohlcv"
	"github.com/sawpanic/bottomrun/internal/risk"
	"github.com/sawpanic/bottomrun/internal/trading"
)

// Family is the fixed model family this loop scores against.
const Family = "bottom_predictor"

// CandidateEmitter is the Trading Controller surface the loop drives once
// a bar crosses the decision threshold.
type CandidateEmitter interface {
	OnCandidate(ctx context.Context, cand trading.EntryCandidate, sess risk.Session, riskCand risk.EntryCandidate) (trading.Signal, error)
}

// SessionSource supplies the current risk session snapshot for the
// symbol, owned by the risk/trading subsystem rather than this loop.
type SessionSource interface {
	Session(ctx context.Context, symbol string) (risk.Session, error)
}

// Loop runs the Inference Auto-Loop for one (symbol, interval) pair.
type Loop struct {
	cfg Config

	bars      ohlcv.BarStore
	snapshots features.Store
	models    *ModelCache
	threshold *ThresholdSource
	logQueue  *LogQueue
	emitter   CandidateEmitter
	sessions  SessionSource

	mu           sync.Mutex
	lastSignalAt time.Time
	noDataTicks  int64
	noModelTicks int64
}

func NewLoop(cfg Config, bars ohlcv.BarStore, snapshots features.Store, models *ModelCache, threshold *ThresholdSource, logQueue *LogQueue, emitter CandidateEmitter, sessions SessionSource) *Loop {
	return &Loop{
		cfg:       cfg,
		bars:      bars,
		snapshots: snapshots,
		models:    models,
		threshold: threshold,
		logQueue:  logQueue,
		emitter:   emitter,
		sessions:  sessions,
	}
}

// Run blocks on cfg.LoopInterval ticks until ctx is cancelled, then drains
// the log queue within cfg.ShutdownGrace before returning.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logQueue.Close(l.cfg.ShutdownGrace)
			return
		case <-ticker.C:
			if _, err := l.Tick(ctx); err != nil {
				log.Warn().Err(err).Str("symbol", l.cfg.Symbol).Msg("inference tick")
			}
		}
	}
}

// Tick performs one full iteration using the loop's configured policy and
// pinned version: read the latest feature snapshot, load the effective
// model, score it, log the decision, and emit a trading candidate when
// warranted.
func (l *Loop) Tick(ctx context.Context) (Result, error) {
	return l.tick(ctx, l.cfg.Policy, l.cfg.Version)
}

// PredictWithOverride runs the same synchronous scoring path as Tick but
// with a caller-supplied policy/version, implementing GET /predict's
// use=latest|production&version= override without mutating the loop's
// own configuration.
func (l *Loop) PredictWithOverride(ctx context.Context, policy Policy, version *int) (Result, error) {
	return l.tick(ctx, policy, version)
}

func (l *Loop) tick(ctx context.Context, policy Policy, version *int) (Result, error) {
	tickCtx, cancel := context.WithTimeout(ctx, l.cfg.PredictTimeout)
	defer cancel()

	snap, ok, err := l.snapshots.GetLatest(tickCtx, l.cfg.Symbol, l.cfg.Interval)
	if err != nil {
		return Result{Status: StatusNoData, Hint: "feature snapshot read failed"}, err
	}
	if !ok {
		l.mu.Lock()
		l.noDataTicks++
		l.mu.Unlock()
		return Result{Status: StatusNoData, Hint: "no feature snapshot available yet"}, nil
	}

	if len(snap.Features) < len(features.Names) {
		return Result{Status: StatusInsufficientFeatures, Hint: "feature snapshot incomplete"}, nil
	}

	cm, err := l.models.Effective(tickCtx, Family, policy, version)
	if err != nil {
		l.mu.Lock()
		l.noModelTicks++
		l.mu.Unlock()
		return Result{Status: StatusNoModel, Hint: "no model artifact available"}, nil
	}

	prob, err := cm.predictor.Predict(snap.Vector())
	if err != nil {
		return Result{}, apperr.New(apperr.ContractViolation, "predict_failed", "predictor returned an error", err)
	}

	threshold := l.threshold.Effective(tickCtx)
	decision := 0
	if prob >= threshold {
		decision = 1
	}

	entry := inferlog.Entry{
		Symbol:           l.cfg.Symbol,
		Interval:         l.cfg.Interval,
		FeatureCloseTime: snap.CloseTime,
		Probability:      prob,
		Threshold:        threshold,
		Decision:         decision,
		ModelID:          cm.artifactID,
		ModelVersion:     cm.version,
		UsedProduction:   cm.production,
		Extra:            map[string]any{"target": inferlog.Target},
	}
	l.logQueue.Enqueue(entry)

	result := Result{
		Status:            StatusOK,
		Probability:       prob,
		Decision:          decision,
		Threshold:         threshold,
		ModelVersion:      cm.version,
		UsedProduction:    cm.production,
		FeatureAgeSeconds: time.Since(snap.CloseTime).Seconds(),
	}

	if decision == 1 {
		l.maybeEmitCandidate(tickCtx, snap)
	}

	return result, nil
}

func (l *Loop) maybeEmitCandidate(ctx context.Context, snap features.Snapshot) {
	l.mu.Lock()
	elapsed := time.Since(l.lastSignalAt)
	cooldown := time.Duration(l.cfg.CooldownSec) * time.Second
	if !l.lastSignalAt.IsZero() && elapsed < cooldown {
		l.mu.Unlock()
		return
	}
	l.lastSignalAt = time.Now()
	l.mu.Unlock()

	if l.emitter == nil {
		return
	}

	bars, err := l.bars.ListRecent(ctx, l.cfg.Symbol, l.cfg.Interval, 1)
	if err != nil || len(bars) == 0 {
		log.Warn().Err(err).Str("symbol", l.cfg.Symbol).Msg("inference candidate emission: latest bar unavailable")
		return
	}
	price := bars[0].Close

	sess, err := l.sessions.Session(ctx, l.cfg.Symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", l.cfg.Symbol).Msg("inference candidate emission: risk session unavailable")
		return
	}

	cand := trading.EntryCandidate{
		Symbol:   l.cfg.Symbol,
		Price:    price,
		Decision: 1,
		At:       snap.CloseTime,
	}
	riskCand := risk.EntryCandidate{
		EntryPrice: price,
	}

	if _, err := l.emitter.OnCandidate(ctx, cand, sess, riskCand); err != nil {
		log.Warn().Err(err).Str("symbol", l.cfg.Symbol).Msg("trading controller rejected candidate")
	}
}
