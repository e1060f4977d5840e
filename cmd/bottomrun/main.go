package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/bottomrun/internal/cache"
	"github.com/sawpanic/bottomrun/internal/calibration"
	"github.com/sawpanic/bottomrun/internal/config"
	"github.com/sawpanic/bottomrun/internal/features"
	"github.com/sawpanic/bottomrun/internal/httpapi"
	"github.com/sawpanic/bottomrun/internal/inference"
	"github.com/sawpanic/bottomrun/internal/inferlog"
	"github.com/sawpanic/bottomrun/internal/label"
	"github.com/sawpanic/bottomrun/internal/labeler"
	"github.com/sawpanic/bottomrun/internal/metrics"
	"github.com/sawpanic/bottomrun/internal/model"
	"github.com/sawpanic/bottomrun/internal/ohlcv"
	"github.com/sawpanic/bottomrun/internal/promotion"
	"github.com/sawpanic/bottomrun/internal/registry"
	"github.com/sawpanic/bottomrun/internal/risk"
	"github.com/sawpanic/bottomrun/internal/scheduler"
	"github.com/sawpanic/bottomrun/internal/settings"
	"github.com/sawpanic/bottomrun/internal/stream"
	"github.com/sawpanic/bottomrun/internal/trading"
	"github.com/sawpanic/bottomrun/internal/training"
)

const (
	appName = "bottomrun"
	version = "v0.1.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Bottom-detector prediction platform: ingest, infer, label, calibrate, trade.",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (optional, env vars always apply)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLabelerCmd())
	rootCmd.AddCommand(newTrainCmd())
	rootCmd.AddCommand(newPromoteCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("bottomrun: command failed")
		os.Exit(1)
	}
}

// platform bundles every wired component a command might need, built once
// from AppConfig and torn down via Close.
type platform struct {
	cfg config.AppConfig

	db       *config.DBManager
	bars     ohlcv.BarStore
	gaps     ohlcv.GapStore
	feats    features.Store
	logs     inferlog.Store
	reg      registry.Registry
	setStore settings.Store
	tradeSt  trading.Store
	promoSt  promotion.Store

	settingsCache *settings.Cache
	byteCache     cache.Cache

	ingestor   *ohlcv.Ingestor
	streamCli  *stream.Client
	restSource *stream.RESTSource
	featEngine *features.Engine

	riskEngine *risk.Engine
	sessions   *risk.SessionTracker
	controller *trading.Controller

	modelCache *inference.ModelCache
	threshold  *inference.ThresholdSource
	logQueue   *inference.LogQueue
	loop       *inference.Loop

	labelerSvc *labeler.Labeler
	monitor    *calibration.Monitor
	trainSvc   *training.Service
	promoGate  *promotion.Gate

	metricsCollector *metrics.Collector
}

func buildPlatform(cfg config.AppConfig) (*platform, error) {
	p := &platform{cfg: cfg}

	db, err := config.NewDBManager(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db manager: %w", err)
	}
	p.db = db

	if db.Enabled() {
		stores := db.Stores()
		p.bars, p.gaps, p.feats = stores.Bars, stores.Gaps, stores.Features
		p.logs, p.reg, p.setStore = stores.Logs, stores.Registry, stores.Settings
		p.tradeSt, p.promoSt = stores.Trading, stores.Promotions
		log.Info().Str("dsn_host", cfg.Database.DSN).Msg("bottomrun: postgres persistence enabled")
	} else {
		mem := ohlcv.NewMemory()
		p.bars, p.gaps = mem, mem.Gaps()
		p.feats = features.NewMemory()
		p.logs = inferlog.NewMemory()
		p.reg = registry.NewMemory()
		p.setStore = settings.NewMemory()
		p.tradeSt = trading.NewMemory()
		p.promoSt = promotion.NewMemory()
		log.Warn().Msg("bottomrun: database disabled, running on in-memory stores")
	}

	p.byteCache = cache.NewAuto()
	p.settingsCache = settings.NewCache(p.setStore)
	p.settingsCache.Refresh(context.Background())

	p.metricsCollector = metrics.NewCollector()

	ingCfg := ohlcv.DefaultConfig()
	p.restSource = stream.NewRESTSource(cfg.Stream.RESTBaseURL, float64(cfg.Stream.RESTRPS), cfg.Stream.RESTBurst)
	p.ingestor = ohlcv.New(ingCfg, p.bars, p.gaps, p.restSource, cfg.Interval)
	if cfg.Stream.WSURL != "" {
		p.streamCli = stream.New(cfg.Stream.WSURL, cfg.Symbol, cfg.Interval, p.ingestor, p.restSource)
	}

	p.featEngine = features.NewEngine(p.bars, p.feats)

	riskParamsCtx := context.Background()
	riskParams := risk.Params{
		MaxNotional:  mustFloat(p.settingsCache, riskParamsCtx, settings.RiskMaxNotional, 10000),
		MaxDailyLoss: mustFloat(p.settingsCache, riskParamsCtx, settings.RiskMaxDailyLoss, 0.02),
		MaxDrawdown:  mustFloat(p.settingsCache, riskParamsCtx, settings.RiskMaxDrawdown, 0.1),
		ATRMultiple:  mustFloat(p.settingsCache, riskParamsCtx, settings.RiskATRMultiple, 3),
	}
	p.riskEngine = risk.NewEngine(riskParams)
	p.sessions = risk.NewSessionTracker(cfg.Symbol, 10000)

	entryParams := trading.EntryParams{Enabled: mustBool(p.settingsCache, riskParamsCtx, settings.LiveTradingEnabled, false), BaseSize: 1}
	p.controller = trading.NewController(p.tradeSt, p.riskEngine, entryParams, trading.ExitParams{
		TrailMode:    trading.TrailPercent,
		TrailPercent: 0.05,
		TimeStopBars: 500,
	})

	p.modelCache = inference.NewModelCache(p.reg)
	p.threshold = inference.NewThresholdSource(p.settingsCache, settings.InferenceAutoThreshold, 0.6)
	p.logQueue = inference.NewLogQueue(p.logs, 64, time.Second, 256)

	loopCfg := inference.DefaultConfig()
	loopCfg.Symbol, loopCfg.Interval = cfg.Symbol, cfg.Interval
	loopCfg.ThresholdDefault = 0.6
	p.loop = inference.NewLoop(loopCfg, p.bars, p.feats, p.modelCache, p.threshold, p.logQueue, p.controller, p.sessions)

	p.labelerSvc = labeler.New(p.logs, p.bars)

	p.monitor = calibration.NewMonitor(calibration.DriftParams{
		ECEAbs:             mustFloat(p.settingsCache, riskParamsCtx, settings.CalibrationMonitorECEAbs, 0.05),
		ECERel:             mustFloat(p.settingsCache, riskParamsCtx, settings.CalibrationMonitorECERel, 0.25),
		AbsStreakTrigger:   int(mustFloat(p.settingsCache, riskParamsCtx, settings.CalibrationMonitorAbsStreakTrigger, 3)),
		RelStreakTrigger:   int(mustFloat(p.settingsCache, riskParamsCtx, settings.CalibrationMonitorRelStreakTrigger, 3)),
		AbsDeltaMultiplier: mustFloat(p.settingsCache, riskParamsCtx, settings.CalibrationMonitorAbsDeltaMultiplier, 1.5),
		RecommendCooldown:  time.Hour,
		MinSamples:         int(mustFloat(p.settingsCache, riskParamsCtx, settings.CalibrationMonitorMinSamples, 30)),
	})

	p.trainSvc = training.NewService(p.reg)
	p.promoGate = promotion.NewGate(p.promoSt, p.reg)

	return p, nil
}

func mustFloat(c *settings.Cache, ctx context.Context, key string, fallback float64) float64 {
	v, _ := c.GetFloat(ctx, key, fallback)
	return v
}

func mustBool(c *settings.Cache, ctx context.Context, key string, fallback bool) bool {
	v, _ := c.GetBool(ctx, key, fallback)
	return v
}

func (p *platform) Close() {
	p.logQueue.Close(2 * time.Second)
	if p.streamCli != nil {
		p.streamCli.Close()
	}
	if err := p.db.Close(); err != nil {
		log.Warn().Err(err).Msg("bottomrun: db close")
	}
}

func loadConfig() (config.AppConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the full daemon: stream ingest, inference loop, scheduler, HTTP and metrics servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg config.AppConfig) error {
	p, err := buildPlatform(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("bottomrun: shutdown signal received")
		cancel()
	}()

	sched := scheduler.New(2*time.Second, func(r scheduler.Result) {
		if r.Err != nil {
			log.Error().Err(r.Err).Str("job", r.JobName).Msg("bottomrun: scheduler job failed")
		}
	})
	sched.Register(scheduler.JobFunc{JobName: "ingestor_watchdog", Fn: func(ctx context.Context) error {
		return p.ingestor.Watchdog(ctx, time.Now())
	}}, 5*time.Second)
	sched.Register(scheduler.JobFunc{JobName: "feature_backfill", Fn: func(ctx context.Context) error {
		_, err := p.featEngine.Backfill(ctx, cfg.Symbol, cfg.Interval, 50)
		return err
	}}, 30*time.Second)
	sched.Register(scheduler.JobFunc{JobName: "inference_tick", Fn: func(ctx context.Context) error {
		_, err := p.loop.Tick(ctx)
		return err
	}}, 10*time.Second)
	sched.Register(scheduler.JobFunc{JobName: "labeler_scan", Fn: func(ctx context.Context) error {
		_, err := p.labelerSvc.RunOnce(ctx, 5*time.Minute, 200, label.Params{Lookahead: 5, Drawdown: 0.01, Rebound: 0.005})
		return err
	}}, time.Minute)
	sched.Register(scheduler.JobFunc{JobName: "calibration_monitor", Fn: func(ctx context.Context) error {
		return runCalibrationMonitorTick(ctx, p, cfg)
	}}, time.Minute)
	sched.Register(scheduler.JobFunc{JobName: "risk_session_reconcile", Fn: func(ctx context.Context) error {
		now := time.Now()
		if now.Hour() == 0 && now.Minute() < 5 {
			p.sessions.ResetDaily()
			p.controller.ResetDailyLossCap()
		}
		return nil
	}}, 5*time.Minute)

	go sched.Run(ctx)
	go p.loop.Run(ctx)
	if p.streamCli != nil {
		go p.streamCli.Run(ctx)
	}

	apiSrv := httpapi.NewServer(httpapi.Config{
		Addr:         cfg.HTTP.Addr,
		APIKey:       cfg.HTTP.APIKey,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httpapi.Deps{
		Predictor: p.loop,
		Labeler:   p.labelerSvc,
		Logs:      p.logs,
		Registry:  p.reg,
		Monitor:   p.monitor,
		Bars:      p.bars,
		Gaps:      p.gaps,
		Cache:     p.settingsCache,
		Symbol:    cfg.Symbol,
		Interval:  cfg.Interval,
	})

	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: p.metricsCollector.Handler()}
	go func() {
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("bottomrun: metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("bottomrun: metrics server")
		}
	}()

	go func() {
		if err := apiSrv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("bottomrun: http api server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	return nil
}

func runCalibrationMonitorTick(ctx context.Context, p *platform, cfg config.AppConfig) error {
	windowSec, _ := p.settingsCache.GetDurationSeconds(ctx, settings.CalibrationMonitorWindowSeconds, time.Hour)
	entries, err := p.logs.RealizedSince(ctx, time.Now().Add(-windowSec), 5000)
	if err != nil {
		return err
	}
	samples := make([]calibration.Sample, 0, len(entries))
	for _, e := range entries {
		if e.Realized == nil {
			continue
		}
		samples = append(samples, calibration.Sample{Probability: e.Probability, Realized: *e.Realized})
	}
	if len(samples) == 0 {
		return nil
	}
	report := calibration.Compute(samples, 10, 5)

	prodECE := report.ECE
	if artifact, err := p.reg.GetProduction(ctx, inference.Family); err == nil {
		prodECE = artifact.Metrics.ECE
	}

	state := p.monitor.Observe(report.ECE, prodECE, len(samples))
	p.metricsCollector.CalibrationECE.WithLabelValues(cfg.Symbol).Set(report.ECE)
	p.metricsCollector.CalibrationBrier.WithLabelValues(cfg.Symbol).Set(report.Brier)
	p.metricsCollector.DriftAbsStreak.WithLabelValues(cfg.Symbol).Set(float64(state.AbsStreak))
	p.metricsCollector.DriftRelStreak.WithLabelValues(cfg.Symbol).Set(float64(state.RelStreak))
	if state.RecommendRetrain {
		p.metricsCollector.DriftRecommended.WithLabelValues(cfg.Symbol).Set(1)
	} else {
		p.metricsCollector.DriftRecommended.WithLabelValues(cfg.Symbol).Set(0)
	}
	return nil
}

func newLabelerCmd() *cobra.Command {
	labelerCmd := &cobra.Command{
		Use:   "labeler",
		Short: "Labeler maintenance commands",
	}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one eager labeler pass against aged inference log rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.labelerSvc.RunEager(context.Background(), 0, labeler.EagerCap, label.Params{Lookahead: 5, Drawdown: 0.01, Rebound: 0.005})
			if err != nil {
				return err
			}
			log.Info().Int("scanned", res.Scanned).Int("realized", res.Realized).
				Int("still_pending", res.StillPending).Int("errors", res.Errors).
				Msg("bottomrun: labeler run complete")
			return nil
		},
	}
	labelerCmd.AddCommand(runCmd)
	return labelerCmd
}

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train one candidate artifact from the stored feature/bar history and register it as staging",
	}
	variant := cmd.Flags().String("variant", model.VariantGBMLike, "model variant: bottom_gbm_like | bottom_xgb_like")
	fetchCap := cmd.Flags().Int("fetch-cap", 5000, "maximum closed bars to train over")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := buildPlatform(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		ctx := context.Background()
		bars, err := p.bars.ListRecent(ctx, cfg.Symbol, cfg.Interval, *fetchCap)
		if err != nil {
			return fmt.Errorf("train: list bars: %w", err)
		}
		if len(bars) == 0 {
			return fmt.Errorf("train: no bars available for %s/%s", cfg.Symbol, cfg.Interval)
		}
		from, to := bars[len(bars)-1].CloseTime, bars[0].CloseTime

		if _, err := p.featEngine.Backfill(ctx, cfg.Symbol, cfg.Interval, len(bars)); err != nil {
			return fmt.Errorf("train: backfill features: %w", err)
		}
		snaps, err := p.feats.ListRange(ctx, cfg.Symbol, cfg.Interval, from, to)
		if err != nil {
			return fmt.Errorf("train: list feature snapshots: %w", err)
		}

		closeByTime := make(map[time.Time]float64, len(bars))
		for _, b := range bars {
			closeByTime[b.CloseTime] = b.Close
		}
		closes := make([]float64, 0, len(snaps))
		featVecs := make([][]float64, 0, len(snaps))
		for _, s := range snaps {
			c, ok := closeByTime[s.CloseTime]
			if !ok {
				continue
			}
			closes = append(closes, c)
			featVecs = append(featVecs, s.Vector())
		}

		minLabels := int(mustFloat(p.settingsCache, ctx, settings.TrainingBottomMinLabels, 200))
		minTrainLabels := int(mustFloat(p.settingsCache, ctx, settings.TrainingBottomMinTrainLabels, 100))
		result, err := p.trainSvc.Run(ctx, closes, featVecs, training.Params{
			MinLabels:      minLabels,
			MinTrainLabels: minTrainLabels,
			ValFraction:    training.DefaultValFraction,
			Label:          label.Params{Lookahead: 5, Drawdown: 0.01, Rebound: 0.005},
			Seed:           1,
			Variant:        *variant,
		})
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		log.Info().Int64("artifact_id", result.Artifact.ID).Int("version", result.Artifact.Version).
			Float64("auc", result.Candidate.AUC).Float64("ece", result.Candidate.ECE).
			Msg("bottomrun: training run staged a new artifact")
		return nil
	}
	return cmd
}

func newPromoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Evaluate the latest staging artifact against production and promote it if it clears the gate",
	}
	modelID := cmd.Flags().Int64("model-id", 0, "staging artifact id produced by `train` (required)")
	auc := cmd.Flags().Float64("auc", 0, "held-out AUC for the candidate")
	ece := cmd.Flags().Float64("ece", 0, "held-out ECE for the candidate")
	valSamples := cmd.Flags().Int("val-samples", 0, "held-out sample count")
	samples := cmd.Flags().Int("samples", 0, "total training sample count")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if *modelID == 0 {
			return fmt.Errorf("promote: --model-id is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := buildPlatform(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		ctx := context.Background()
		params := promotion.Params{
			MinAUCDelta:     mustFloat(p.settingsCache, ctx, settings.PromotionMinAUCDelta, 0.01),
			MaxECEDelta:     mustFloat(p.settingsCache, ctx, settings.PromotionMaxECEDelta, 0.02),
			MinValSamples:   int(mustFloat(p.settingsCache, ctx, settings.PromotionMinValSamples, 200)),
			CooldownSeconds: int(mustFloat(p.settingsCache, ctx, settings.PromotionCooldownSec, 3600)),
		}
		event, err := p.promoGate.Promote(ctx, inference.Family, promotion.Candidate{
			ModelID:    *modelID,
			AUC:        *auc,
			ECE:        *ece,
			ValSamples: *valSamples,
			Samples:    *samples,
		}, params)
		if err != nil {
			return fmt.Errorf("promote: %w", err)
		}
		log.Info().Str("decision", string(event.Decision)).Str("reason", event.Reason).
			Msg("bottomrun: promotion gate decision")
		return nil
	}
	return cmd
}
