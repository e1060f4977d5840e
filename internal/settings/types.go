// Package settings implements the DB-backed typed runtime parameter store:
// a write-through cache in front of the settings table, loaded from the
// table by Cache.Refresh and updated by Cache.Put. Rows changed in the
// table by another writer reach the cache only through Refresh.
package settings

import (
	"encoding/json"
	"time"
)

// Setting is one row of the settings table.
type Setting struct {
	Key       string          `json:"key" db:"key"`
	Value     json.RawMessage `json:"value" db:"value_json"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Namespaced key constants for every setting spec.md names (section 6.3).
// Components reference these rather than re-typing string literals.
const (
	InferenceAutoThreshold       = "inference.auto.threshold"
	InferenceAutoLoopIntervalSec = "inference.auto.loop_interval_sec"

	LabelerInterval        = "labeler.interval"
	LabelerMinAgeSeconds   = "labeler.min_age_seconds"
	LabelerBatchLimit      = "labeler.batch_limit"
	LabelerBottomLookahead = "labeler.bottom.lookahead"
	LabelerBottomDrawdown  = "labeler.bottom.drawdown"
	LabelerBottomRebound   = "labeler.bottom.rebound"

	CalibrationLiveWindowSeconds           = "calibration.live.window_seconds"
	CalibrationLiveBins                    = "calibration.live.bins"
	CalibrationEagerEnabled                = "calibration.eager.enabled"
	CalibrationEagerLimit                  = "calibration.eager.limit"
	CalibrationEagerMinAgeSeconds          = "calibration.eager.min_age_seconds"
	CalibrationMonitorECEAbs               = "calibration.monitor.ece_abs"
	CalibrationMonitorECERel               = "calibration.monitor.ece_rel"
	CalibrationMonitorAbsStreakTrigger     = "calibration.monitor.abs_streak_trigger"
	CalibrationMonitorRelStreakTrigger     = "calibration.monitor.rel_streak_trigger"
	CalibrationMonitorWindowSeconds        = "calibration.monitor.window_seconds"
	CalibrationMonitorAbsDeltaMultiplier   = "calibration.monitor.abs_delta_multiplier"
	CalibrationMonitorRecommendCooldownSec = "calibration.monitor.recommend_cooldown_seconds"
	CalibrationMonitorMinSamples           = "calibration.monitor.min_samples"

	TrainingBottomMinLabels      = "training.bottom.min_labels"
	TrainingBottomMinTrainLabels = "training.bottom.min_train_labels"
	TrainingBottomOHLCVFetchCap  = "training.bottom.ohlcv_fetch_cap"

	PromotionMinAUCDelta    = "promotion.min_auc_delta"
	PromotionMaxECEDelta    = "promotion.max_ece_delta"
	PromotionMinValSamples  = "promotion.min_val_samples"
	PromotionCooldownSec    = "promotion.cooldown_seconds"

	RiskMaxNotional  = "risk.max_notional"
	RiskMaxDailyLoss = "risk.max_daily_loss"
	RiskMaxDrawdown  = "risk.max_drawdown"
	RiskATRMultiple  = "risk.atr_multiple"

	LiveTradingEnabled                = "live_trading.enabled"
	LiveTradingCooldownSec            = "live_trading.cooldown_sec"
	LiveTradingBaseSize               = "live_trading.base_size"
	LiveTradingTrailingTakeProfitPct  = "live_trading.trailing_take_profit_pct"
	LiveTradingMaxHoldingSeconds      = "live_trading.max_holding_seconds"

	ExitEnableNewPolicy        = "exit.enable_new_policy"
	ExitTrailMode              = "exit.trail.mode"
	ExitTrailMultiplier        = "exit.trail.multiplier"
	ExitTrailPercent           = "exit.trail.percent"
	ExitTimeStopBars           = "exit.time_stop.bars"
	ExitPartialEnabled         = "exit.partial.enabled"
	ExitPartialLevels          = "exit.partial.levels"
	ExitCooldownBars           = "exit.cooldown.bars"
	ExitDailyLossCapR          = "exit.daily_loss_cap_r"
	ExitFreezeOnExit           = "exit.freeze_on_exit"
)
