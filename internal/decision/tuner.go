package decision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/questmap/treasure-hunt/pkg/config"
	"github.com/questmap/treasure-hunt/pkg/logger"
)

// StatsSource provides the trailing-window decision statistics the tuner
// reacts to.
type StatsSource interface {
	StatsSince(ctx context.Context, cutoff time.Time) (*WindowStats, error)
}

// Tuner periodically nudges the decision thresholds based on recent outcome
// rates. It is an operational optimization, not a safety mechanism: every
// adjustment goes through Thresholds.Set, which enforces the bounds and the
// reject < approve invariant.
type Tuner struct {
	thresholds *Thresholds
	stats      StatsSource
	interval   time.Duration
	window     time.Duration
	maxStep    float64
	loosenAt   float64 // manual-review rate above which both thresholds loosen
	tightenAt  float64 // fraud rate above which the approve threshold rises
	now        func() time.Time
}

// NewTuner creates a threshold tuner from config.
func NewTuner(thresholds *Thresholds, stats StatsSource, cfg config.TuningConfig) *Tuner {
	maxStep := cfg.MaxStepPerRun
	if maxStep <= 0 || maxStep > 0.05 {
		maxStep = 0.05
	}

	return &Tuner{
		thresholds: thresholds,
		stats:      stats,
		interval:   time.Duration(cfg.IntervalMinutes) * time.Minute,
		window:     time.Duration(cfg.WindowHours) * time.Hour,
		maxStep:    maxStep,
		loosenAt:   cfg.ReviewRateLoosen,
		tightenAt:  cfg.FraudRateTighten,
		now:        time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (t *Tuner) WithNow(now func() time.Time) *Tuner {
	t.now = now
	return t
}

// Run executes tuning passes on the configured interval until the context is
// cancelled. Intended to be launched as a background goroutine from main.
func (t *Tuner) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.TuneOnce(ctx)
		}
	}
}

// TuneOnce performs a single tuning pass: if the manual-review rate is too
// high, loosen both thresholds toward automation; if the fraud rate is too
// high, raise the approve threshold. Both moves are capped at maxStep per
// run.
func (t *Tuner) TuneOnce(ctx context.Context) {
	stats, err := t.stats.StatsSince(ctx, t.now().Add(-t.window))
	if err != nil {
		logger.Error("threshold tuning skipped, stats unavailable", zap.Error(err))
		return
	}
	if stats.Total == 0 {
		return
	}

	approve, reject := t.thresholds.Get()
	newApprove, newReject := approve, reject

	if stats.ManualReviewRate > t.loosenAt {
		// Too much human workload: widen the auto-decided band.
		newApprove -= t.maxStep
		newReject += t.maxStep
	}
	if stats.FraudRate > t.tightenAt {
		newApprove += t.maxStep
	}

	if newApprove == approve && newReject == reject {
		return
	}

	effectiveApprove, effectiveReject := t.thresholds.Set(newApprove, newReject)
	logger.Info("decision thresholds tuned",
		zap.Float64("manual_review_rate", stats.ManualReviewRate),
		zap.Float64("fraud_rate", stats.FraudRate),
		zap.Float64("auto_approve", effectiveApprove),
		zap.Float64("auto_reject", effectiveReject),
	)
}
