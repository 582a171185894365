package fraud

import (
	"sync"

	"github.com/questmap/treasure-hunt/internal/submissions"
	"github.com/questmap/treasure-hunt/pkg/logger"
	"go.uber.org/zap"
)

// Engine runs the fraud signal evaluators over a submission. It is stateless
// between calls: evaluators read only the submission, the caller-supplied
// history, and the challenge location.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// signalNames mirrors the evaluator order used by Evaluate. Reasons are
// reported in this order.
var signalNames = []string{
	"location_plausibility",
	"travel_speed",
	"submission_timing",
	"submission_pattern",
	"gps_accuracy",
}

// Evaluate runs all signal checks concurrently and aggregates their results
// into a verdict. Evaluators share no mutable state, so fan-out is safe.
func (e *Engine) Evaluate(sub *submissions.Submission, history *submissions.History, location submissions.ChallengeLocation) Verdict {
	evaluators := []evaluator{
		e.checkLocationPlausibility,
		e.checkTravelSpeed,
		e.checkSubmissionTiming,
		e.checkSubmissionPattern,
		e.checkGPSAccuracy,
	}

	results := make([]EvaluationResult, len(evaluators))

	var wg sync.WaitGroup
	for i, eval := range evaluators {
		wg.Add(1)
		go func(i int, eval evaluator) {
			defer wg.Done()
			results[i] = runSafely(signalNames[i], eval, sub, history, location)
		}(i, eval)
	}
	wg.Wait()

	return Aggregate(results)
}

// runSafely converts an evaluator panic into a low-confidence pass. One
// malformed history record must not block every submission; availability
// wins over soundness for individual signals.
func runSafely(name string, eval evaluator, sub *submissions.Submission, history *submissions.History, location submissions.ChallengeLocation) (result EvaluationResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("fraud evaluator panicked",
				zap.String("signal", name),
				zap.Any("panic", r),
			)
			result = EvaluationResult{Passed: true, Confidence: 0.3}
		}
	}()

	return eval(sub, history, location)
}
