package fraud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_CombinesAllSignals(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	accuracy := 8.0
	sub := newSubmission(40.7130, -74.0063, time.Now())
	sub.GPSFix.AccuracyM = &accuracy

	verdict := engine.Evaluate(sub, historyOf(), testLocation)

	assert.True(t, verdict.IsValid)
	assert.Empty(t, verdict.Reasons)
	assert.Equal(t, ActionApprove, verdict.RecommendedAction)
}

func TestEvaluate_RecoversFromPanickingEvaluator(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	accuracy := 8.0
	sub := newSubmission(40.7130, -74.0063, time.Now())
	sub.GPSFix.AccuracyM = &accuracy

	// A nil history makes every history-reading evaluator dereference a
	// nil pointer. Each panic must degrade to a low-confidence pass
	// instead of taking the whole verdict down.
	var verdict Verdict
	require.NotPanics(t, func() {
		verdict = engine.Evaluate(sub, nil, testLocation)
	})

	assert.True(t, verdict.IsValid)
	assert.Empty(t, verdict.Reasons)
	// Recovered signals contribute 0.3, dragging the mean below the
	// auto-approve band.
	assert.Less(t, verdict.Confidence, 0.7)
	assert.Equal(t, ActionReview, verdict.RecommendedAction)
}
