package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/questmap/treasure-hunt/internal/fraud"
	"github.com/questmap/treasure-hunt/internal/oracle"
)

func cleanVerdict() *fraud.Verdict {
	return &fraud.Verdict{
		IsValid:           true,
		FraudRisk:         fraud.RiskLow,
		Reasons:           []string{},
		Confidence:        0.8,
		RecommendedAction: fraud.ActionApprove,
	}
}

func TestDecide_FraudFailureRejectsRegardlessOfOracle(t *testing.T) {
	policy := NewPolicy(nil)

	verdict := &fraud.Verdict{
		IsValid:    false,
		FraudRisk:  fraud.RiskHigh,
		Reasons:    []string{"impossible travel speed detected", "daily submission limit exceeded"},
		Confidence: 0.9,
	}
	// The oracle is maximally convinced; fraud evidence still wins.
	assessment := &oracle.Assessment{IsValid: true, Confidence: 0.99, SuggestedAction: oracle.ActionApprove}

	outcome := policy.Decide(verdict, assessment)

	assert.Equal(t, StatusRejected, outcome.Status)
	assert.Equal(t, "impossible travel speed detected; daily submission limit exceeded", outcome.Reason)
}

func TestDecide_HighConfidenceValidApproves(t *testing.T) {
	policy := NewPolicy(nil)
	assessment := &oracle.Assessment{IsValid: true, Confidence: 0.9, Reason: "signage matches"}

	outcome := policy.Decide(cleanVerdict(), assessment)

	assert.Equal(t, StatusApproved, outcome.Status)
	assert.Equal(t, "signage matches", outcome.Reason)
}

func TestDecide_HighConfidenceInvalidRejects(t *testing.T) {
	policy := NewPolicy(nil)
	assessment := &oracle.Assessment{IsValid: false, Confidence: 0.9, Reason: "wrong business"}

	outcome := policy.Decide(cleanVerdict(), assessment)

	assert.Equal(t, StatusRejected, outcome.Status)
	assert.Equal(t, "wrong business", outcome.Reason)
}

func TestDecide_LowConfidenceRejects(t *testing.T) {
	policy := NewPolicy(nil)
	assessment := &oracle.Assessment{IsValid: true, Confidence: 0.2, Reason: "image too blurry"}

	outcome := policy.Decide(cleanVerdict(), assessment)

	assert.Equal(t, StatusRejected, outcome.Status)
}

func TestDecide_MidConfidenceGoesToManualReview(t *testing.T) {
	policy := NewPolicy(nil)
	assessment := &oracle.Assessment{IsValid: true, Confidence: 0.5}

	outcome := policy.Decide(cleanVerdict(), assessment)

	assert.Equal(t, StatusManualReview, outcome.Status)
	// Reviewers triage by confidence, so it must appear in the reason.
	assert.Contains(t, outcome.Reason, "0.50")
}

func TestDecide_DegradedOracleFallbackGoesToManualReview(t *testing.T) {
	policy := NewPolicy(nil)
	assessment := &oracle.Assessment{
		IsValid:         false,
		Confidence:      0,
		Reason:          "Classification service unavailable",
		SuggestedAction: oracle.ActionManualReview,
	}

	outcome := policy.Decide(cleanVerdict(), assessment)

	assert.Equal(t, StatusManualReview, outcome.Status)
	assert.Zero(t, outcome.Confidence)
}

func TestDecide_MissingAssessmentNeverApproves(t *testing.T) {
	policy := NewPolicy(nil)

	outcome := policy.Decide(cleanVerdict(), nil)

	assert.Equal(t, StatusManualReview, outcome.Status)
	assert.Zero(t, outcome.Confidence)
}

func TestDecide_ThresholdBoundaries(t *testing.T) {
	policy := NewPolicy(nil)

	tests := []struct {
		name       string
		confidence float64
		want       Status
	}{
		{"exactly at approve threshold", 0.85, StatusApproved},
		{"just below approve threshold", 0.849, StatusManualReview},
		{"exactly at reject threshold", 0.30, StatusRejected},
		{"just above reject threshold", 0.301, StatusManualReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := policy.Decide(cleanVerdict(), &oracle.Assessment{IsValid: true, Confidence: tt.confidence})
			assert.Equal(t, tt.want, outcome.Status)
		})
	}
}

func TestThresholds_SetClampsToBounds(t *testing.T) {
	thresholds := NewThresholds(0.99, 0.1)

	approve, reject := thresholds.Get()
	assert.Equal(t, 0.95, approve)
	assert.Equal(t, 0.3, reject)
}

func TestThresholds_SetRefusesInvertedPair(t *testing.T) {
	thresholds := NewThresholds(DefaultAutoApproveThreshold, DefaultAutoRejectThreshold)

	// approve clamps to 0.5, reject to 0.5: equal, so the update is refused.
	approve, reject := thresholds.Set(0.4, 0.6)

	assert.Equal(t, DefaultAutoApproveThreshold, approve)
	assert.Equal(t, DefaultAutoRejectThreshold, reject)
	assert.Less(t, reject, approve)
}
