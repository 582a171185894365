package fraud

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questmap/treasure-hunt/internal/geo"
	"github.com/questmap/treasure-hunt/internal/submissions"
)

var testLocation = submissions.ChallengeLocation{
	Coordinates:              geo.Fix{Latitude: 40.7128, Longitude: -74.0060},
	VerificationRadiusMeters: 100,
	BusinessName:             "Joe's Coffee",
}

func newSubmission(lat, lng float64, at time.Time) *submissions.Submission {
	return &submissions.Submission{
		ID:          uuid.New(),
		ChallengeID: uuid.New(),
		UserID:      uuid.New(),
		ProofType:   submissions.ProofPhoto,
		GPSFix:      geo.Fix{Latitude: lat, Longitude: lng, CapturedAt: &at},
		SubmittedAt: at,
	}
}

func historyOf(subs ...submissions.Submission) *submissions.History {
	h := &submissions.History{
		Submissions:      subs,
		TotalSubmissions: len(subs),
	}
	for i := range subs {
		if h.LastSubmissionAt == nil || subs[i].SubmittedAt.After(*h.LastSubmissionAt) {
			at := subs[i].SubmittedAt
			h.LastSubmissionAt = &at
		}
	}
	return h
}

func TestLocationPlausibility_ExactTargetMatch(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	sub := newSubmission(testLocation.Coordinates.Latitude, testLocation.Coordinates.Longitude, time.Now())

	result := engine.checkLocationPlausibility(sub, historyOf(), testLocation)

	assert.False(t, result.Passed)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)
	assert.Contains(t, result.Reason, "exactly match")
}

func TestLocationPlausibility_SpoofedDefaults(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	tests := []struct {
		name     string
		lat, lng float64
	}{
		{"null island", 0, 0},
		{"null island within tolerance", 0.00005, -0.00005},
		{"android emulator default", 37.421998, -122.084},
		{"ios simulator default", 37.33182, -122.03118},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newSubmission(tt.lat, tt.lng, time.Now())
			result := engine.checkLocationPlausibility(sub, historyOf(), testLocation)

			assert.False(t, result.Passed)
			assert.InDelta(t, 0.95, result.Confidence, 1e-9)
		})
	}
}

func TestLocationPlausibility_TooAccurate(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	sub := newSubmission(40.7130, -74.0063, time.Now())
	accuracy := 0.5
	sub.GPSFix.AccuracyM = &accuracy

	result := engine.checkLocationPlausibility(sub, historyOf(), testLocation)

	assert.False(t, result.Passed)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
}

func TestLocationPlausibility_MalformedCoordinates(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	sub := newSubmission(91.0, -74.0, time.Now())

	result := engine.checkLocationPlausibility(sub, historyOf(), testLocation)

	assert.False(t, result.Passed)
	assert.Equal(t, "malformed GPS coordinates", result.Reason)
}

func TestLocationPlausibility_Passes(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	sub := newSubmission(40.7130, -74.0063, time.Now())
	accuracy := 8.0
	sub.GPSFix.AccuracyM = &accuracy

	result := engine.checkLocationPlausibility(sub, historyOf(), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Empty(t, result.Reason)
}

func TestTravelSpeed_NoHistory(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	sub := newSubmission(40.7130, -74.0063, time.Now())

	result := engine.checkTravelSpeed(sub, historyOf(), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.3, result.Confidence, 1e-9)
}

func TestTravelSpeed_NoTimestamps(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Now()

	prior := *newSubmission(40.7130, -74.0063, now.Add(-time.Hour))
	prior.GPSFix.CapturedAt = nil
	sub := newSubmission(40.7500, -74.0063, now)

	result := engine.checkTravelSpeed(sub, historyOf(prior), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.3, result.Confidence, 1e-9)
}

func TestTravelSpeed_SuspiciousButPossible(t *testing.T) {
	// 10km in one minute is roughly 166 m/s: above driving, below flight.
	engine := NewEngine(DefaultConfig())
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	prior := *newSubmission(40.0, -74.0, start)
	sub := newSubmission(40.0899, -74.0, start.Add(time.Minute))

	result := engine.checkTravelSpeed(sub, historyOf(prior), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.4, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "suspicious travel speed")
}

func TestTravelSpeed_Impossible(t *testing.T) {
	// ~550km in ten minutes is over 900 m/s.
	engine := NewEngine(DefaultConfig())
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	prior := *newSubmission(37.7749, -122.4194, start)
	sub := newSubmission(34.0522, -118.2437, start.Add(10*time.Minute))

	result := engine.checkTravelSpeed(sub, historyOf(prior), testLocation)

	assert.False(t, result.Passed)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "impossible travel speed")
}

func TestTravelSpeed_Reasonable(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	prior := *newSubmission(40.7130, -74.0063, start)
	sub := newSubmission(40.7200, -74.0063, start.Add(30*time.Minute))

	result := engine.checkTravelSpeed(sub, historyOf(prior), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
}

func TestSubmissionTiming_DailyCapExceeded(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var subs []submissions.Submission
	for i := 0; i < 50; i++ {
		subs = append(subs, *newSubmission(40.71, -74.0, now.Add(-time.Duration(i+1)*10*time.Minute)))
	}

	sub := newSubmission(40.7130, -74.0063, now)
	result := engine.checkSubmissionTiming(sub, historyOf(subs...), testLocation)

	assert.False(t, result.Passed)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "too many submissions")
}

func TestSubmissionTiming_TooSoonAfterLast(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	prior := *newSubmission(40.71, -74.0, now.Add(-30*time.Second))
	sub := newSubmission(40.7130, -74.0063, now)

	result := engine.checkSubmissionTiming(sub, historyOf(prior), testLocation)

	assert.False(t, result.Passed)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "too soon")
}

func TestSubmissionTiming_RegularIntervals(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Submissions exactly five minutes apart: an automation signature.
	var subs []submissions.Submission
	for i := 1; i <= 6; i++ {
		subs = append(subs, *newSubmission(40.71, -74.0, now.Add(-time.Duration(i)*5*time.Minute)))
	}

	sub := newSubmission(40.7130, -74.0063, now)
	result := engine.checkSubmissionTiming(sub, historyOf(subs...), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.4, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "suspiciously regular")
}

func TestSubmissionTiming_CleanHistory(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	subs := []submissions.Submission{
		*newSubmission(40.71, -74.0, now.Add(-50*time.Hour)),
		*newSubmission(40.72, -74.1, now.Add(-31*time.Hour)),
		*newSubmission(40.73, -74.2, now.Add(-4*time.Hour)),
	}

	sub := newSubmission(40.7130, -74.0063, now)
	result := engine.checkSubmissionTiming(sub, historyOf(subs...), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Empty(t, result.Reason)
}

func TestSubmissionPattern_DuplicateChallenge(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Now()

	prior := *newSubmission(40.71, -74.0, now.Add(-48*time.Hour))
	sub := newSubmission(40.7130, -74.0063, now)
	sub.ChallengeID = prior.ChallengeID

	result := engine.checkSubmissionPattern(sub, historyOf(prior), testLocation)

	assert.False(t, result.Passed)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "already attempted")
}

func TestSubmissionPattern_DominantProofType(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var subs []submissions.Submission
	for i := 0; i < 12; i++ {
		s := *newSubmission(40.71, -74.0, now.Add(-time.Duration(i+1)*24*time.Hour))
		s.ProofType = submissions.ProofGPSCheckin
		subs = append(subs, s)
	}

	sub := newSubmission(40.7130, -74.0063, now)
	result := engine.checkSubmissionPattern(sub, historyOf(subs...), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "dominates")
}

func TestSubmissionPattern_FastCompletions(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	subs := []submissions.Submission{
		*newSubmission(40.71, -74.0, now.Add(-40*time.Second)),
		*newSubmission(40.72, -74.1, now.Add(-20*time.Second)),
		*newSubmission(40.73, -74.2, now),
	}

	sub := newSubmission(40.7130, -74.0063, now.Add(time.Hour))
	result := engine.checkSubmissionPattern(sub, historyOf(subs...), testLocation)

	assert.True(t, result.Passed)
	assert.InDelta(t, 0.4, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "implausibly low")
}

func TestGPSAccuracy(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	tests := []struct {
		name       string
		accuracy   *float64
		confidence float64
		hasReason  bool
	}{
		{"missing", nil, 0.3, false},
		{"precise", ptr(8.0), 0.9, false},
		{"moderate", ptr(50.0), 0.7, false},
		{"poor", ptr(150.0), 0.4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newSubmission(40.7130, -74.0063, time.Now())
			sub.GPSFix.AccuracyM = tt.accuracy

			result := engine.checkGPSAccuracy(sub, historyOf(), testLocation)

			require.True(t, result.Passed)
			assert.InDelta(t, tt.confidence, result.Confidence, 1e-9)
			assert.Equal(t, tt.hasReason, result.Reason != "")
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestEngineEvaluate_CleanSubmission(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	prior := *newSubmission(40.7000, -74.0, now.Add(-2*time.Hour))
	sub := newSubmission(40.7130, -74.0063, now)
	accuracy := 8.0
	sub.GPSFix.AccuracyM = &accuracy

	verdict := engine.Evaluate(sub, historyOf(prior), testLocation)

	assert.True(t, verdict.IsValid)
	assert.NotEqual(t, RiskHigh, verdict.FraudRisk)
}

func TestEngineEvaluate_HardFailureOverridesSoftSignals(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	sub := newSubmission(testLocation.Coordinates.Latitude, testLocation.Coordinates.Longitude, time.Now())

	verdict := engine.Evaluate(sub, historyOf(), testLocation)

	assert.False(t, verdict.IsValid)
	assert.Equal(t, RiskHigh, verdict.FraudRisk)
	assert.Equal(t, ActionReject, verdict.RecommendedAction)
	assert.NotEmpty(t, verdict.Reasons)
}

func TestEngineEvaluate_DeterministicReasonOrder(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	sub := newSubmission(0, 0, time.Now())

	first := engine.Evaluate(sub, historyOf(), testLocation)
	for i := 0; i < 10; i++ {
		again := engine.Evaluate(sub, historyOf(), testLocation)
		assert.Equal(t, first.Reasons, again.Reasons, fmt.Sprintf("run %d", i))
	}
}
