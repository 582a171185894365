package fraud

import (
	"fmt"
	"math"
	"time"

	"github.com/questmap/treasure-hunt/internal/geo"
	"github.com/questmap/treasure-hunt/internal/submissions"
)

// spoofLocations are coordinates that spoofing tools commonly default to:
// Null Island, the Android emulator's Googleplex default, and the iOS
// simulator's Apple Park default.
var spoofLocations = []geo.Fix{
	{Latitude: 0, Longitude: 0},
	{Latitude: 37.421998, Longitude: -122.084},
	{Latitude: 37.33182, Longitude: -122.03118},
}

// spoofTolerance is the coordinate tolerance for deny-list matches, in
// degrees.
const spoofTolerance = 0.0001

// evaluator is a single pure fraud signal check.
type evaluator func(sub *submissions.Submission, history *submissions.History, location submissions.ChallengeLocation) EvaluationResult

// checkLocationPlausibility validates the submitted fix and looks for the
// classic spoofing signatures: an exact match to the challenge target,
// implausibly perfect accuracy, and hard-coded default coordinates.
func (e *Engine) checkLocationPlausibility(sub *submissions.Submission, _ *submissions.History, location submissions.ChallengeLocation) EvaluationResult {
	fix := sub.GPSFix

	if check := geo.ValidateCoordinate(fix); !check.IsValid {
		return EvaluationResult{
			Passed:     false,
			Confidence: 0.9,
			Details:    map[string]interface{}{"errors": check.Errors},
			Reason:     "malformed GPS coordinates",
		}
	}

	for _, spoof := range spoofLocations {
		if math.Abs(fix.Latitude-spoof.Latitude) < spoofTolerance &&
			math.Abs(fix.Longitude-spoof.Longitude) < spoofTolerance {
			return EvaluationResult{
				Passed:     false,
				Confidence: 0.95,
				Details:    map[string]interface{}{"matched_lat": spoof.Latitude, "matched_lng": spoof.Longitude},
				Reason:     "coordinates match a known spoofed location",
			}
		}
	}

	target := location.Coordinates
	if fix.Latitude == target.Latitude && fix.Longitude == target.Longitude {
		return EvaluationResult{
			Passed:     false,
			Confidence: 0.9,
			Reason:     "coordinates exactly match the challenge target",
		}
	}

	if fix.AccuracyM != nil && *fix.AccuracyM < 1 {
		return EvaluationResult{
			Passed:     false,
			Confidence: 0.8,
			Details:    map[string]interface{}{"accuracy_meters": *fix.AccuracyM},
			Reason:     "reported GPS accuracy is implausibly precise",
		}
	}

	return EvaluationResult{Passed: true, Confidence: 0.8}
}

// checkTravelSpeed compares the current fix against the user's most recent
// prior submission and judges the implied travel speed.
func (e *Engine) checkTravelSpeed(sub *submissions.Submission, history *submissions.History, _ submissions.ChallengeLocation) EvaluationResult {
	prior := history.MostRecent()
	if prior == nil {
		return EvaluationResult{Passed: true, Confidence: 0.3}
	}

	speed := geo.SpeedMetersPerSecond(prior.GPSFix, sub.GPSFix)
	if speed == nil {
		// No timestamps to work with; pass with low confidence.
		return EvaluationResult{Passed: true, Confidence: 0.3}
	}

	details := map[string]interface{}{"speed_mps": *speed}

	if *speed > e.cfg.FlightSpeedMPS {
		return EvaluationResult{
			Passed:     false,
			Confidence: 0.95,
			Details:    details,
			Reason:     fmt.Sprintf("impossible travel speed: %.1f m/s", *speed),
		}
	}

	if *speed > e.cfg.DrivingSpeedMPS {
		return EvaluationResult{
			Passed:     true,
			Confidence: 0.4,
			Details:    details,
			Reason:     fmt.Sprintf("suspicious travel speed: %.1f m/s", *speed),
		}
	}

	return EvaluationResult{Passed: true, Confidence: 0.8, Details: details}
}

// checkSubmissionTiming inspects the submission rate and the shape of the
// inter-submission intervals. Regular intervals and rapid bursts are
// independent soft signals; both may fire on one submission.
func (e *Engine) checkSubmissionTiming(sub *submissions.Submission, history *submissions.History, _ submissions.ChallengeLocation) EvaluationResult {
	dayCount := history.CountSince(sub.SubmittedAt.Add(-24 * time.Hour))
	if dayCount >= e.cfg.DailySubmissionCap {
		return EvaluationResult{
			Passed:     false,
			Confidence: 0.9,
			Details:    map[string]interface{}{"submissions_24h": dayCount},
			Reason:     "too many submissions in the last 24 hours",
		}
	}

	minInterval := time.Duration(e.cfg.MinIntervalSeconds) * time.Second
	if last := history.LastSubmissionAt; last != nil {
		if elapsed := sub.SubmittedAt.Sub(*last); elapsed >= 0 && elapsed < minInterval {
			return EvaluationResult{
				Passed:     false,
				Confidence: 0.8,
				Details:    map[string]interface{}{"seconds_since_last": elapsed.Seconds()},
				Reason:     "submitted too soon after the previous submission",
			}
		}
	}

	intervals := submissionIntervals(history, sub.SubmittedAt)
	if len(intervals) < 2 {
		return EvaluationResult{Passed: true, Confidence: 0.8}
	}

	nearIdentical := 0
	rapid := 0
	for i := 1; i < len(intervals); i++ {
		if math.Abs(intervals[i]-intervals[i-1]) <= 5 {
			nearIdentical++
		}
	}
	for _, interval := range intervals {
		if interval < float64(e.cfg.MinIntervalSeconds) {
			rapid++
		}
	}

	identicalRatio := float64(nearIdentical) / float64(len(intervals)-1)
	rapidRatio := float64(rapid) / float64(len(intervals))
	details := map[string]interface{}{
		"interval_count":       len(intervals),
		"near_identical_ratio": identicalRatio,
		"rapid_interval_ratio": rapidRatio,
	}

	if identicalRatio >= 0.7 {
		return EvaluationResult{
			Passed:     true,
			Confidence: 0.4,
			Details:    details,
			Reason:     "submission intervals are suspiciously regular",
		}
	}

	if rapidRatio > 0.5 {
		return EvaluationResult{
			Passed:     true,
			Confidence: 0.4,
			Details:    details,
			Reason:     "most submission intervals are under a minute",
		}
	}

	return EvaluationResult{Passed: true, Confidence: 0.8, Details: details}
}

// checkSubmissionPattern looks for automation signatures across the user's
// history: repeat attempts at the same challenge, a single dominant proof
// type, and implausibly fast completions.
func (e *Engine) checkSubmissionPattern(sub *submissions.Submission, history *submissions.History, _ submissions.ChallengeLocation) EvaluationResult {
	for _, prior := range history.Submissions {
		if prior.ChallengeID == sub.ChallengeID {
			return EvaluationResult{
				Passed:     false,
				Confidence: 0.9,
				Details:    map[string]interface{}{"prior_submission_id": prior.ID.String()},
				Reason:     "challenge was already attempted by this user",
			}
		}
	}

	var reasons []string
	confidence := 0.8

	if len(history.Submissions) >= e.cfg.MinHistoryForDominance {
		counts := make(map[submissions.ProofType]int)
		for _, prior := range history.Submissions {
			counts[prior.ProofType]++
		}
		for proofType, count := range counts {
			ratio := float64(count) / float64(len(history.Submissions))
			if ratio > e.cfg.ProofTypeDominanceRatio {
				reasons = append(reasons, fmt.Sprintf("proof type %s dominates submission history", proofType))
				confidence = math.Min(confidence, 0.5)
			}
		}
	}

	if avg, ok := averageCompletionSeconds(history); ok && avg < e.cfg.MinAvgCompletionSeconds {
		reasons = append(reasons, "average completion time is implausibly low")
		confidence = math.Min(confidence, 0.4)
	}

	result := EvaluationResult{Passed: true, Confidence: confidence}
	if len(reasons) > 0 {
		result.Reason = reasons[0]
		if len(reasons) > 1 {
			result.Details = map[string]interface{}{"additional_reasons": reasons[1:]}
		}
	}
	return result
}

// checkGPSAccuracy judges the plausibility of the reported GPS accuracy.
// Missing accuracy is reduced information, not a failure.
func (e *Engine) checkGPSAccuracy(sub *submissions.Submission, _ *submissions.History, _ submissions.ChallengeLocation) EvaluationResult {
	accuracy := sub.GPSFix.AccuracyM
	if accuracy == nil {
		return EvaluationResult{Passed: true, Confidence: 0.3}
	}

	details := map[string]interface{}{"accuracy_meters": *accuracy}

	switch {
	case *accuracy <= 10:
		return EvaluationResult{Passed: true, Confidence: 0.9, Details: details}
	case *accuracy > 100:
		return EvaluationResult{
			Passed:     true,
			Confidence: 0.4,
			Details:    details,
			Reason:     "reported GPS accuracy is very poor",
		}
	default:
		return EvaluationResult{Passed: true, Confidence: 0.7, Details: details}
	}
}

// submissionIntervals returns the inter-submission gaps in seconds,
// chronologically ordered, with the current submission appended.
func submissionIntervals(history *submissions.History, current time.Time) []float64 {
	times := make([]time.Time, 0, len(history.Submissions)+1)
	for _, s := range history.Submissions {
		times = append(times, s.SubmittedAt)
	}
	times = append(times, current)

	// Insertion sort; histories are small and usually already ordered.
	for i := 1; i < len(times); i++ {
		for j := i; j > 0 && times[j].Before(times[j-1]); j-- {
			times[j], times[j-1] = times[j-1], times[j]
		}
	}

	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals = append(intervals, times[i].Sub(times[i-1]).Seconds())
	}
	return intervals
}

// averageCompletionSeconds returns the mean gap between consecutive
// submissions in the history.
func averageCompletionSeconds(history *submissions.History) (float64, bool) {
	intervals := make([]float64, 0)
	times := make([]time.Time, 0, len(history.Submissions))
	for _, s := range history.Submissions {
		times = append(times, s.SubmittedAt)
	}
	for i := 1; i < len(times); i++ {
		for j := i; j > 0 && times[j].Before(times[j-1]); j-- {
			times[j], times[j-1] = times[j-1], times[j]
		}
	}
	for i := 1; i < len(times); i++ {
		intervals = append(intervals, times[i].Sub(times[i-1]).Seconds())
	}
	if len(intervals) == 0 {
		return 0, false
	}

	sum := 0.0
	for _, v := range intervals {
		sum += v
	}
	return sum / float64(len(intervals)), true
}
