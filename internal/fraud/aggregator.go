package fraud

// Aggregate combines the individual signal results into one verdict.
//
// The risk classification is a deliberate tie-break: a hard failure from any
// signal overrides all soft signals, while soft signals escalate risk but
// never produce a reject on their own.
func Aggregate(results []EvaluationResult) Verdict {
	verdict := Verdict{IsValid: true}

	sum := 0.0
	for _, r := range results {
		if !r.Passed {
			verdict.IsValid = false
		}
		if r.Reason != "" {
			verdict.Reasons = append(verdict.Reasons, r.Reason)
		}
		sum += r.Confidence
	}

	if len(results) > 0 {
		verdict.Confidence = sum / float64(len(results))
	}
	if verdict.Reasons == nil {
		verdict.Reasons = []string{}
	}

	switch {
	case !verdict.IsValid:
		verdict.FraudRisk = RiskHigh
		verdict.RecommendedAction = ActionReject
	case verdict.Confidence < 0.5 || len(verdict.Reasons) > 2:
		verdict.FraudRisk = RiskMedium
		verdict.RecommendedAction = ActionReview
	case verdict.Confidence < 0.7 || len(verdict.Reasons) > 0:
		verdict.FraudRisk = RiskMedium
		verdict.RecommendedAction = ActionReview
	default:
		verdict.FraudRisk = RiskLow
		verdict.RecommendedAction = ActionApprove
	}

	return verdict
}
