package fraud

// RiskLevel classifies how likely a submission is fabricated or spoofed.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RecommendedAction is the aggregator's suggested handling.
type RecommendedAction string

const (
	ActionApprove RecommendedAction = "approve"
	ActionReview  RecommendedAction = "review"
	ActionReject  RecommendedAction = "reject"
)

// EvaluationResult is the outcome of a single fraud signal check. Ephemeral;
// produced and consumed within one validation call.
type EvaluationResult struct {
	Passed     bool                   `json:"passed"`
	Confidence float64                `json:"confidence"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
}

// Verdict is the aggregate of all signal checks.
type Verdict struct {
	IsValid           bool              `json:"is_valid"`
	FraudRisk         RiskLevel         `json:"fraud_risk"`
	Reasons           []string          `json:"reasons"`
	Confidence        float64           `json:"confidence"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
}

// Config holds the tunable thresholds of the signal evaluators. These are
// intentionally separate from the pre-validator's limits: the two layers are
// configured independently.
type Config struct {
	// Travel speed thresholds in meters per second.
	WalkingSpeedMPS float64
	DrivingSpeedMPS float64
	FlightSpeedMPS  float64

	// Timing thresholds.
	DailySubmissionCap int
	MinIntervalSeconds int

	// Pattern thresholds.
	ProofTypeDominanceRatio float64
	MinHistoryForDominance  int
	MinAvgCompletionSeconds float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		WalkingSpeedMPS:         2.5,
		DrivingSpeedMPS:         50,
		FlightSpeedMPS:          250,
		DailySubmissionCap:      50,
		MinIntervalSeconds:      60,
		ProofTypeDominanceRatio: 0.9,
		MinHistoryForDominance:  10,
		MinAvgCompletionSeconds: 30,
	}
}
