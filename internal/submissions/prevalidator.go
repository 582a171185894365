package submissions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/questmap/treasure-hunt/internal/geo"
	"github.com/questmap/treasure-hunt/pkg/security"
	"github.com/questmap/treasure-hunt/pkg/validation"
)

// Error codes surfaced by the pre-validator.
const (
	CodeMissingField        = "MISSING_FIELD"
	CodeInvalidProofType    = "INVALID_PROOF_TYPE"
	CodeChallengeInactive   = "CHALLENGE_INACTIVE"
	CodeChallengeNotStarted = "CHALLENGE_NOT_STARTED"
	CodeChallengeEnded      = "CHALLENGE_ENDED"
	CodeChallengeFull       = "CHALLENGE_FULL"
	CodeProofTypeNotAllowed = "PROOF_TYPE_NOT_ALLOWED"
	CodeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeTooFrequent         = "TOO_FREQUENT"
	CodeLocationTooFar      = "LOCATION_TOO_FAR"
	CodeInvalidCoordinates  = "INVALID_COORDINATES"
	CodeInvalidProofPayload = "INVALID_PROOF_PAYLOAD"
	CodeAnswerMismatch      = "ANSWER_MISMATCH"
	CodeStaleReceipt        = "STALE_RECEIPT"
)

// Warning codes. Warnings never block a submission.
const (
	CodeNoSignageIndicator = "NO_SIGNAGE_INDICATOR"
	CodeNoGPSMetadata      = "NO_GPS_METADATA"
)

// PreValidatorConfig holds the structural rate limits. These are enforced as
// blocking errors here, independently of the fraud engine's softer timing
// signal.
type PreValidatorConfig struct {
	DailySubmissionCap int
	MinInterval        time.Duration
	ReceiptMaxAge      time.Duration
}

// DefaultPreValidatorConfig returns the production limits.
func DefaultPreValidatorConfig() PreValidatorConfig {
	return PreValidatorConfig{
		DailySubmissionCap: 50,
		MinInterval:        60 * time.Second,
		ReceiptMaxAge:      24 * time.Hour,
	}
}

// PreValidator runs the structural and business-rule gate ahead of the fraud
// and oracle evaluation. Failures accumulate so a user sees every problem at
// once.
type PreValidator struct {
	cfg PreValidatorConfig
	now func() time.Time
}

// NewPreValidator creates a pre-validator with the given limits.
func NewPreValidator(cfg PreValidatorConfig) *PreValidator {
	return &PreValidator{cfg: cfg, now: time.Now}
}

// WithNow overrides the validator clock. Intended for tests.
func (v *PreValidator) WithNow(now func() time.Time) *PreValidator {
	v.now = now
	return v
}

// Validate checks the submission against the challenge and the user's
// history. Validation never short-circuits: every blocking error and warning
// is collected.
func (v *PreValidator) Validate(sub *Submission, challenge *Challenge, history *History) *validation.Result {
	result := &validation.Result{}

	v.checkRequiredFields(sub, result)
	v.checkChallengeLifecycle(challenge, result)
	v.checkProofTypeEligibility(sub, challenge, result)
	v.checkDuplicate(sub, history, result)
	v.checkRateLimits(sub, history, result)
	v.checkLocationRadius(sub, challenge, result)
	v.checkProofPayload(sub, challenge, result)

	return result
}

func (v *PreValidator) checkRequiredFields(sub *Submission, result *validation.Result) {
	if sub.ChallengeID == uuid.Nil {
		result.AddError("challenge_id", "challenge id is required", CodeMissingField)
	}
	if sub.UserID == uuid.Nil {
		result.AddError("user_id", "user id is required", CodeMissingField)
	}
	if sub.ProofType == "" {
		result.AddError("proof_type", "proof type is required", CodeMissingField)
	} else if _, err := ParseProofType(string(sub.ProofType)); err != nil {
		result.AddError("proof_type", err.Error(), CodeInvalidProofType)
	}
	if sub.GPSFix.Latitude == 0 && sub.GPSFix.Longitude == 0 {
		result.AddError("gps_fix", "GPS coordinates are required", CodeMissingField)
	}
}

func (v *PreValidator) checkChallengeLifecycle(challenge *Challenge, result *validation.Result) {
	if challenge == nil {
		result.AddError("challenge_id", "challenge not found", CodeMissingField)
		return
	}

	now := v.now()

	if challenge.Status != ChallengeActive {
		result.AddError("challenge_id", "challenge is not active", CodeChallengeInactive)
	}
	if now.Before(challenge.StartDate) {
		result.AddError("challenge_id", "challenge has not started yet", CodeChallengeNotStarted)
	}
	if now.After(challenge.EndDate) {
		result.AddError("challenge_id", "challenge has ended", CodeChallengeEnded)
	}
	if challenge.MaxCompletions != nil && challenge.CompletionCount >= *challenge.MaxCompletions {
		result.AddError("challenge_id", "challenge has reached its completion limit", CodeChallengeFull)
	}
}

func (v *PreValidator) checkProofTypeEligibility(sub *Submission, challenge *Challenge, result *validation.Result) {
	if challenge == nil || sub.ProofType == "" {
		return
	}
	if !challenge.AllowsProofType(sub.ProofType) {
		result.AddError("proof_type",
			fmt.Sprintf("proof type %s is not accepted for this challenge", sub.ProofType),
			CodeProofTypeNotAllowed)
	}
}

// checkDuplicate blocks a second submission for a challenge the user already
// completed. The fraud engine has its own duplicate signal; this structural
// check runs even before fraud scoring.
func (v *PreValidator) checkDuplicate(sub *Submission, history *History, result *validation.Result) {
	if history == nil {
		return
	}
	for _, prior := range history.Submissions {
		if prior.ChallengeID == sub.ChallengeID && prior.VerificationStatus == StatusApproved {
			result.AddError("challenge_id", "challenge already completed by this user", CodeDuplicateSubmission)
			return
		}
	}
}

func (v *PreValidator) checkRateLimits(sub *Submission, history *History, result *validation.Result) {
	if history == nil {
		return
	}

	dayCount := history.CountSince(sub.SubmittedAt.Add(-24 * time.Hour))
	if dayCount >= v.cfg.DailySubmissionCap {
		result.AddError("submitted_at",
			fmt.Sprintf("daily submission limit of %d reached", v.cfg.DailySubmissionCap),
			CodeRateLimitExceeded)
	}

	if last := history.LastSubmissionAt; last != nil {
		if elapsed := sub.SubmittedAt.Sub(*last); elapsed >= 0 && elapsed < v.cfg.MinInterval {
			result.AddError("submitted_at",
				fmt.Sprintf("please wait %.0f seconds between submissions", v.cfg.MinInterval.Seconds()),
				CodeTooFrequent)
		}
	}
}

func (v *PreValidator) checkLocationRadius(sub *Submission, challenge *Challenge, result *validation.Result) {
	if challenge == nil {
		return
	}

	if check := geo.ValidateCoordinate(sub.GPSFix); !check.IsValid {
		result.AddError("gps_fix", strings.Join(check.Errors, "; "), CodeInvalidCoordinates)
		return
	}

	distance := geo.DistanceMeters(sub.GPSFix, challenge.Location.Coordinates)
	if distance > challenge.Location.VerificationRadiusMeters {
		result.AddError("gps_fix",
			fmt.Sprintf("you are %.0f meters from %s; submissions must be within %.0f meters",
				distance, challenge.Location.BusinessName, challenge.Location.VerificationRadiusMeters),
			CodeLocationTooFar)
	}
}

func (v *PreValidator) checkProofPayload(sub *Submission, challenge *Challenge, result *validation.Result) {
	switch proof := sub.Proof.(type) {
	case PhotoProof:
		v.validatePhoto(proof, result)
	case *PhotoProof:
		v.validatePhoto(*proof, result)
	case ReceiptProof:
		v.validateReceipt(proof, result)
	case *ReceiptProof:
		v.validateReceipt(*proof, result)
	case GPSCheckinProof:
		v.validateGPSCheckin(proof, result)
	case *GPSCheckinProof:
		v.validateGPSCheckin(*proof, result)
	case QuestionProof:
		v.validateQuestion(proof, challenge, result)
	case *QuestionProof:
		v.validateQuestion(*proof, challenge, result)
	case nil:
		result.AddError("proof", "proof payload is required", CodeMissingField)
	default:
		result.AddError("proof", "unsupported proof payload", CodeInvalidProofPayload)
	}
}

func (v *PreValidator) validatePhoto(proof PhotoProof, result *validation.Result) {
	if strings.TrimSpace(proof.ImageURL) == "" {
		result.AddError("proof.image_url", "photo proof requires an image", CodeInvalidProofPayload)
		return
	}
	if !proof.HasSignage {
		result.AddWarning("proof.has_signage", "photo does not appear to show business signage or interior", CodeNoSignageIndicator)
	}
	if !proof.HasGPSMetadata {
		result.AddWarning("proof.has_gps_metadata", "photo has no embedded GPS metadata", CodeNoGPSMetadata)
	}
}

func (v *PreValidator) validateReceipt(proof ReceiptProof, result *validation.Result) {
	if strings.TrimSpace(proof.ImageURL) == "" {
		result.AddError("proof.image_url", "receipt proof requires an image", CodeInvalidProofPayload)
	}
	if strings.TrimSpace(proof.BusinessName) == "" {
		result.AddError("proof.business_name", "receipt proof requires the business name", CodeInvalidProofPayload)
	}
	if proof.PurchasedAt.IsZero() {
		result.AddError("proof.purchased_at", "receipt proof requires a purchase timestamp", CodeInvalidProofPayload)
	} else if v.now().Sub(proof.PurchasedAt) > v.cfg.ReceiptMaxAge {
		result.AddError("proof.purchased_at",
			fmt.Sprintf("receipt must be from the last %.0f hours", v.cfg.ReceiptMaxAge.Hours()),
			CodeStaleReceipt)
	}
}

func (v *PreValidator) validateGPSCheckin(proof GPSCheckinProof, result *validation.Result) {
	if check := geo.ValidateCoordinate(proof.Coordinates); !check.IsValid {
		result.AddError("proof.coordinates", strings.Join(check.Errors, "; "), CodeInvalidProofPayload)
	}
	if proof.CheckedInAt.IsZero() {
		result.AddError("proof.checked_in_at", "GPS check-in requires a check-in time", CodeInvalidProofPayload)
	}
}

func (v *PreValidator) validateQuestion(proof QuestionProof, challenge *Challenge, result *validation.Result) {
	answer := security.NormalizeWhitespace(proof.Answer)
	if answer == "" {
		result.AddError("proof.answer", "question proof requires an answer", CodeInvalidProofPayload)
		return
	}
	if challenge != nil && challenge.QuestionAnswer != "" {
		if !strings.EqualFold(answer, security.NormalizeWhitespace(challenge.QuestionAnswer)) {
			result.AddError("proof.answer", "answer does not match", CodeAnswerMismatch)
		}
	}
}
