package submissions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/questmap/treasure-hunt/internal/geo"
)

// ProofType identifies the kind of evidence attached to a submission.
type ProofType string

const (
	ProofPhoto            ProofType = "photo"
	ProofReceipt          ProofType = "receipt"
	ProofGPSCheckin       ProofType = "gps_checkin"
	ProofLocationQuestion ProofType = "location_question"
)

// VerificationStatus is the lifecycle state of a submission.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusApproved VerificationStatus = "approved"
	StatusRejected VerificationStatus = "rejected"
)

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	ChallengeActive   ChallengeStatus = "active"
	ChallengeInactive ChallengeStatus = "inactive"
	ChallengeArchived ChallengeStatus = "archived"
)

// Submission is a user's proof-of-visit for a challenge.
type Submission struct {
	ID                 uuid.UUID          `json:"id"`
	ChallengeID        uuid.UUID          `json:"challenge_id"`
	UserID             uuid.UUID          `json:"user_id"`
	ProofType          ProofType          `json:"proof_type"`
	GPSFix             geo.Fix            `json:"gps_fix"`
	Proof              ProofPayload       `json:"proof"`
	SubmittedAt        time.Time          `json:"submitted_at"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// ChallengeLocation is the registered business location of a challenge.
type ChallengeLocation struct {
	Coordinates              geo.Fix `json:"coordinates"`
	VerificationRadiusMeters float64 `json:"verification_radius_meters"`
	BusinessName             string  `json:"business_name"`
}

// ProofRequirements restricts which proof types a challenge accepts.
type ProofRequirements struct {
	AllowedTypes []ProofType `json:"allowed_types"`
}

// Challenge is a treasure-hunt task tied to a physical business. Read-only
// input for the validation pipeline.
type Challenge struct {
	ID                uuid.UUID         `json:"id"`
	Location          ChallengeLocation `json:"location"`
	ProofRequirements ProofRequirements `json:"proof_requirements"`
	StartDate         time.Time         `json:"start_date"`
	EndDate           time.Time         `json:"end_date"`
	Status            ChallengeStatus   `json:"status"`
	MaxCompletions    *int              `json:"max_completions,omitempty"`
	CompletionCount   int               `json:"completion_count"`
	QuestionAnswer    string            `json:"question_answer,omitempty"`
}

// AllowsProofType reports whether the challenge accepts the given proof type.
func (c *Challenge) AllowsProofType(pt ProofType) bool {
	if len(c.ProofRequirements.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range c.ProofRequirements.AllowedTypes {
		if allowed == pt {
			return true
		}
	}
	return false
}

// History is a read-only projection over a user's past submissions, newest
// first.
type History struct {
	Submissions             []Submission `json:"submissions"`
	LastSubmissionAt        *time.Time   `json:"last_submission_at,omitempty"`
	TotalSubmissions        int          `json:"total_submissions"`
	SuspiciousActivityCount int          `json:"suspicious_activity_count"`
}

// Excluding returns a copy of the history without the given submission.
// Revalidation loads history after the submission was persisted, so the
// record under evaluation must be dropped before it is treated as prior
// activity.
func (h *History) Excluding(id uuid.UUID) *History {
	if h == nil {
		return nil
	}

	out := &History{
		Submissions:             make([]Submission, 0, len(h.Submissions)),
		LastSubmissionAt:        h.LastSubmissionAt,
		TotalSubmissions:        h.TotalSubmissions,
		SuspiciousActivityCount: h.SuspiciousActivityCount,
	}

	var excluded *Submission
	for i := range h.Submissions {
		if h.Submissions[i].ID == id {
			excluded = &h.Submissions[i]
			continue
		}
		out.Submissions = append(out.Submissions, h.Submissions[i])
	}
	if excluded == nil {
		return out
	}

	if out.TotalSubmissions > 0 {
		out.TotalSubmissions--
	}
	if h.LastSubmissionAt != nil && !excluded.SubmittedAt.Before(*h.LastSubmissionAt) {
		out.LastSubmissionAt = nil
		if prev := out.MostRecent(); prev != nil {
			last := prev.SubmittedAt
			out.LastSubmissionAt = &last
		}
	}
	return out
}

// CountSince counts submissions made at or after the cutoff.
func (h *History) CountSince(cutoff time.Time) int {
	count := 0
	for _, s := range h.Submissions {
		if !s.SubmittedAt.Before(cutoff) {
			count++
		}
	}
	return count
}

// MostRecent returns the newest submission in the history, or nil.
func (h *History) MostRecent() *Submission {
	if len(h.Submissions) == 0 {
		return nil
	}
	newest := &h.Submissions[0]
	for i := range h.Submissions {
		if h.Submissions[i].SubmittedAt.After(newest.SubmittedAt) {
			newest = &h.Submissions[i]
		}
	}
	return newest
}

// ProofPayload is the tagged union of proof evidence. Concrete variants are
// dispatched by type switch instead of runtime field probing.
type ProofPayload interface {
	Type() ProofType
}

// PhotoProof is a photo of the business taken on site.
type PhotoProof struct {
	ImageURL       string `json:"image_url"`
	HasSignage     bool   `json:"has_signage"`
	HasGPSMetadata bool   `json:"has_gps_metadata"`
}

func (PhotoProof) Type() ProofType { return ProofPhoto }

// ReceiptProof is a purchase receipt from the business.
type ReceiptProof struct {
	ImageURL     string    `json:"image_url"`
	BusinessName string    `json:"business_name"`
	PurchasedAt  time.Time `json:"purchased_at"`
}

func (ReceiptProof) Type() ProofType { return ProofReceipt }

// GPSCheckinProof is a bare location check-in.
type GPSCheckinProof struct {
	Coordinates geo.Fix   `json:"coordinates"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

func (GPSCheckinProof) Type() ProofType { return ProofGPSCheckin }

// QuestionProof answers a question only someone on site could answer.
type QuestionProof struct {
	Answer string `json:"answer"`
}

func (QuestionProof) Type() ProofType { return ProofLocationQuestion }

// ImageURL returns the image URL carried by the payload, if any. The oracle
// adapter uses this to decide whether a classification call is possible.
func ImageURL(p ProofPayload) string {
	switch proof := p.(type) {
	case PhotoProof:
		return proof.ImageURL
	case *PhotoProof:
		return proof.ImageURL
	case ReceiptProof:
		return proof.ImageURL
	case *ReceiptProof:
		return proof.ImageURL
	default:
		return ""
	}
}

// DecodeProofPayload unmarshals the raw proof payload for the given type.
func DecodeProofPayload(pt ProofType, raw json.RawMessage) (ProofPayload, error) {
	switch pt {
	case ProofPhoto:
		var p PhotoProof
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid photo proof payload: %w", err)
		}
		return p, nil
	case ProofReceipt:
		var p ReceiptProof
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid receipt proof payload: %w", err)
		}
		return p, nil
	case ProofGPSCheckin:
		var p GPSCheckinProof
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid gps check-in proof payload: %w", err)
		}
		return p, nil
	case ProofLocationQuestion:
		var p QuestionProof
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid question proof payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown proof type %q", pt)
	}
}

// EncodeProofPayload marshals a payload for persistence.
func EncodeProofPayload(p ProofPayload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof payload: %w", err)
	}
	return data, nil
}

// ParseProofType validates a raw proof type string.
func ParseProofType(raw string) (ProofType, error) {
	switch pt := ProofType(strings.ToLower(strings.TrimSpace(raw))); pt {
	case ProofPhoto, ProofReceipt, ProofGPSCheckin, ProofLocationQuestion:
		return pt, nil
	default:
		return "", fmt.Errorf("unknown proof type %q", raw)
	}
}
