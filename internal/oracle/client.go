package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/questmap/treasure-hunt/internal/submissions"
	"github.com/questmap/treasure-hunt/pkg/config"
	"github.com/questmap/treasure-hunt/pkg/logger"
	"github.com/questmap/treasure-hunt/pkg/resilience"
)

// SuggestedAction is the oracle's recommendation for a submission.
type SuggestedAction string

const (
	ActionApprove      SuggestedAction = "approve"
	ActionReject       SuggestedAction = "reject"
	ActionManualReview SuggestedAction = "manual_review"
)

// ValidationType selects the oracle model applied to the proof image.
type ValidationType string

const (
	ValidationReceipt         ValidationType = "receipt"
	ValidationBusinessSignage ValidationType = "business_signage"
	ValidationLocationProof   ValidationType = "location_proof"
)

// Assessment is the oracle's judgment of a proof image.
type Assessment struct {
	IsValid         bool            `json:"isValid"`
	Confidence      float64         `json:"confidence"`
	Reason          string          `json:"reason"`
	SuggestedAction SuggestedAction `json:"suggestedAction"`
}

type classifyRequest struct {
	ImageURL             string         `json:"imageUrl"`
	ExpectedBusinessName string         `json:"expectedBusinessName"`
	ExpectedLocation     latLng         `json:"expectedLocation"`
	ValidationType       ValidationType `json:"validationType"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Client calls the external proof classification service. Failures never
// bubble up as validation errors: every path that cannot produce a real
// assessment degrades to a manual-review recommendation instead.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *resilience.Breaker
}

// NewClient creates an oracle client with a circuit breaker around the
// upstream service.
func NewClient(cfg config.OracleConfig) *Client {
	settings := resilience.BuildSettings(
		"oracle",
		cfg.BreakerInterval,
		cfg.BreakerTimeout,
		cfg.FailureThreshold,
		1,
	)

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout()},
		breaker: resilience.NewBreaker(settings, resilience.GracefulDegradation("oracle")),
	}
}

// Assess classifies the submission's proof image against the challenge's
// registered business. Submissions without an image skip the upstream call
// entirely; upstream errors of any kind degrade to a zero-confidence
// manual-review assessment.
func (c *Client) Assess(ctx context.Context, sub *submissions.Submission, challenge *submissions.Challenge) *Assessment {
	imageURL := submissions.ImageURL(sub.Proof)
	if imageURL == "" {
		return &Assessment{
			IsValid:         false,
			Confidence:      0,
			Reason:          "No image provided",
			SuggestedAction: ActionReject,
		}
	}

	req := classifyRequest{
		ImageURL:             imageURL,
		ExpectedBusinessName: challenge.Location.BusinessName,
		ExpectedLocation: latLng{
			Lat: challenge.Location.Coordinates.Latitude,
			Lng: challenge.Location.Coordinates.Longitude,
		},
		ValidationType: validationTypeFor(sub.ProofType),
	}

	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.classify(ctx, req)
	})
	if err != nil {
		logger.WithContext(ctx).Warn("oracle call failed, degrading to manual review",
			zap.String("submission_id", sub.ID.String()),
			zap.Error(err))
		return fallbackAssessment()
	}

	assessment, ok := result.(*Assessment)
	if !ok || assessment == nil {
		return fallbackAssessment()
	}
	return assessment
}

func (c *Client) classify(ctx context.Context, req classifyRequest) (*Assessment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var assessment Assessment
	if err := json.NewDecoder(resp.Body).Decode(&assessment); err != nil {
		return nil, fmt.Errorf("failed to decode oracle response: %w", err)
	}

	switch assessment.SuggestedAction {
	case ActionApprove, ActionReject, ActionManualReview:
	default:
		return nil, fmt.Errorf("oracle returned unknown action %q", assessment.SuggestedAction)
	}

	return &assessment, nil
}

// fallbackAssessment is the degraded result when the oracle is unreachable or
// misbehaving. Confidence zero keeps the decision policy from auto-approving
// on a guess.
func fallbackAssessment() *Assessment {
	return &Assessment{
		IsValid:         false,
		Confidence:      0,
		Reason:          "Classification service unavailable",
		SuggestedAction: ActionManualReview,
	}
}

func validationTypeFor(pt submissions.ProofType) ValidationType {
	switch pt {
	case submissions.ProofReceipt:
		return ValidationReceipt
	case submissions.ProofPhoto:
		return ValidationBusinessSignage
	default:
		return ValidationLocationProof
	}
}
