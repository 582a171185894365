package decision

import (
	"fmt"
	"strings"
	"sync"

	"github.com/questmap/treasure-hunt/internal/fraud"
	"github.com/questmap/treasure-hunt/internal/oracle"
)

// Status is the final outcome of a validated submission.
type Status string

const (
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusManualReview Status = "manual_review"
)

// Default thresholds. Tunable at runtime within the bounds enforced by
// Thresholds.Set.
const (
	DefaultAutoApproveThreshold = 0.85
	DefaultAutoRejectThreshold  = 0.30

	minApproveThreshold = 0.5
	maxApproveThreshold = 0.95
	minRejectThreshold  = 0.3
	maxRejectThreshold  = 0.5
)

// Outcome is the policy's final decision with its human-readable reason.
type Outcome struct {
	Status     Status  `json:"status"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Thresholds holds the auto-approve/auto-reject confidence cutoffs. Safe for
// concurrent use: the tuner adjusts them while validation reads them.
type Thresholds struct {
	mu          sync.RWMutex
	autoApprove float64
	autoReject  float64
}

// NewThresholds constructs a threshold pair, falling back to the defaults for
// out-of-range values.
func NewThresholds(autoApprove, autoReject float64) *Thresholds {
	t := &Thresholds{
		autoApprove: DefaultAutoApproveThreshold,
		autoReject:  DefaultAutoRejectThreshold,
	}
	t.Set(autoApprove, autoReject)
	return t
}

// Get returns the current (approve, reject) thresholds.
func (t *Thresholds) Get() (float64, float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.autoApprove, t.autoReject
}

// Set updates the thresholds, clamping each to its allowed range and
// refusing any update that would break reject < approve. It returns the
// values actually in effect afterwards.
func (t *Thresholds) Set(autoApprove, autoReject float64) (float64, float64) {
	autoApprove = clamp(autoApprove, minApproveThreshold, maxApproveThreshold)
	autoReject = clamp(autoReject, minRejectThreshold, maxRejectThreshold)

	t.mu.Lock()
	defer t.mu.Unlock()

	if autoReject < autoApprove {
		t.autoApprove = autoApprove
		t.autoReject = autoReject
	}
	return t.autoApprove, t.autoReject
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Policy combines the fraud verdict and the oracle assessment into a final
// decision.
type Policy struct {
	thresholds *Thresholds
}

// NewPolicy creates a decision policy over the given thresholds.
func NewPolicy(thresholds *Thresholds) *Policy {
	if thresholds == nil {
		thresholds = NewThresholds(DefaultAutoApproveThreshold, DefaultAutoRejectThreshold)
	}
	return &Policy{thresholds: thresholds}
}

// Thresholds exposes the mutable threshold pair, for the tuner.
func (p *Policy) Thresholds() *Thresholds {
	return p.thresholds
}

// Decide evaluates the decision state machine in order, first match wins.
// Fraud evidence is conclusive: a failed fraud verdict rejects outright and
// is never softened to manual review, whatever the oracle reported.
func (p *Policy) Decide(verdict *fraud.Verdict, assessment *oracle.Assessment) Outcome {
	if verdict != nil && !verdict.IsValid {
		return Outcome{
			Status:     StatusRejected,
			Reason:     strings.Join(verdict.Reasons, "; "),
			Confidence: verdict.Confidence,
		}
	}

	if assessment == nil {
		return SystemErrorOutcome()
	}

	// The oracle adapter degrades outages and malformed responses to a
	// zero-confidence manual-review recommendation. Honoring it here keeps
	// an oracle failure from turning into a hard rejection.
	if assessment.SuggestedAction == oracle.ActionManualReview && assessment.Confidence == 0 {
		return Outcome{
			Status:     StatusManualReview,
			Reason:     "system error during validation",
			Confidence: 0,
		}
	}

	autoApprove, autoReject := p.thresholds.Get()

	if assessment.Confidence >= autoApprove && assessment.IsValid {
		return Outcome{
			Status:     StatusApproved,
			Reason:     assessment.Reason,
			Confidence: assessment.Confidence,
		}
	}

	if assessment.Confidence <= autoReject || !assessment.IsValid {
		return Outcome{
			Status:     StatusRejected,
			Reason:     assessment.Reason,
			Confidence: assessment.Confidence,
		}
	}

	return Outcome{
		Status:     StatusManualReview,
		Reason:     fmt.Sprintf("confidence %.2f requires human review", assessment.Confidence),
		Confidence: assessment.Confidence,
	}
}

// SystemErrorOutcome is the degraded decision when the pipeline itself
// failed. The policy never fails open into approval.
func SystemErrorOutcome() Outcome {
	return Outcome{
		Status:     StatusManualReview,
		Reason:     "system error during validation",
		Confidence: 0,
	}
}
