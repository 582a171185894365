package verification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/questmap/treasure-hunt/internal/decision"
	"github.com/questmap/treasure-hunt/internal/oracle"
	"github.com/questmap/treasure-hunt/internal/submissions"
)

// SubmissionStore defines the contract for submission persistence
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *submissions.Submission) error
	GetSubmissionByID(ctx context.Context, id uuid.UUID) (*submissions.Submission, error)
	UpdateVerificationStatus(ctx context.Context, id uuid.UUID, status submissions.VerificationStatus) error
	GetUserHistory(ctx context.Context, userID uuid.UUID, lookback time.Duration) (*submissions.History, error)
	ListPendingReview(ctx context.Context, limit, offset int) ([]*submissions.Submission, error)
	GetChallengeByID(ctx context.Context, id uuid.UUID) (*submissions.Challenge, error)
	IncrementCompletionCount(ctx context.Context, challengeID uuid.UUID) error
}

// OracleClient is the external proof classifier (allows mocking)
type OracleClient interface {
	Assess(ctx context.Context, sub *submissions.Submission, challenge *submissions.Challenge) *oracle.Assessment
}

// DecisionStore persists the decision audit trail
type DecisionStore interface {
	Create(ctx context.Context, rec *decision.Record) error
}
