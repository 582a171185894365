package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/questmap/treasure-hunt/internal/decision"
	"github.com/questmap/treasure-hunt/internal/fraud"
	"github.com/questmap/treasure-hunt/internal/oracle"
	"github.com/questmap/treasure-hunt/internal/submissions"
	"github.com/questmap/treasure-hunt/pkg/logger"
	"github.com/questmap/treasure-hunt/pkg/metrics"
	"github.com/questmap/treasure-hunt/pkg/validation"
)

const (
	// historyLookback bounds how much submission history the fraud
	// evaluators see. Must cover at least the 24h rate-limit window.
	historyLookback = 30 * 24 * time.Hour

	defaultBatchSize  = 5
	defaultBatchDelay = time.Second
)

// Result is the full outcome of validating one submission.
type Result struct {
	SubmissionID  uuid.UUID          `json:"submission_id"`
	Outcome       decision.Outcome   `json:"outcome"`
	FraudVerdict  *fraud.Verdict     `json:"fraud_verdict,omitempty"`
	Oracle        *oracle.Assessment `json:"oracle,omitempty"`
	PreValidation *validation.Result `json:"pre_validation,omitempty"`
}

// Approved reports whether the submission ended approved.
func (r *Result) Approved() bool {
	return r.Outcome.Status == decision.StatusApproved
}

// Service runs the submission validation pipeline: pre-validation, then
// concurrent fraud and oracle evaluation, then the decision policy, then
// write-back and metrics.
type Service struct {
	store        SubmissionStore
	oracle       OracleClient
	decisions    DecisionStore
	policy       *decision.Policy
	fraudEngine  *fraud.Engine
	preValidator *submissions.PreValidator
	recorder     metrics.Recorder

	batchSize  int
	batchDelay time.Duration
}

// NewService creates the validation pipeline service.
func NewService(
	store SubmissionStore,
	oracleClient OracleClient,
	decisions DecisionStore,
	policy *decision.Policy,
	fraudEngine *fraud.Engine,
	preValidator *submissions.PreValidator,
	recorder metrics.Recorder,
) *Service {
	return &Service{
		store:        store,
		oracle:       oracleClient,
		decisions:    decisions,
		policy:       policy,
		fraudEngine:  fraudEngine,
		preValidator: preValidator,
		recorder:     recorder,
		batchSize:    defaultBatchSize,
		batchDelay:   defaultBatchDelay,
	}
}

// Submit pre-validates and persists a new submission, then runs the full
// validation pipeline on it. Structural failures are returned without
// persisting anything.
func (s *Service) Submit(ctx context.Context, sub *submissions.Submission) (*Result, error) {
	challenge, err := s.store.GetChallengeByID(ctx, sub.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	history, err := s.store.GetUserHistory(ctx, sub.UserID, historyLookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission history: %w", err)
	}

	preResult := s.preValidator.Validate(sub, challenge, history)
	if !preResult.Valid() {
		return &Result{
			SubmissionID:  sub.ID,
			PreValidation: preResult,
			Outcome: decision.Outcome{
				Status: decision.StatusRejected,
				Reason: preResult.Error(),
			},
		}, nil
	}

	sub.VerificationStatus = submissions.StatusPending
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to persist submission: %w", err)
	}

	result := s.validate(ctx, sub, challenge, history)
	result.PreValidation = preResult
	return result, nil
}

// Revalidate re-runs the pipeline on an already persisted submission, e.g.
// after an oracle outage cleared.
func (s *Service) Revalidate(ctx context.Context, submissionID uuid.UUID) (*Result, error) {
	sub, err := s.store.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	challenge, err := s.store.GetChallengeByID(ctx, sub.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	history, err := s.store.GetUserHistory(ctx, sub.UserID, historyLookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission history: %w", err)
	}

	return s.validate(ctx, sub, challenge, history), nil
}

// validate runs fraud and oracle evaluation concurrently, reduces them
// through the decision policy, and writes the outcome back. The status
// write-back is the last state change so an abandoned call never leaves
// a half-written submission.
func (s *Service) validate(ctx context.Context, sub *submissions.Submission, challenge *submissions.Challenge, history *submissions.History) *Result {
	// The fraud evaluators must only see prior activity, never the
	// submission being judged.
	history = history.Excluding(sub.ID)

	var (
		wg         sync.WaitGroup
		verdict    fraud.Verdict
		assessment *oracle.Assessment
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		verdict = s.fraudEngine.Evaluate(sub, history, challenge.Location)
	}()
	go func() {
		defer wg.Done()
		assessment = s.oracle.Assess(ctx, sub, challenge)
	}()
	wg.Wait()

	outcome := s.policy.Decide(&verdict, assessment)
	fraudDetected := !verdict.IsValid

	s.persistOutcome(ctx, sub, outcome, fraudDetected)

	s.recorder.RecordValidation(ctx, metrics.Outcome(outcome.Status), outcome.Confidence, fraudDetected)

	logger.WithContext(ctx).Info("submission validated",
		zap.String("submission_id", sub.ID.String()),
		zap.String("status", string(outcome.Status)),
		zap.Float64("confidence", outcome.Confidence),
		zap.Bool("fraud_detected", fraudDetected),
	)

	return &Result{
		SubmissionID: sub.ID,
		Outcome:      outcome,
		FraudVerdict: &verdict,
		Oracle:       assessment,
	}
}

func (s *Service) persistOutcome(ctx context.Context, sub *submissions.Submission, outcome decision.Outcome, fraudDetected bool) {
	rec := &decision.Record{
		ID:            uuid.New(),
		SubmissionID:  sub.ID,
		Status:        outcome.Status,
		Reason:        outcome.Reason,
		Confidence:    outcome.Confidence,
		FraudDetected: fraudDetected,
		DecidedAt:     time.Now(),
	}
	if err := s.decisions.Create(ctx, rec); err != nil {
		logger.WithContext(ctx).Error("failed to persist decision record",
			zap.String("submission_id", sub.ID.String()),
			zap.Error(err))
	}

	switch outcome.Status {
	case decision.StatusApproved:
		if err := s.store.UpdateVerificationStatus(ctx, sub.ID, submissions.StatusApproved); err != nil {
			logger.WithContext(ctx).Error("failed to write back status", zap.Error(err))
			return
		}
		if err := s.store.IncrementCompletionCount(ctx, sub.ChallengeID); err != nil {
			logger.WithContext(ctx).Error("failed to increment completion count", zap.Error(err))
		}
	case decision.StatusRejected:
		if err := s.store.UpdateVerificationStatus(ctx, sub.ID, submissions.StatusRejected); err != nil {
			logger.WithContext(ctx).Error("failed to write back status", zap.Error(err))
		}
	case decision.StatusManualReview:
		// Stays pending until a reviewer decides.
	}
}

// ValidateBatch re-validates many submissions in small batches with a delay
// between batches, as backpressure against the oracle's rate limits.
func (s *Service) ValidateBatch(ctx context.Context, ids []uuid.UUID) ([]*Result, error) {
	results := make([]*Result, 0, len(ids))

	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		for _, id := range ids[start:end] {
			result, err := s.Revalidate(ctx, id)
			if err != nil {
				logger.WithContext(ctx).Warn("batch validation skipped submission",
					zap.String("submission_id", id.String()),
					zap.Error(err))
				results = append(results, &Result{
					SubmissionID: id,
					Outcome:      decision.SystemErrorOutcome(),
				})
				continue
			}
			results = append(results, result)
		}

		if end < len(ids) {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}
	}

	return results, nil
}

// Submission loads a single submission by ID.
func (s *Service) Submission(ctx context.Context, submissionID uuid.UUID) (*submissions.Submission, error) {
	return s.store.GetSubmissionByID(ctx, submissionID)
}

// PendingReview lists submissions waiting for a manual decision.
func (s *Service) PendingReview(ctx context.Context, limit, offset int) ([]*submissions.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListPendingReview(ctx, limit, offset)
}

// ResolveReview applies a reviewer's decision to a pending submission.
func (s *Service) ResolveReview(ctx context.Context, submissionID uuid.UUID, approve bool, reason string) error {
	sub, err := s.store.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return err
	}

	status := submissions.StatusRejected
	outcomeStatus := decision.StatusRejected
	if approve {
		status = submissions.StatusApproved
		outcomeStatus = decision.StatusApproved
	}

	if err := s.store.UpdateVerificationStatus(ctx, sub.ID, status); err != nil {
		return err
	}
	if approve {
		if err := s.store.IncrementCompletionCount(ctx, sub.ChallengeID); err != nil {
			logger.WithContext(ctx).Error("failed to increment completion count", zap.Error(err))
		}
	}

	rec := &decision.Record{
		ID:           uuid.New(),
		SubmissionID: sub.ID,
		Status:       outcomeStatus,
		Reason:       fmt.Sprintf("manual review: %s", reason),
		DecidedAt:    time.Now(),
	}
	if err := s.decisions.Create(ctx, rec); err != nil {
		logger.WithContext(ctx).Error("failed to persist review decision", zap.Error(err))
	}

	return nil
}
