package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a submission or challenge does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles submission and challenge persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new submissions repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSubmission inserts a new submission in pending state.
func (r *Repository) CreateSubmission(ctx context.Context, sub *Submission) error {
	proofJSON, err := EncodeProofPayload(sub.Proof)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO submissions (
			id, challenge_id, user_id, proof_type, latitude, longitude,
			accuracy_m, captured_at, proof, verification_status, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.Exec(ctx, query,
		sub.ID,
		sub.ChallengeID,
		sub.UserID,
		sub.ProofType,
		sub.GPSFix.Latitude,
		sub.GPSFix.Longitude,
		sub.GPSFix.AccuracyM,
		sub.GPSFix.CapturedAt,
		proofJSON,
		sub.VerificationStatus,
		sub.SubmittedAt,
	)

	return err
}

const submissionColumns = `
	id, challenge_id, user_id, proof_type, latitude, longitude,
	accuracy_m, captured_at, proof, verification_status, submitted_at
`

// GetSubmissionByID retrieves a submission by ID.
func (r *Repository) GetSubmissionByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	sub, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

// UpdateVerificationStatus records the outcome of validation.
func (r *Repository) UpdateVerificationStatus(ctx context.Context, id uuid.UUID, status VerificationStatus) error {
	query := `
		UPDATE submissions
		SET verification_status = $2, verified_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUserHistory builds the history projection the fraud engine and
// pre-validator consume: the user's submissions inside the lookback window,
// newest first, plus their most recent submission time overall.
func (r *Repository) GetUserHistory(ctx context.Context, userID uuid.UUID, lookback time.Duration) (*History, error) {
	query := `SELECT ` + submissionColumns + `
		FROM submissions
		WHERE user_id = $1 AND submitted_at >= $2
		ORDER BY submitted_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID, time.Now().Add(-lookback))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := &History{Submissions: make([]Submission, 0)}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		history.Submissions = append(history.Submissions, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var lastAt *time.Time
	err = r.db.QueryRow(ctx,
		`SELECT MAX(submitted_at) FROM submissions WHERE user_id = $1`, userID,
	).Scan(&lastAt)
	if err != nil {
		return nil, err
	}
	history.LastSubmissionAt = lastAt

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE user_id = $1`, userID,
	).Scan(&history.TotalSubmissions)
	if err != nil {
		return nil, err
	}

	return history, nil
}

// ListPendingReview returns submissions waiting for a manual decision, oldest
// first so reviewers drain the queue in order.
func (r *Repository) ListPendingReview(ctx context.Context, limit, offset int) ([]*Submission, error) {
	query := `SELECT ` + submissionColumns + `
		FROM submissions
		WHERE verification_status = $1
		ORDER BY submitted_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, StatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]*Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetChallengeByID retrieves a challenge with its registered location.
func (r *Repository) GetChallengeByID(ctx context.Context, id uuid.UUID) (*Challenge, error) {
	query := `
		SELECT id, latitude, longitude, verification_radius_m, business_name,
		       allowed_proof_types, start_date, end_date, status,
		       max_completions, completion_count, question_answer
		FROM challenges
		WHERE id = $1
	`

	var (
		c             Challenge
		allowedJSON   []byte
		questionAns   *string
		maxCompletion *int
	)

	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Location.Coordinates.Latitude,
		&c.Location.Coordinates.Longitude,
		&c.Location.VerificationRadiusMeters,
		&c.Location.BusinessName,
		&allowedJSON,
		&c.StartDate,
		&c.EndDate,
		&c.Status,
		&maxCompletion,
		&c.CompletionCount,
		&questionAns,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(allowedJSON) > 0 {
		if err := json.Unmarshal(allowedJSON, &c.ProofRequirements.AllowedTypes); err != nil {
			return nil, fmt.Errorf("invalid allowed_proof_types for challenge %s: %w", c.ID, err)
		}
	}
	c.MaxCompletions = maxCompletion
	if questionAns != nil {
		c.QuestionAnswer = *questionAns
	}

	return &c, nil
}

// IncrementCompletionCount bumps the challenge's completion counter after an
// approved submission.
func (r *Repository) IncrementCompletionCount(ctx context.Context, challengeID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE challenges SET completion_count = completion_count + 1 WHERE id = $1`,
		challengeID,
	)
	return err
}

func scanSubmission(row pgx.Row) (*Submission, error) {
	var (
		sub       Submission
		proofJSON json.RawMessage
	)

	err := row.Scan(
		&sub.ID,
		&sub.ChallengeID,
		&sub.UserID,
		&sub.ProofType,
		&sub.GPSFix.Latitude,
		&sub.GPSFix.Longitude,
		&sub.GPSFix.AccuracyM,
		&sub.GPSFix.CapturedAt,
		&proofJSON,
		&sub.VerificationStatus,
		&sub.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(proofJSON) > 0 && string(proofJSON) != "null" {
		proof, err := DecodeProofPayload(sub.ProofType, proofJSON)
		if err != nil {
			return nil, err
		}
		sub.Proof = proof
	}

	return &sub, nil
}
