package decision

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Record is the persisted audit trail of a single decision.
type Record struct {
	ID            uuid.UUID `json:"id"`
	SubmissionID  uuid.UUID `json:"submission_id"`
	Status        Status    `json:"status"`
	Reason        string    `json:"reason"`
	Confidence    float64   `json:"confidence"`
	FraudDetected bool      `json:"fraud_detected"`
	DecidedAt     time.Time `json:"decided_at"`
}

// WindowStats summarizes decisions inside a trailing window. The tuner reads
// these to decide whether to nudge the thresholds.
type WindowStats struct {
	Total            int     `json:"total"`
	Approved         int     `json:"approved"`
	Rejected         int     `json:"rejected"`
	ManualReview     int     `json:"manual_review"`
	FraudDetected    int     `json:"fraud_detected"`
	ManualReviewRate float64 `json:"manual_review_rate"`
	FraudRate        float64 `json:"fraud_rate"`
}

// Repository persists the decision audit trail.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new decision repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a decision record.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO validation_decisions (
			id, submission_id, status, reason, confidence, fraud_detected, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.SubmissionID,
		rec.Status,
		rec.Reason,
		rec.Confidence,
		rec.FraudDetected,
		rec.DecidedAt,
	)

	return err
}

// GetBySubmission retrieves the decision trail for a submission, newest
// first.
func (r *Repository) GetBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*Record, error) {
	query := `
		SELECT id, submission_id, status, reason, confidence, fraud_detected, decided_at
		FROM validation_decisions
		WHERE submission_id = $1
		ORDER BY decided_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		var rec Record
		err := rows.Scan(
			&rec.ID,
			&rec.SubmissionID,
			&rec.Status,
			&rec.Reason,
			&rec.Confidence,
			&rec.FraudDetected,
			&rec.DecidedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// StatsSince aggregates decisions made at or after the cutoff.
func (r *Repository) StatsSince(ctx context.Context, cutoff time.Time) (*WindowStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'manual_review'),
			COUNT(*) FILTER (WHERE fraud_detected)
		FROM validation_decisions
		WHERE decided_at >= $1
	`

	var stats WindowStats
	err := r.db.QueryRowContext(ctx, query, cutoff).Scan(
		&stats.Total,
		&stats.Approved,
		&stats.Rejected,
		&stats.ManualReview,
		&stats.FraudDetected,
	)
	if err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.ManualReviewRate = float64(stats.ManualReview) / float64(stats.Total)
		stats.FraudRate = float64(stats.FraudDetected) / float64(stats.Total)
	}

	return &stats, nil
}
