// package submissionrepository contains the PostgreSQL submission store
package submissionrepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/domain"
)

var _ secondary.SubmissionRepository = (*SubmissionRepository)(nil)

// SubmissionRepository implements the SubmissionRepository interface
// with PostgreSQL
type SubmissionRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

// NewSubmissionRepository creates a new PostgreSQL submission repository
func NewSubmissionRepository(db *sqlx.DB, logger primary.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
	}
}

// SaveSubmission saves a submission to PostgreSQL
func (r *SubmissionRepository) SaveSubmission(ctx context.Context, submission *domain.Submission) error {
	imagesJSON, err := json.Marshal(submission.Images)
	if err != nil {
		r.logger.Error("Failed to marshal submission images", "error", err)
		return fmt.Errorf("failed to marshal submission images: %w", err)
	}

	var metaJSON []byte
	if submission.ScoringMeta != nil {
		metaJSON, err = json.Marshal(submission.ScoringMeta)
		if err != nil {
			r.logger.Error("Failed to marshal scoring meta", "error", err)
			return fmt.Errorf("failed to marshal scoring meta: %w", err)
		}
	}

	query := `
		INSERT INTO submissions (
			id, user_id, year, etap, task_number, images, status,
			score, feedback, error_kind, error_message, scoring_meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			feedback = EXCLUDED.feedback,
			error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message,
			scoring_meta = EXCLUDED.scoring_meta
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		submission.ID,
		submission.UserID,
		submission.Problem.Year,
		submission.Problem.Etap,
		submission.Problem.Number,
		imagesJSON,
		submission.Status,
		submission.Score,
		submission.Feedback,
		submission.ErrorKind,
		submission.ErrorMessage,
		metaJSON,
		submission.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to save submission", "error", err)
		return fmt.Errorf("failed to save submission: %w", err)
	}

	return nil
}

// GetSubmission retrieves a submission from PostgreSQL by ID
func (r *SubmissionRepository) GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT id, user_id, year, etap, task_number, images, status,
			   score, feedback, error_kind, error_message, scoring_meta, created_at
		FROM submissions
		WHERE id = $1
	`

	sub, err := r.scanSubmission(r.db.QueryRowxContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get submission", "submissionId", id, "error", err)
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return sub, nil
}

// UpdateStatus updates a submission's status in PostgreSQL
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error {
	query := `
		UPDATE submissions
		SET status = $1
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update submission status", "error", err)
		return fmt.Errorf("failed to update submission status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}

	return nil
}

// UpdateResult persists the terminal completed state
func (r *SubmissionRepository) UpdateResult(ctx context.Context, id uuid.UUID, score int, feedback string, meta map[string]interface{}) error {
	var metaJSON []byte
	if meta != nil {
		var err error
		metaJSON, err = json.Marshal(meta)
		if err != nil {
			r.logger.Error("Failed to marshal scoring meta", "error", err)
			return fmt.Errorf("failed to marshal scoring meta: %w", err)
		}
	}

	query := `
		UPDATE submissions
		SET status = $1, score = $2, feedback = $3, scoring_meta = $4,
		    error_kind = NULL, error_message = NULL
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, domain.SubmissionStatusCompleted, score, feedback, metaJSON, id)
	if err != nil {
		r.logger.Error("Failed to update submission result", "error", err)
		return fmt.Errorf("failed to update submission result: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}

	return nil
}

// UpdateFailure persists the terminal failed state
func (r *SubmissionRepository) UpdateFailure(ctx context.Context, id uuid.UUID, kind string, message string) error {
	query := `
		UPDATE submissions
		SET status = $1, error_kind = $2, error_message = $3,
		    score = NULL, feedback = NULL
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, domain.SubmissionStatusFailed, kind, message, id)
	if err != nil {
		r.logger.Error("Failed to update submission failure", "error", err)
		return fmt.Errorf("failed to update submission failure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}

	return nil
}

// ListByProblem retrieves one user's recent submissions for a problem,
// newest first
func (r *SubmissionRepository) ListByProblem(ctx context.Context, userID uuid.UUID, key domain.ProblemKey, limit int) ([]*domain.Submission, error) {
	query := `
		SELECT id, user_id, year, etap, task_number, images, status,
			   score, feedback, error_kind, error_message, scoring_meta, created_at
		FROM submissions
		WHERE user_id = $1 AND year = $2 AND etap = $3 AND task_number = $4
		ORDER BY created_at DESC
		LIMIT $5
	`

	rows, err := r.db.QueryxContext(ctx, query, userID, key.Year, key.Etap, key.Number, limit)
	if err != nil {
		r.logger.Error("Failed to list submissions", "error", err)
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]*domain.Submission, 0)
	for rows.Next() {
		sub, err := r.scanSubmission(rows)
		if err != nil {
			r.logger.Error("Failed to scan submission row", "error", err)
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		submissions = append(submissions, sub)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating submission rows", "error", err)
		return nil, fmt.Errorf("error iterating submission rows: %w", err)
	}

	return submissions, nil
}

// FailStale marks non-terminal submissions created before cutoff as
// failed. These are records whose grading goroutine died with the
// process; nothing will ever finish them.
func (r *SubmissionRepository) FailStale(ctx context.Context, cutoff time.Time, kind string, message string) (int64, error) {
	query := `
		UPDATE submissions
		SET status = $1, error_kind = $2, error_message = $3
		WHERE status IN ($4, $5) AND created_at < $6
	`

	result, err := r.db.ExecContext(ctx, query,
		domain.SubmissionStatusFailed, kind, message,
		domain.SubmissionStatusPending, domain.SubmissionStatusProcessing, cutoff)
	if err != nil {
		r.logger.Error("Failed to mark stale submissions", "error", err)
		return 0, fmt.Errorf("failed to mark stale submissions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SubmissionRepository) scanSubmission(row rowScanner) (*domain.Submission, error) {
	var sub domain.Submission
	var imagesJSON []byte
	var metaJSON []byte
	var score sql.NullInt64
	var feedback, errorKind, errorMessage sql.NullString

	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Problem.Year,
		&sub.Problem.Etap,
		&sub.Problem.Number,
		&imagesJSON,
		&sub.Status,
		&score,
		&feedback,
		&errorKind,
		&errorMessage,
		&metaJSON,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		v := int(score.Int64)
		sub.Score = &v
	}
	if feedback.Valid {
		sub.Feedback = &feedback.String
	}
	if errorKind.Valid {
		sub.ErrorKind = &errorKind.String
	}
	if errorMessage.Valid {
		sub.ErrorMessage = &errorMessage.String
	}

	if err := json.Unmarshal(imagesJSON, &sub.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission images: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &sub.ScoringMeta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scoring meta: %w", err)
		}
	}

	return &sub, nil
}
