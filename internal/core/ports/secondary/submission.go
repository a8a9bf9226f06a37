package secondary

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.com/omj-2025.net/internal/domain"
)

type SubmissionRepository interface {
	// SaveSubmission inserts or updates a submission record
	SaveSubmission(ctx context.Context, submission *domain.Submission) error

	// GetSubmission retrieves a submission by ID, nil when not found
	GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// UpdateStatus moves a submission to a non-terminal status
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error

	// UpdateResult persists the terminal completed state
	UpdateResult(ctx context.Context, id uuid.UUID, score int, feedback string, meta map[string]interface{}) error

	// UpdateFailure persists the terminal failed state
	UpdateFailure(ctx context.Context, id uuid.UUID, kind string, message string) error

	// ListByProblem retrieves one user's recent submissions for a
	// problem, newest first
	ListByProblem(ctx context.Context, userID uuid.UUID, key domain.ProblemKey, limit int) ([]*domain.Submission, error)

	// FailStale marks non-terminal submissions created before cutoff as
	// failed, returning how many rows were touched. Covers records whose
	// grading goroutine died with the process.
	FailStale(ctx context.Context, cutoff time.Time, kind string, message string) (int64, error)
}
