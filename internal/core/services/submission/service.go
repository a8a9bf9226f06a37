package submission

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/omj-2025.net/internal/domain"
)

// ISubmissionService drives a submission from admission to its
// terminal state
type ISubmissionService interface {
	// Submit admits, records and starts grading a submission. It
	// returns as soon as the record exists; grading continues in the
	// background. On rate-limit denial it returns errs.RateLimited and
	// the admission still carries the header data.
	Submit(ctx context.Context, identity domain.Identity, key domain.ProblemKey, images []string) (*domain.Submission, domain.Admission, error)

	// GetSubmission retrieves a submission by ID, nil when not found
	GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// ListSubmissions retrieves the identity's recent submissions for a
	// problem. Non-terminal records old enough that their grading
	// goroutine cannot still be running are failed first.
	ListSubmissions(ctx context.Context, identity domain.Identity, key domain.ProblemKey, limit int) ([]*domain.Submission, error)
}
