package secondary

import (
	"context"

	"gitlab.com/omj-2025.net/internal/domain"
)

// GradingRequest is everything a provider needs to grade one submission
type GradingRequest struct {
	SubmissionID string
	Materials    domain.ProblemMaterials
	ImagePaths   []string
	// OnStatus receives best-effort progress messages while the
	// provider works. May be nil.
	OnStatus func(message string)
}

// GradingProvider is the uniform contract over an external AI grading
// backend. Grade returns either a normalized verdict, with the score
// already snapped to the etap's valid score set, or a
// *domain.GradingError. The caller enforces the deadline through ctx;
// a provider must stop early when ctx is done but the caller does not
// rely on it.
type GradingProvider interface {
	Name() string
	Grade(ctx context.Context, req *GradingRequest) (*domain.Verdict, error)
}
