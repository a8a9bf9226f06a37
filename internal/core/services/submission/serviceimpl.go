package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/core/services/notify"
	"gitlab.com/omj-2025.net/internal/core/services/ratelimit"
	"gitlab.com/omj-2025.net/internal/domain"
	"gitlab.com/omj-2025.net/internal/static/errs"
)

var _ ISubmissionService = (*SubmissionService)(nil)

// failKindInternal marks failures that are not provider errors,
// e.g. missing reference materials or a persist error mid-flight
const failKindInternal = "internal"

// User-facing status and failure messages
const (
	statusUploading  = "Przesyłam pliki..."
	statusFinalizing = "Finalizowanie..."
	msgTimeout       = "Analiza trwa zbyt długo. Spróbuj ponownie za chwilę."
	msgInternal      = "Przepraszamy, coś poszło nie tak. Spróbuj ponownie za chwilę."
	msgStale         = "Przekroczono limit czasu przetwarzania. Spróbuj ponownie."
)

// staleGrace pads the grading timeout before a non-terminal record is
// treated as orphaned by a process restart
const staleGrace = time.Minute

// SubmissionService orchestrates the submission state machine:
// pending -> processing -> completed | failed. Each admitted
// submission is graded by its own goroutine; that goroutine is the
// record's single writer from then on.
type SubmissionService struct {
	submissionRepo secondary.SubmissionRepository
	taskStore      secondary.TaskStore
	provider       secondary.GradingProvider
	limiter        ratelimit.IRateLimitService
	hub            *notify.Hub
	logger         primary.Logger
	gradingTimeout time.Duration
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	submissionRepo secondary.SubmissionRepository,
	taskStore secondary.TaskStore,
	provider secondary.GradingProvider,
	limiter ratelimit.IRateLimitService,
	hub *notify.Hub,
	logger primary.Logger,
	gradingTimeout time.Duration,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		taskStore:      taskStore,
		provider:       provider,
		limiter:        limiter,
		hub:            hub,
		logger:         logger,
		gradingTimeout: gradingTimeout,
	}
}

// Submit admits a submission and hands grading off to a background
// goroutine
func (s *SubmissionService) Submit(ctx context.Context, identity domain.Identity, key domain.ProblemKey, images []string) (*domain.Submission, domain.Admission, error) {
	task, err := s.taskStore.GetTask(ctx, key)
	if err != nil {
		s.logger.Error("Failed to look up task", "task", key.String(), "error", err)
		return nil, domain.Admission{}, fmt.Errorf("failed to look up task: %w", err)
	}
	if task == nil {
		return nil, domain.Admission{}, errs.TaskNotFound
	}

	admission, err := s.limiter.Admit(ctx, identity)
	if err != nil {
		return nil, domain.Admission{}, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !admission.Allowed {
		return nil, admission, errs.RateLimited
	}

	sub := domain.NewSubmission(identity.UserID, key, images)
	if err := s.submissionRepo.SaveSubmission(ctx, sub); err != nil {
		s.logger.Error("Failed to save submission", "submissionId", sub.ID, "error", err)
		return nil, admission, fmt.Errorf("failed to save submission: %w", err)
	}

	// bind the channel before the caller gets the locator so no event
	// published in the meantime is lost
	s.hub.Register(sub.ID.String())

	s.logger.Info("Submission accepted",
		"submissionId", sub.ID,
		"user", identity.Username,
		"task", key.String(),
		"images", len(images))

	go s.process(sub)

	return sub, admission, nil
}

// GetSubmission retrieves a submission by ID
func (s *SubmissionService) GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	sub, err := s.submissionRepo.GetSubmission(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get submission", "submissionId", id, "error", err)
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// ListSubmissions retrieves the identity's recent submissions for a
// problem. Records still marked pending or processing long past the
// grading timeout lost their goroutine to a restart; they are failed
// here so the history never shows a submission as forever in flight.
func (s *SubmissionService) ListSubmissions(ctx context.Context, identity domain.Identity, key domain.ProblemKey, limit int) ([]*domain.Submission, error) {
	cutoff := time.Now().Add(-(s.gradingTimeout + staleGrace))
	if failed, err := s.submissionRepo.FailStale(ctx, cutoff, string(domain.GradingErrTimeout), msgStale); err != nil {
		s.logger.Error("Failed to mark stale submissions", "error", err)
	} else if failed > 0 {
		s.logger.Info("Marked stale submissions failed", "count", failed)
	}

	subs, err := s.submissionRepo.ListByProblem(ctx, identity.UserID, key, limit)
	if err != nil {
		s.logger.Error("Failed to list submissions", "task", key.String(), "error", err)
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

// process runs one submission's grading to its terminal state. It
// owns the record exclusively and runs detached from the HTTP request
// that accepted the upload.
func (s *SubmissionService) process(sub *domain.Submission) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while processing submission", "submissionId", sub.ID, "panic", r)
			s.fail(sub, failKindInternal, msgInternal)
		}
	}()

	// the upload request's context is gone; grading gets its own
	ctx, cancel := context.WithTimeout(context.Background(), s.gradingTimeout)
	defer cancel()

	id := sub.ID.String()

	if err := s.submissionRepo.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusProcessing); err != nil {
		s.logger.Error("Failed to mark submission processing", "submissionId", sub.ID, "error", err)
		s.fail(sub, failKindInternal, msgInternal)
		return
	}
	sub.Status = domain.SubmissionStatusProcessing

	s.hub.Publish(id, domain.StatusEvent(id, statusUploading))

	materials, err := s.taskStore.GetMaterials(ctx, sub.Problem)
	if err != nil {
		s.logger.Error("Failed to resolve problem materials", "submissionId", sub.ID, "error", err)
		s.fail(sub, failKindInternal, msgInternal)
		return
	}

	req := &secondary.GradingRequest{
		SubmissionID: id,
		Materials:    *materials,
		ImagePaths:   sub.Images,
		OnStatus: func(message string) {
			s.hub.Publish(id, domain.StatusEvent(id, message))
		},
	}

	verdict, err := s.grade(ctx, req)
	if err != nil {
		kind, message := failKindInternal, msgInternal
		if ge, ok := domain.AsGradingError(err); ok {
			kind, message = string(ge.Kind), ge.Message
		}
		s.logger.Error("Grading failed",
			"submissionId", sub.ID,
			"provider", s.provider.Name(),
			"kind", kind,
			"error", err)
		s.fail(sub, kind, message)
		return
	}

	s.hub.Publish(id, domain.StatusEvent(id, statusFinalizing))

	if err := s.submissionRepo.UpdateResult(ctx, sub.ID, verdict.Score, verdict.Feedback, verdict.Meta); err != nil {
		s.logger.Error("Failed to persist result", "submissionId", sub.ID, "error", err)
		s.fail(sub, failKindInternal, msgInternal)
		return
	}
	sub.Status = domain.SubmissionStatusCompleted
	sub.Score = &verdict.Score
	sub.Feedback = &verdict.Feedback
	sub.ScoringMeta = verdict.Meta

	s.hub.Publish(id, domain.CompletedEvent(id, verdict.Score, verdict.Feedback))

	s.logger.Info("Submission completed", "submissionId", sub.ID, "score", verdict.Score)
}

// grade calls the provider and enforces the deadline even when the
// provider ignores its context
func (s *SubmissionService) grade(ctx context.Context, req *secondary.GradingRequest) (*domain.Verdict, error) {
	type gradeResult struct {
		verdict *domain.Verdict
		err     error
	}

	resultCh := make(chan gradeResult, 1)
	go func() {
		verdict, err := s.provider.Grade(ctx, req)
		resultCh <- gradeResult{verdict: verdict, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, domain.NewGradingError(domain.GradingErrTimeout, msgTimeout)
			}
			return nil, res.err
		}
		return res.verdict, nil
	case <-ctx.Done():
		return nil, domain.NewGradingError(domain.GradingErrTimeout, msgTimeout)
	}
}

// fail persists the terminal failed state and publishes the terminal
// error event. A failure to persist is logged and the event published
// anyway so a waiting client is not left hanging.
func (s *SubmissionService) fail(sub *domain.Submission, kind, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.submissionRepo.UpdateFailure(ctx, sub.ID, kind, message); err != nil {
		s.logger.Error("Failed to persist failure", "submissionId", sub.ID, "error", err)
	}
	sub.Status = domain.SubmissionStatusFailed
	sub.ErrorKind = &kind
	sub.ErrorMessage = &message

	s.hub.Publish(sub.ID.String(), domain.ErrorEvent(sub.ID.String(), message))
}
