package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the status of a submission
type SubmissionStatus string

const (
	SubmissionStatusPending    SubmissionStatus = "PENDING"
	SubmissionStatusProcessing SubmissionStatus = "PROCESSING"
	SubmissionStatusCompleted  SubmissionStatus = "COMPLETED"
	SubmissionStatusFailed     SubmissionStatus = "FAILED"
)

// IsTerminal reports whether no further transitions can happen
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusCompleted || s == SubmissionStatusFailed
}

// Submission represents one set of photographed solution pages sent in
// for grading. A submission is mutated only by the orchestrator
// goroutine that owns it.
type Submission struct {
	ID           uuid.UUID              `db:"id"`
	UserID       uuid.UUID              `db:"user_id"`
	Problem      ProblemKey             `db:"-"`
	Images       []string               `db:"-"`
	Status       SubmissionStatus       `db:"status"`
	Score        *int                   `db:"score"`
	Feedback     *string                `db:"feedback"`
	ErrorKind    *string                `db:"error_kind"`
	ErrorMessage *string                `db:"error_message"`
	ScoringMeta  map[string]interface{} `db:"-"`
	CreatedAt    time.Time              `db:"created_at"`
}

// NewSubmission creates a new pending submission
func NewSubmission(userID uuid.UUID, problem ProblemKey, images []string) *Submission {
	return &Submission{
		ID:        uuid.New(),
		UserID:    userID,
		Problem:   problem,
		Images:    images,
		Status:    SubmissionStatusPending,
		CreatedAt: time.Now(),
	}
}
