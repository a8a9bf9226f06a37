package domain

import "errors"

// GradingErrorKind classifies why a provider call failed
type GradingErrorKind string

const (
	GradingErrTimeout            GradingErrorKind = "timeout"
	GradingErrQuotaExceeded      GradingErrorKind = "quota_exceeded"
	GradingErrSafetyRejected     GradingErrorKind = "safety_rejected"
	GradingErrInvalidCredentials GradingErrorKind = "invalid_credentials"
	GradingErrMalformedResponse  GradingErrorKind = "malformed_response"
)

// GradingError is the only error type a grading provider is allowed to
// surface. Message is user-facing and already localized.
type GradingError struct {
	Kind    GradingErrorKind
	Message string
}

func (e *GradingError) Error() string {
	return e.Message
}

// NewGradingError creates a typed provider error
func NewGradingError(kind GradingErrorKind, message string) *GradingError {
	return &GradingError{Kind: kind, Message: message}
}

// AsGradingError extracts the typed provider error, when present
func AsGradingError(err error) (*GradingError, bool) {
	var ge *GradingError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// IssueKind flags suspicious content on an otherwise completed
// submission. Issues only add metadata, they never fail a submission.
type IssueKind string

const (
	IssueWrongTask       IssueKind = "wrong_task"
	IssuePromptInjection IssueKind = "prompt_injection"
)

// Verdict is the normalized outcome of a provider call. Score is
// always a member of ValidScores for the submission's etap.
type Verdict struct {
	Score    int
	Feedback string
	Meta     map[string]interface{}
}
