package submissions

import (
	"time"

	"gitlab.com/omj-2025.net/internal/domain"
)

// SubmitResponse acknowledges an admitted submission. ChannelLocator
// is the WebSocket path the client connects to for progress events.
type SubmitResponse struct {
	SubmissionID   string `json:"submissionId"`
	ChannelLocator string `json:"channelLocator"`
}

// SubmissionView is the API shape of a stored submission
type SubmissionView struct {
	ID           string    `json:"id"`
	Year         string    `json:"year"`
	Etap         string    `json:"etap"`
	TaskNumber   int       `json:"taskNumber"`
	Status       string    `json:"status"`
	Score        *int      `json:"score,omitempty"`
	Feedback     *string   `json:"feedback,omitempty"`
	ErrorKind    *string   `json:"errorKind,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	ImageCount   int       `json:"imageCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toView(sub *domain.Submission) SubmissionView {
	return SubmissionView{
		ID:           sub.ID.String(),
		Year:         sub.Problem.Year,
		Etap:         sub.Problem.Etap,
		TaskNumber:   sub.Problem.Number,
		Status:       string(sub.Status),
		Score:        sub.Score,
		Feedback:     sub.Feedback,
		ErrorKind:    sub.ErrorKind,
		ErrorMessage: sub.ErrorMessage,
		ImageCount:   len(sub.Images),
		CreatedAt:    sub.CreatedAt,
	}
}
