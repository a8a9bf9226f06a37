package domain

// EventType identifies a notification channel frame
type EventType string

const (
	EventStatus    EventType = "status"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventPing      EventType = "ping"
	EventPong      EventType = "pong"
)

// Event is one JSON frame on a submission's notification channel.
// Status events are advisory and repeatable; completed and error are
// terminal and published exactly once per submission.
type Event struct {
	Type         EventType `json:"type"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Message      string    `json:"message,omitempty"`
	Score        *int      `json:"score,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// IsTerminal reports whether the event ends the channel's stream
func (e Event) IsTerminal() bool {
	return e.Type == EventCompleted || e.Type == EventError
}

// StatusEvent builds an advisory progress frame
func StatusEvent(submissionID, message string) Event {
	return Event{Type: EventStatus, SubmissionID: submissionID, Message: message}
}

// CompletedEvent builds the terminal success frame
func CompletedEvent(submissionID string, score int, feedback string) Event {
	return Event{Type: EventCompleted, SubmissionID: submissionID, Score: &score, Feedback: feedback}
}

// ErrorEvent builds the terminal failure frame
func ErrorEvent(submissionID, errMsg string) Event {
	return Event{Type: EventError, SubmissionID: submissionID, Error: errMsg}
}
