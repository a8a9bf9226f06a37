package errs

import "errors"

var (
	TaskNotFound        = errors.New("task not found")
	SubmissionNotFound  = errors.New("submission not found")
	RateLimited         = errors.New("submission limit reached")
	TooManyImages       = errors.New("too many images")
	NoImages            = errors.New("no images supplied")
	UnsupportedFileType = errors.New("unsupported file type")
	FileTooLarge        = errors.New("file too large")
)
