package engine

import "errors"

var (
	// ErrEmptyRequest is returned by Start when the request is empty
	// after trimming.
	ErrEmptyRequest = errors.New("user request is empty")

	// ErrRequestTooLong is returned by Start when the trimmed request
	// exceeds the length limit.
	ErrRequestTooLong = errors.New("user request is too long")

	// ErrFeedbackRequired is returned by Resume when a rejection
	// arrives without feedback to replan from.
	ErrFeedbackRequired = errors.New("feedback is required to reject a plan")

	// ErrConflict is returned by Resume when the thread is not awaiting
	// an approval decision. Unknown threads surface the store's
	// not-found error instead.
	ErrConflict = errors.New("workflow is not awaiting approval")
)
