package llm

import (
	"errors"
)

// classifiedError carries the retry decision made at the point of
// failure, where the HTTP status or transport error is still in hand.
type classifiedError struct {
	err       error
	transient bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// NewTransientError marks err as worth retrying: rate limits, server
// errors, network failures.
func NewTransientError(err error) error {
	return &classifiedError{err: err, transient: true}
}

// NewFatalError marks err as permanent: bad credentials, malformed
// requests, unknown providers. The client gives up immediately.
func NewFatalError(err error) error {
	return &classifiedError{err: err}
}

// IsTransient reports whether err was classified as retryable.
func IsTransient(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.transient
}

// IsFatal reports whether err was classified as permanent.
func IsFatal(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && !ce.transient
}
