package llm

import "time"

// RetryConfig bounds the retry loop in Client.Complete.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Backoff is the delay before the second attempt. Each further
	// attempt doubles it.
	Backoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
}

// DefaultRetryConfig suits interactive use: a failed call resolves or
// gives up within roughly half a minute.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}
