// Package workers implements the execution capabilities the engine
// dispatches tasks to: a Researcher for research, analysis and summary
// tasks, and a CodeWorker for code and calculation tasks. Both answer
// through an LLM and return plain text; neither executes anything.
package workers

import "log/slog"

// options collects the knobs shared by both workers.
type options struct {
	temperature *float64
	maxTokens   int
	logger      *slog.Logger
	fetcher     PageFetcher
}

func defaultOptions() options {
	return options{logger: slog.Default()}
}

// Option configures a worker.
type Option func(*options)

// WithTemperature sets an explicit sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = &t
	}
}

// WithMaxTokens caps the answer length.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithFetcher enables reference fetching for URLs found in task
// descriptions. Only the Researcher fetches; a CodeWorker ignores it.
func WithFetcher(f PageFetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}
