package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/agentflow/llm"
)

// CodeWorker answers code and calculation tasks. It writes code and works
// through calculations in text form only; nothing it produces is run.
type CodeWorker struct {
	client      llm.TextGenerator
	model       string
	temperature *float64
	maxTokens   int
	logger      *slog.Logger
}

// NewCodeWorker creates a CodeWorker that answers with the given model.
func NewCodeWorker(client llm.TextGenerator, model string, opts ...Option) *CodeWorker {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &CodeWorker{
		client:      client,
		model:       model,
		temperature: o.temperature,
		maxTokens:   o.maxTokens,
		logger:      o.logger,
	}
}

// Execute answers the task description. deps maps completed dependency
// task ids to their results.
func (w *CodeWorker) Execute(ctx context.Context, description string, deps map[int]string) (string, error) {
	resp, err := w.client.Complete(ctx, llm.Request{
		Model: w.model,
		Messages: []llm.Message{
			{Role: "system", Content: codeSystemPrompt()},
			{Role: "user", Content: codePrompt(description, deps)},
		},
		Temperature: w.temperature,
		MaxTokens:   w.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("code completion: %w", err)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}

	w.logger.Debug("Code task answered",
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens)

	return answer, nil
}
