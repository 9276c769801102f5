// Package providers implements the vendor adapters behind llm.Provider.
// Importing the package (usually blank) registers all of them.
package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/agentflow/llm"
)

// openAICompat is the chat-completions codec shared by every provider
// speaking the OpenAI wire format (OpenAI itself, Ollama, vLLM,
// OpenRouter). Providers embed it and supply their own Name, Endpoint,
// and Authenticate.
type openAICompat struct{}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// MarshalRequest keeps the system prompt inline; the chat-completions
// format carries it as a regular message.
func (openAICompat) MarshalRequest(req llm.Request) ([]byte, error) {
	messages := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	wire := chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature, // nil lets the endpoint choose
	}
	if req.MaxTokens > 0 {
		wire.MaxTokens = &req.MaxTokens
	}

	return json.Marshal(wire)
}

func (openAICompat) UnmarshalResponse(body []byte, model string) (*llm.Response, error) {
	var wire chatCompletionResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	resolved := wire.Model
	if resolved == "" {
		resolved = model
	}

	return &llm.Response{
		Content:      wire.Choices[0].Message.Content,
		Model:        resolved,
		FinishReason: wire.Choices[0].FinishReason,
		Usage: llm.TokenUsage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}, nil
}

// chatCompletionsURL normalizes a base URL to its chat-completions
// endpoint, tolerating a trailing slash or an already-complete URL.
func chatCompletionsURL(base, fallback string) string {
	if base == "" {
		base = fallback
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}
