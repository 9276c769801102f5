package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/agentflow/llm"
)

// anthropicVersion pins the API revision we speak.
const anthropicVersion = "2023-06-01"

// defaultAnthropicMaxTokens satisfies the API's required max_tokens
// field when the caller left it unset.
const defaultAnthropicMaxTokens = 4096

func init() {
	llm.RegisterProvider(&Anthropic{})
}

// Anthropic targets the Messages API. Unlike the chat-completions
// format, it takes the system prompt as a top-level field and requires
// max_tokens.
type Anthropic struct{}

func (*Anthropic) Name() string { return "anthropic" }

func (*Anthropic) Endpoint(base string) string {
	if base == "" {
		base = "https://api.anthropic.com"
	}
	return strings.TrimSuffix(base, "/") + "/v1/messages"
}

func (*Anthropic) Authenticate(req *http.Request) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		req.Header.Set("x-api-key", key)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (*Anthropic) MarshalRequest(req llm.Request) ([]byte, error) {
	wire := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if wire.MaxTokens <= 0 {
		wire.MaxTokens = defaultAnthropicMaxTokens
	}

	for _, m := range req.Messages {
		if m.Role == "system" {
			wire.System = m.Content
			continue
		}
		wire.Messages = append(wire.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	return json.Marshal(wire)
}

func (*Anthropic) UnmarshalResponse(body []byte, model string) (*llm.Response, error) {
	var wire anthropicResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	var text strings.Builder
	for _, block := range wire.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	resolved := wire.Model
	if resolved == "" {
		resolved = model
	}

	return &llm.Response{
		Content:      text.String(),
		Model:        resolved,
		FinishReason: wire.StopReason,
		Usage: llm.TokenUsage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
		},
	}, nil
}
