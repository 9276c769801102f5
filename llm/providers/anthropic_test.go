package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/agentflow/llm"
)

func TestAnthropic_Endpoint(t *testing.T) {
	p := &Anthropic{}

	tests := []struct {
		name string
		base string
		want string
	}{
		{
			name: "empty uses hosted API",
			base: "",
			want: "https://api.anthropic.com/v1/messages",
		},
		{
			name: "custom base",
			base: "https://proxy.internal",
			want: "https://proxy.internal/v1/messages",
		},
		{
			name: "trailing slash",
			base: "https://api.anthropic.com/",
			want: "https://api.anthropic.com/v1/messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Endpoint(tt.base))
		})
	}
}

func TestAnthropic_Authenticate(t *testing.T) {
	p := &Anthropic{}

	t.Run("key and version", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

		req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com", nil)
		p.Authenticate(req)

		assert.Equal(t, "sk-ant-test", req.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
	})

	t.Run("version sent even without key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com", nil)
		p.Authenticate(req)

		assert.Empty(t, req.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
	})
}

func TestAnthropic_MarshalRequest(t *testing.T) {
	p := &Anthropic{}

	temp := 0.7
	body, err := p.MarshalRequest(llm.Request{
		Model: "claude-sonnet-4-5",
		Messages: []llm.Message{
			{Role: "system", Content: "You are a planner."},
			{Role: "user", Content: "Plan this request."},
			{Role: "assistant", Content: "Here is a draft."},
			{Role: "user", Content: "Revise it."},
		},
		Temperature: &temp,
		MaxTokens:   2048,
	})
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(body, &wire))

	// The system prompt moves to the top-level field; the remaining
	// turns keep their order.
	assert.Equal(t, "You are a planner.", wire["system"])
	messages := wire["messages"].([]any)
	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])

	assert.Equal(t, 0.7, wire["temperature"])
	assert.Equal(t, float64(2048), wire["max_tokens"])
}

func TestAnthropic_MarshalRequest_RequiredMaxTokens(t *testing.T) {
	p := &Anthropic{}

	body, err := p.MarshalRequest(llm.Request{
		Model:    "claude-sonnet-4-5",
		Messages: []llm.Message{{Role: "user", Content: "Hello"}},
	})
	require.NoError(t, err)

	// The API rejects requests without max_tokens; a default is filled in.
	var wire map[string]any
	require.NoError(t, json.Unmarshal(body, &wire))
	assert.Equal(t, float64(defaultAnthropicMaxTokens), wire["max_tokens"])
}

func TestAnthropic_UnmarshalResponse(t *testing.T) {
	p := &Anthropic{}

	resp, err := p.UnmarshalResponse([]byte(`{
		"model": "claude-sonnet-4-5",
		"content": [{"type": "text", "text": "Here is the plan."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 25, "output_tokens": 12}
	}`), "claude-sonnet-4-5")
	require.NoError(t, err)

	assert.Equal(t, "Here is the plan.", resp.Content)
	assert.Equal(t, "claude-sonnet-4-5", resp.Model)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 25, resp.Usage.PromptTokens)
	assert.Equal(t, 12, resp.Usage.CompletionTokens)
	assert.Equal(t, 37, resp.Usage.TotalTokens)
}

func TestAnthropic_UnmarshalResponse_ConcatenatesTextBlocks(t *testing.T) {
	p := &Anthropic{}

	resp, err := p.UnmarshalResponse([]byte(`{
		"model": "claude-sonnet-4-5",
		"content": [
			{"type": "text", "text": "Part one. "},
			{"type": "tool_use", "text": ""},
			{"type": "text", "text": "Part two."}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 5, "output_tokens": 8}
	}`), "claude-sonnet-4-5")
	require.NoError(t, err)

	// Non-text blocks are skipped, text blocks join in order.
	assert.Equal(t, "Part one. Part two.", resp.Content)
}
