package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/agentflow/llm"
	"github.com/c360studio/agentflow/llm/testutil"
)

func TestCodeWorker_Execute(t *testing.T) {
	answer := "```go\nfunc Add(a, b int) int { return a + b }\n```\nAdds two ints."
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: answer + "\n", Model: "test-model"}},
	}
	w := NewCodeWorker(mock, "test-model")

	got, err := w.Execute(context.Background(), "write an Add function", map[int]string{
		1: "the API uses int everywhere",
	})
	require.NoError(t, err)
	assert.Equal(t, answer, got)

	req, ok := mock.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "test-model", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Nothing you write is executed")

	user := req.Messages[1].Content
	assert.Contains(t, user, "write an Add function")
	assert.Contains(t, user, "### Task 1")
	assert.Contains(t, user, "the API uses int everywhere")
}

func TestCodeWorker_LLMError(t *testing.T) {
	mock := &testutil.MockClient{Err: errors.New("boom")}
	w := NewCodeWorker(mock, "test-model")

	_, err := w.Execute(context.Background(), "compute 2+2", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code completion")
}

func TestCodeWorker_EmptyAnswer(t *testing.T) {
	mock := &testutil.MockClient{Responses: []*llm.Response{{Content: "\t \n"}}}
	w := NewCodeWorker(mock, "test-model")

	_, err := w.Execute(context.Background(), "compute 2+2", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty answer")
}

func TestCodeWorker_Options(t *testing.T) {
	mock := &testutil.MockClient{Responses: []*llm.Response{{Content: "4"}}}
	w := NewCodeWorker(mock, "test-model", WithTemperature(0), WithMaxTokens(512))

	_, err := w.Execute(context.Background(), "compute 2+2", nil)
	require.NoError(t, err)

	req, ok := mock.LastRequest()
	require.True(t, ok)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)
	assert.Equal(t, 512, req.MaxTokens)
}
