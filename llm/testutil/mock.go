// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/agentflow/llm"
)

// MockClient is a thread-safe llm.TextGenerator for tests. It returns
// the configured responses in sequence and records every request.
//
// Usage:
//
//	// Single response mock
//	mock := &testutil.MockClient{
//	    Responses: []*llm.Response{
//	        {Content: `{"tasks": []}`, Model: "test-model"},
//	    },
//	}
//
//	// Error response
//	mock := &testutil.MockClient{
//	    Err: errors.New("connection failed"),
//	}
type MockClient struct {
	mu            sync.Mutex
	requests      []llm.Request
	responseIndex int

	// Responses are returned in sequence. When exhausted, an empty
	// response is returned.
	Responses []*llm.Response

	// Err, when set, is returned from every call and takes precedence
	// over Responses.
	Err error
}

// Complete implements llm.TextGenerator.
func (m *MockClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// CallCount returns the number of times Complete was called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or false if none were made.
func (m *MockClient) LastRequest() (llm.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// Requests returns a copy of all recorded requests.
func (m *MockClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Reset clears recorded requests and rewinds the response sequence.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.responseIndex = 0
}
