package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/agentflow/workflow"
)

func TestPublisherNilSafety(t *testing.T) {
	event := &workflow.Event{
		Kind:     workflow.EventCreated,
		ThreadID: "test-thread",
	}

	// A nil publisher and a publisher without a client both drop events
	// without touching the network.
	var p *Publisher
	p.Publish(context.Background(), event)

	p = NewPublisher(nil, "", nil)
	p.Publish(context.Background(), event)
	assert.Empty(t, event.Timestamp, "a dropped event is not mutated")
}

func TestNewPublisherDefaults(t *testing.T) {
	p := NewPublisher(nil, "", nil)
	assert.Equal(t, "engine", p.source)
	assert.NotNil(t, p.logger)

	p = NewPublisher(nil, "state-janitor", nil)
	assert.Equal(t, "state-janitor", p.source)
}
