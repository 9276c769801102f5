package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/pkg/retry"

	"github.com/c360studio/agentflow/workflow"
)

// Publisher emits workflow lifecycle events to the event stream so
// dashboards and audit consumers can follow a thread without polling.
// Events are advisory: a publish failure is logged and swallowed, never
// surfaced to the transition that produced it. A nil Publisher drops
// everything, which is how the engine runs in tests.
type Publisher struct {
	nats   *natsclient.Client
	source string
	logger *slog.Logger
}

// NewPublisher wires a publisher to the given NATS client. The source
// names the emitting component in the message envelope.
func NewPublisher(nc *natsclient.Client, source string, logger *slog.Logger) *Publisher {
	if source == "" {
		source = "engine"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		nats:   nc,
		source: source,
		logger: logger,
	}
}

// Publish sends one lifecycle event, stamping the timestamp if unset.
// Transient publish failures are retried before giving up.
func (p *Publisher) Publish(ctx context.Context, event *workflow.Event) {
	if p == nil || p.nats == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	subject := workflow.EventSubject(event.Kind, event.ThreadID)
	baseMsg := message.NewBaseMessage(workflow.EventType, event, p.source)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		p.logger.Warn("Failed to marshal workflow event",
			"subject", subject,
			"kind", event.Kind,
			"error", err)
		return
	}

	retryConfig := retry.DefaultConfig()
	err = retry.Do(ctx, retryConfig, func() error {
		return p.nats.PublishToStream(ctx, subject, data)
	})
	if err != nil {
		p.logger.Warn("Failed to publish workflow event",
			"subject", subject,
			"kind", event.Kind,
			"error", err)
	}
}
