package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	// Register the lifecycle event payload type for message deserialization
	_ = component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "workflow",
		Category:    "event",
		Version:     "v1",
		Description: "Workflow lifecycle event payload",
		Factory:     func() any { return &Event{} },
	})
}

// EventKind labels a workflow lifecycle transition.
type EventKind string

const (
	// EventCreated fires when a new thread is created.
	EventCreated EventKind = "created"

	// EventPlanReady fires when a plan is saved and awaiting approval.
	EventPlanReady EventKind = "plan_ready"

	// EventApproved fires when the plan passes the approval gate.
	EventApproved EventKind = "approved"

	// EventRejected fires when the plan is rejected with feedback.
	EventRejected EventKind = "rejected"

	// EventTaskStarted fires when a task is dispatched to a worker.
	EventTaskStarted EventKind = "task_started"

	// EventTaskFinished fires when a task reaches a terminal status.
	EventTaskFinished EventKind = "task_finished"

	// EventRunFinished fires when a run terminates, with or without a report.
	EventRunFinished EventKind = "run_finished"

	// EventCleanup fires when the janitor removes an expired thread.
	EventCleanup EventKind = "cleanup"
)

// EventSubjectPrefix is the subject root for workflow lifecycle events.
// The WORKFLOW stream captures everything beneath it.
const EventSubjectPrefix = "workflow.event"

// EventSubject builds the publish subject for an event: one token for the
// kind, one for the thread id, so consumers can filter on either.
func EventSubject(kind EventKind, threadID string) string {
	return fmt.Sprintf("%s.%s.%s", EventSubjectPrefix, kind, threadID)
}

// Event is the payload published for every workflow lifecycle transition.
// External consumers (dashboards, audit trails) subscribe to these; the
// engine never reads them back.
type Event struct {
	// Kind labels the transition.
	Kind EventKind `json:"kind"`

	// ThreadID identifies the workflow thread.
	ThreadID string `json:"thread_id"`

	// TaskID is set for task-level events.
	TaskID int `json:"task_id,omitempty"`

	// TaskType is set for task-level events.
	TaskType TaskType `json:"task_type,omitempty"`

	// TaskStatus is the terminal status for task_finished events.
	TaskStatus TaskStatus `json:"task_status,omitempty"`

	// RunStatus is the derived run label at publish time.
	RunStatus RunStatus `json:"run_status,omitempty"`

	// Detail carries a short human-readable note.
	Detail string `json:"detail,omitempty"`

	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`
}

// EventType is the message type for workflow lifecycle events.
var EventType = message.Type{
	Domain:   "workflow",
	Category: "event",
	Version:  "v1",
}

// Schema implements message.Payload.
func (e *Event) Schema() message.Type {
	return EventType
}

// Validate implements message.Payload.
func (e *Event) Validate() error {
	if e.Kind == "" {
		return &ValidationError{Field: "kind", Message: "kind is required"}
	}
	if e.ThreadID == "" {
		return &ValidationError{Field: "thread_id", Message: "thread_id is required"}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	return json.Unmarshal(data, (*Alias)(e))
}

// ParseEventMessage unwraps an event from its wire form. Events are
// published as BaseMessage envelopes; plain JSON without the envelope is
// accepted as a fallback so test fixtures and external publishers stay
// simple.
func ParseEventMessage[T any](data []byte) (*T, error) {
	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Payload) > 0 {
		var payload T
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload into %T: %w", payload, err)
		}
		return &payload, nil
	}

	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &payload, nil
}
