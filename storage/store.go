// Package storage persists workflow state for agentflow using NATS KV.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/agentflow/workflow"
)

// BucketWorkflows is the KV bucket holding one state document per thread.
const BucketWorkflows = "AGENTFLOW_WORKFLOWS"

// Store provides workflow state persistence backed by NATS KV.
// Keys are thread IDs, values are JSON state documents.
type Store struct {
	workflows jetstream.KeyValue
}

// NewStore opens the workflow bucket, creating it on first use.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	workflows, err := js.KeyValue(ctx, BucketWorkflows)
	if err != nil {
		workflows, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      BucketWorkflows,
			Description: "Agentflow workflow state",
			// A few revisions back for post-mortems on bad transitions.
			History: 5,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("create workflows bucket: %w", err)
	}

	return &Store{workflows: workflows}, nil
}

// Save persists the state for a thread, stamping its update time.
// The document is written whole; there are no partial updates.
func (s *Store) Save(ctx context.Context, threadID string, st *workflow.State) error {
	st.UpdatedAt = time.Now()

	data, err := encodeState(st)
	if err != nil {
		return err
	}

	if _, err := s.workflows.Put(ctx, threadID, data); err != nil {
		return fmt.Errorf("store state for %s: %w", threadID, err)
	}

	return nil
}

// Get retrieves the state for a thread.
func (s *Store) Get(ctx context.Context, threadID string) (*workflow.State, error) {
	entry, err := s.workflows.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get state for %s: %w", threadID, err)
	}

	return decodeState(entry.Value())
}

// Delete removes the state for a thread.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if err := s.workflows.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("delete state for %s: %w", threadID, err)
	}
	return nil
}

// ListThreads returns the IDs of all stored threads.
func (s *Store) ListThreads(ctx context.Context) ([]string, error) {
	keys, err := s.workflows.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list thread keys: %w", err)
	}
	return keys, nil
}
