// Package statejanitor tests cover the component factory, lifecycle,
// sweep logic against a fake store, and metadata. Tests requiring NATS
// infrastructure (KV-backed sweeps, cleanup event publishing) are
// integration tests and not included here.
package statejanitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semstreams/component"

	"github.com/c360studio/agentflow/storage"
	"github.com/c360studio/agentflow/workflow"
)

// fakeStore is an in-memory stateStore with injectable failures.
type fakeStore struct {
	mu      sync.Mutex
	states  map[string]*workflow.State
	deleted []string
	getErr  map[string]error
	delErr  error
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states: make(map[string]*workflow.State),
		getErr: make(map[string]error),
	}
}

func (s *fakeStore) ListThreads(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	threads := make([]string, 0, len(s.states))
	for id := range s.states {
		threads = append(threads, id)
	}
	return threads, nil
}

func (s *fakeStore) Get(_ context.Context, threadID string) (*workflow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.getErr[threadID]; err != nil {
		return nil, err
	}
	st, ok := s.states[threadID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return st.Clone(), nil
}

func (s *fakeStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.states, threadID)
	s.deleted = append(s.deleted, threadID)
	return nil
}

// seed stores a state whose last transition happened age ago.
func (s *fakeStore) seed(threadID string, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := workflow.NewState("request for " + threadID)
	st.UpdatedAt = time.Now().Add(-age)
	s.states[threadID] = st
}

func newTestJanitor(store stateStore) *Component {
	return &Component{
		name:   "state-janitor",
		logger: slog.Default(),
		config: Config{
			CheckInterval: time.Minute,
			MaxAge:        24 * time.Hour,
		},
		store: store,
	}
}

// TestNewComponent_Unit tests the component factory with various
// configurations.
func TestNewComponent_Unit(t *testing.T) {
	tests := []struct {
		name      string
		rawConfig json.RawMessage
		wantErr   bool
	}{
		{
			name:      "defaults",
			rawConfig: json.RawMessage(`{}`),
			wantErr:   false,
		},
		{
			name:      "invalid JSON",
			rawConfig: json.RawMessage(`{invalid json}`),
			wantErr:   true,
		},
		{
			name:      "string durations are rejected",
			rawConfig: json.RawMessage(`{"check_interval":"1h"}`),
			wantErr:   true,
		},
		{
			name:      "negative check_interval",
			rawConfig: json.RawMessage(`{"check_interval":-1}`),
			wantErr:   true,
		},
		{
			name:      "negative max_age",
			rawConfig: json.RawMessage(`{"max_age":-1}`),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := component.Dependencies{
				Logger: slog.Default(),
			}

			_, err := NewComponent(tt.rawConfig, deps)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewComponent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestComponent_StartWithoutNATSClient tests Start fails with neither a
// store nor a NATS client to build one from.
func TestComponent_StartWithoutNATSClient(t *testing.T) {
	c := &Component{
		name:   "state-janitor",
		logger: slog.Default(),
		config: DefaultConfig(),
	}

	if err := c.Initialize(); err != nil {
		t.Errorf("Initialize() error = %v, want nil", err)
	}

	if err := c.Start(context.Background()); err == nil {
		t.Error("Start() should return error when NATS client is nil")
	}

	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	if running {
		t.Error("Component should not be running after failed start")
	}
}

// TestComponent_StopWhenNotRunning tests Stop is a no-op before Start.
func TestComponent_StopWhenNotRunning(t *testing.T) {
	c := newTestJanitor(newFakeStore())
	if err := c.Stop(time.Second); err != nil {
		t.Errorf("Stop() error = %v, want nil when not running", err)
	}
}

// TestSweep_RemovesIdleWorkflows tests that only workflows past MaxAge
// are removed.
func TestSweep_RemovesIdleWorkflows(t *testing.T) {
	store := newFakeStore()
	store.seed("test-stale", 48*time.Hour)
	store.seed("test-fresh", time.Hour)

	c := newTestJanitor(store)
	c.sweep(context.Background())

	if got := c.workflowsRemoved.Load(); got != 1 {
		t.Fatalf("workflowsRemoved = %d, want 1", got)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "test-stale" {
		t.Errorf("deleted = %v, want [test-stale]", store.deleted)
	}
	if _, err := store.Get(context.Background(), "test-fresh"); err != nil {
		t.Errorf("fresh workflow should survive the sweep, got %v", err)
	}
	if got := c.sweepsPerformed.Load(); got != 1 {
		t.Errorf("sweepsPerformed = %d, want 1", got)
	}
}

// TestSweep_KeepsWorkflowNearLimit tests that a workflow under MaxAge
// survives. The exact boundary is racy against the wall clock, so the
// fixture leaves margin.
func TestSweep_KeepsWorkflowNearLimit(t *testing.T) {
	store := newFakeStore()
	store.seed("test-near", 23*time.Hour)

	c := newTestJanitor(store)
	c.sweep(context.Background())

	if got := c.workflowsRemoved.Load(); got != 0 {
		t.Errorf("workflowsRemoved = %d, want 0", got)
	}
}

// TestSweep_SkipsCorruptState tests that undecodable state is left in
// place rather than deleted.
func TestSweep_SkipsCorruptState(t *testing.T) {
	store := newFakeStore()
	store.seed("test-corrupt", 48*time.Hour)
	store.getErr["test-corrupt"] = fmt.Errorf("decode workflow state: %w", storage.ErrCorruptState)

	c := newTestJanitor(store)
	c.sweep(context.Background())

	if got := c.workflowsRemoved.Load(); got != 0 {
		t.Errorf("workflowsRemoved = %d, want 0 for corrupt state", got)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want none", store.deleted)
	}
}

// TestSweep_ToleratesVanishedThread tests the scan-read race: a thread
// listed but gone by the read is skipped quietly.
func TestSweep_ToleratesVanishedThread(t *testing.T) {
	store := newFakeStore()
	store.seed("test-ghost", 48*time.Hour)
	store.getErr["test-ghost"] = storage.ErrNotFound

	c := newTestJanitor(store)
	c.sweep(context.Background())

	if got := c.workflowsRemoved.Load(); got != 0 {
		t.Errorf("workflowsRemoved = %d, want 0", got)
	}
}

// TestCheckThread_DeleteFailure tests that a failed delete surfaces as
// an error without incrementing the removal counter.
func TestCheckThread_DeleteFailure(t *testing.T) {
	store := newFakeStore()
	store.seed("test-stuck", 48*time.Hour)
	store.delErr = fmt.Errorf("kv unavailable")

	c := newTestJanitor(store)
	if err := c.checkThread(context.Background(), "test-stuck"); err == nil {
		t.Fatal("checkThread() should surface delete failure")
	}
	if got := c.workflowsRemoved.Load(); got != 0 {
		t.Errorf("workflowsRemoved = %d, want 0", got)
	}
}

// TestSweep_ListFailure tests that a failed scan aborts the sweep.
func TestSweep_ListFailure(t *testing.T) {
	store := newFakeStore()
	store.seed("test-stale", 48*time.Hour)
	store.listErr = fmt.Errorf("kv unavailable")

	c := newTestJanitor(store)
	c.sweep(context.Background())

	if got := c.workflowsRemoved.Load(); got != 0 {
		t.Errorf("workflowsRemoved = %d, want 0", got)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want none", store.deleted)
	}
}

// TestComponent_Meta tests component metadata.
func TestComponent_Meta(t *testing.T) {
	deps := component.Dependencies{Logger: slog.Default()}
	comp, err := NewComponent(json.RawMessage(`{}`), deps)
	if err != nil {
		t.Fatalf("NewComponent() error = %v", err)
	}

	c := comp.(*Component)
	meta := c.Meta()
	if meta.Name != "state-janitor" {
		t.Errorf("Meta().Name = %q, want state-janitor", meta.Name)
	}
	if meta.Type != "processor" {
		t.Errorf("Meta().Type = %q, want processor", meta.Type)
	}
	if meta.Description == "" {
		t.Error("Meta().Description should not be empty")
	}
}

// TestComponent_Health tests health reporting across the lifecycle.
func TestComponent_Health(t *testing.T) {
	c := newTestJanitor(newFakeStore())

	health := c.Health()
	if health.Healthy {
		t.Error("Health().Healthy = true before Start, want false")
	}
	if health.Status != "stopped" {
		t.Errorf("Health().Status = %q, want stopped", health.Status)
	}

	c.mu.Lock()
	c.running = true
	c.startTime = time.Now()
	c.mu.Unlock()

	health = c.Health()
	if !health.Healthy {
		t.Error("Health().Healthy = false while running, want true")
	}
}

// TestComponent_Ports tests port configuration.
func TestComponent_Ports(t *testing.T) {
	deps := component.Dependencies{Logger: slog.Default()}
	comp, err := NewComponent(json.RawMessage(`{}`), deps)
	if err != nil {
		t.Fatalf("NewComponent() error = %v", err)
	}

	c := comp.(*Component)
	inputs := c.InputPorts()
	if len(inputs) != 1 {
		t.Fatalf("InputPorts() returned %d ports, want 1", len(inputs))
	}
	if inputs[0].Name != "workflow-state" {
		t.Errorf("InputPorts()[0].Name = %q, want workflow-state", inputs[0].Name)
	}

	outputs := c.OutputPorts()
	if len(outputs) != 1 {
		t.Fatalf("OutputPorts() returned %d ports, want 1", len(outputs))
	}
	if outputs[0].Name != "cleanup-events" {
		t.Errorf("OutputPorts()[0].Name = %q, want cleanup-events", outputs[0].Name)
	}
}

// TestComponent_ConfigSchema tests the generated schema is populated.
func TestComponent_ConfigSchema(t *testing.T) {
	c := newTestJanitor(newFakeStore())
	schema := c.ConfigSchema()
	if schema.Properties == nil {
		t.Error("ConfigSchema() should have Properties")
	}
}

// TestRegister tests component registration.
func TestRegister(t *testing.T) {
	if err := Register(nil); err == nil {
		t.Error("Register(nil) should return error")
	}

	reg := &fakeRegistry{}
	if err := Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.config.Name != "state-janitor" {
		t.Errorf("registered name = %q, want state-janitor", reg.config.Name)
	}
}

type fakeRegistry struct {
	config component.RegistrationConfig
}

func (f *fakeRegistry) RegisterWithConfig(cfg component.RegistrationConfig) error {
	f.config = cfg
	return nil
}
