// Package statejanitor provides a processor that removes workflow state
// left idle past a retention window. Workflows accumulate in the KV
// bucket forever otherwise: the engine never deletes, and abandoned
// threads (never approved, or approved and long since read) have no
// other way out.
package statejanitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/agentflow/engine"
	"github.com/c360studio/agentflow/storage"
	"github.com/c360studio/agentflow/workflow"
)

// stateStore is the slice of the storage API the janitor uses.
type stateStore interface {
	ListThreads(ctx context.Context) ([]string, error)
	Get(ctx context.Context, threadID string) (*workflow.State, error)
	Delete(ctx context.Context, threadID string) error
}

// Component implements the state-janitor processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	store  stateStore
	events *engine.Publisher

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	sweepsPerformed  atomic.Int64
	workflowsRemoved atomic.Int64
	lastSweepMu      sync.RWMutex
	lastSweep        time.Time
}

// NewComponent creates a new state-janitor processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.CheckInterval == 0 {
		config.CheckInterval = defaults.CheckInterval
	}
	if config.MaxAge == 0 {
		config.MaxAge = defaults.MaxAge
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Component{
		name:       "state-janitor",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized state-janitor",
		"check_interval", c.config.CheckInterval,
		"max_age", c.config.MaxAge)
	return nil
}

// Start begins sweeping for idle workflows.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.store == nil && c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	if c.store == nil {
		js, err := c.natsClient.JetStream()
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("get JetStream: %w", err)
		}
		store, err := storage.NewStore(ctx, js)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("create workflow store: %w", err)
		}
		c.store = store
	}
	if c.events == nil {
		c.events = engine.NewPublisher(c.natsClient, c.name, c.logger)
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	// Start the sweep loop
	go c.sweepLoop(subCtx)

	c.logger.Info("state-janitor started",
		"check_interval", c.config.CheckInterval,
		"max_age", c.config.MaxAge)

	return nil
}

// sweepLoop periodically scans the store for idle workflows.
func (c *Component) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	c.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// sweep removes every workflow whose last transition is older than MaxAge.
func (c *Component) sweep(ctx context.Context) {
	c.sweepsPerformed.Add(1)
	c.updateLastSweep()

	threads, err := c.store.ListThreads(ctx)
	if err != nil {
		c.logger.Error("Failed to list workflow threads", "error", err)
		return
	}

	c.logger.Debug("Scanning for idle workflows", "threads", len(threads))

	for _, threadID := range threads {
		if err := c.checkThread(ctx, threadID); err != nil {
			c.logger.Warn("Failed to check workflow age",
				"thread_id", threadID,
				"error", err)
		}
	}
}

// checkThread removes one workflow if it has been idle past MaxAge.
func (c *Component) checkThread(ctx context.Context, threadID string) error {
	st, err := c.store.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil // removed between scan and read
		}
		if errors.Is(err, storage.ErrCorruptState) {
			// Undecodable state is never auto-deleted; leave it for a
			// human to inspect.
			c.logger.Warn("Skipping undecodable workflow state",
				"thread_id", threadID,
				"error", err)
			return nil
		}
		return err
	}

	age := time.Since(st.UpdatedAt)
	if age <= c.config.MaxAge {
		return nil
	}

	if err := c.store.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("delete workflow %s: %w", threadID, err)
	}

	c.workflowsRemoved.Add(1)

	c.logger.Info("Removed idle workflow",
		"thread_id", threadID,
		"age", age,
		"max_age", c.config.MaxAge)

	c.events.Publish(ctx, &workflow.Event{
		Kind:      workflow.EventCleanup,
		ThreadID:  threadID,
		RunStatus: workflow.DeriveStatus(st),
		Detail:    fmt.Sprintf("removed after %s idle", age.Round(time.Second)),
	})

	return nil
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("state-janitor stopped",
		"sweeps_performed", c.sweepsPerformed.Load(),
		"workflows_removed", c.workflowsRemoved.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "state-janitor",
		Type:        "processor",
		Description: "Removes workflow state left idle past the retention window",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return janitorSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: 0,
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastSweep(),
	}
}

func (c *Component) updateLastSweep() {
	c.lastSweepMu.Lock()
	c.lastSweep = time.Now()
	c.lastSweepMu.Unlock()
}

func (c *Component) getLastSweep() time.Time {
	c.lastSweepMu.RLock()
	defer c.lastSweepMu.RUnlock()
	return c.lastSweep
}
