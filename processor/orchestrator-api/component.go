// Package orchestratorapi exposes the workflow engine over HTTP: request
// intake, status reads, and the human approval gate, plus health and
// metrics endpoints.
package orchestratorapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/agentflow/engine"
	"github.com/c360studio/agentflow/llm"
	"github.com/c360studio/agentflow/planner"
	"github.com/c360studio/agentflow/storage"
	"github.com/c360studio/agentflow/workers"
)

// Component implements the orchestrator-api processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	planner    *planner.Planner
	dispatcher *engine.Dispatcher
	metrics    *apiMetrics

	// engine is assembled in Start, once JetStream is reachable.
	engine *engine.Engine

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex

	// Metrics
	requestsServed   atomic.Int64
	workflowsStarted atomic.Int64
	lastActivityMu   sync.RWMutex
	lastActivity     time.Time
}

// NewComponent creates a new orchestrator-api processor. The model-facing
// collaborators (LLM client, planner, workers) are built here; the engine
// itself waits for Start because its store needs a live JetStream.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.ModelProvider == "" {
		config.ModelProvider = defaults.ModelProvider
	}
	if config.ModelName == "" {
		config.ModelName = defaults.ModelName
	}
	if config.ModelTimeout == "" {
		config.ModelTimeout = defaults.ModelTimeout
	}
	if config.Temperature == 0 {
		config.Temperature = defaults.Temperature
	}
	if config.FetchTimeout == "" {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if llm.GetProvider(config.ModelProvider) == nil {
		return nil, fmt.Errorf("unknown model provider %q (have %v)", config.ModelProvider, llm.ListProviders())
	}

	logger := deps.GetLogger()

	client := llm.NewClient(config.ModelProvider, config.ModelEndpoint,
		llm.WithHTTPClient(&http.Client{Timeout: config.GetModelTimeout()}),
		llm.WithLogger(logger),
	)

	plannerOpts := []planner.Option{
		planner.WithTemperature(config.Temperature),
		planner.WithLogger(logger),
	}
	if config.MaxTokens > 0 {
		plannerOpts = append(plannerOpts, planner.WithMaxTokens(config.MaxTokens))
	}

	workerOpts := []workers.Option{
		workers.WithTemperature(config.Temperature),
		workers.WithLogger(logger),
	}
	if config.MaxTokens > 0 {
		workerOpts = append(workerOpts, workers.WithMaxTokens(config.MaxTokens))
	}

	codeWorker := workers.NewCodeWorker(client, config.ModelName, workerOpts...)

	if config.FetchPages {
		fetcher := workers.NewFetcher(config.GetFetchTimeout(), config.UserAgent, config.MaxPageBytes)
		workerOpts = append(workerOpts, workers.WithFetcher(fetcher))
	}
	researcher := workers.NewResearcher(client, config.ModelName, workerOpts...)

	return &Component{
		name:       "orchestrator-api",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     logger,
		planner:    planner.New(client, config.ModelName, plannerOpts...),
		dispatcher: engine.NewDispatcher(researcher, codeWorker),
		metrics:    newAPIMetrics(),
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized orchestrator-api",
		"model_provider", c.config.ModelProvider,
		"model_name", c.config.ModelName,
		"fetch_pages", c.config.FetchPages)
	return nil
}

// Start assembles the engine over the JetStream-backed store and begins
// serving requests. Handlers respond 503 until this has run.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		return fmt.Errorf("NATS client required")
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream: %w", err)
	}

	store, err := storage.NewStore(ctx, js)
	if err != nil {
		return fmt.Errorf("create workflow store: %w", err)
	}

	publisher := engine.NewPublisher(c.natsClient, c.name, c.logger)
	c.engine = engine.New(store, c.planner, c.dispatcher,
		engine.WithLogger(c.logger),
		engine.WithPublisher(publisher),
	)

	c.running = true
	c.startTime = time.Now()

	c.logger.Info("orchestrator-api started",
		"model_provider", c.config.ModelProvider,
		"model_name", c.config.ModelName)

	return nil
}

// Stop stops accepting requests and waits up to timeout for background
// workflow executions to finish.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	eng := c.engine
	c.mu.Unlock()

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		eng.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		c.logger.Warn("Stopped before background workflow runs finished", "timeout", timeout)
	}

	c.logger.Info("orchestrator-api stopped",
		"requests_served", c.requestsServed.Load(),
		"workflows_started", c.workflowsStarted.Load())

	return nil
}

// getEngine returns the engine while the component is running, nil
// otherwise.
func (c *Component) getEngine() *engine.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.running {
		return nil
	}
	return c.engine
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "orchestrator-api",
		Type:        "processor",
		Description: "HTTP endpoints for workflow orchestration: intake, status, and the approval gate",
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
	return orchestratorSchema
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
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
