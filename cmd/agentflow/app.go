package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/agentflow/config"
	orchestratorapi "github.com/c360studio/agentflow/processor/orchestrator-api"
	statejanitor "github.com/c360studio/agentflow/processor/state-janitor"
	"github.com/c360studio/agentflow/workflow"
)

// workflowStreamName captures workflow lifecycle events.
const workflowStreamName = "WORKFLOW"

// run is the root command body: load config, wire the processors to
// NATS, serve the HTTP API, and block until a shutdown signal.
func run(configPath, logLevel, natsURL, httpAddr string) error {
	printBanner()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// NATS URL precedence: flag, then environment, then config layers.
	if natsURL == "" {
		if envURL := os.Getenv("AGENTFLOW_NATS_URL"); envURL != "" {
			natsURL = envURL
		} else if envURL := os.Getenv("NATS_URL"); envURL != "" {
			natsURL = envURL
		}
	}
	if natsURL != "" {
		cfg.NATS.URL = natsURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging. The level lives in a LevelVar so the config
	// watcher can change it at runtime.
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Logging.SlogLevel())
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()

	// Watch an explicit config file for runtime log level changes.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, levelVar, logger)
		if err != nil {
			logger.Warn("Config watcher unavailable", "error", err)
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("Config watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	app := newApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}

	logger.Info("Agentflow ready",
		"version", Version,
		"http_addr", cfg.HTTP.Addr,
		"model", cfg.Model.Provider+"/"+cfg.Model.Name)

	// Block until shutdown signal
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()
	<-signalCtx.Done()
	logger.Info("Received shutdown signal")

	app.Shutdown(30 * time.Second)
	logger.Info("Agentflow shutdown complete")
	return nil
}

// loadConfig resolves the effective configuration. An explicit path
// loads that file over the defaults; otherwise the layered loader walks
// user config, project config, and environment overrides.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.NewLoader(slog.Default()).Load()
}

// App wires the orchestrator processors to NATS and owns the HTTP
// server in front of them.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	natsClient   *natsclient.Client
	orchestrator *orchestratorapi.Component
	janitor      *statejanitor.Component
	httpServer   *http.Server
}

// newApp creates the application shell. Nothing connects until Start.
func newApp(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Start connects to NATS, ensures the event stream, starts the
// processors, and begins serving the HTTP API.
func (a *App) Start(ctx context.Context) error {
	client, err := connectToNATS(ctx, a.cfg.NATS.URL, a.logger)
	if err != nil {
		return err
	}
	a.natsClient = client

	js, err := client.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream: %w", err)
	}
	if err := ensureWorkflowStream(ctx, js, a.logger); err != nil {
		return err
	}

	deps := component.Dependencies{
		NATSClient: client,
		Logger:     a.logger,
	}

	orchRaw, _ := json.Marshal(orchestratorConfig(a.cfg))
	comp, err := orchestratorapi.NewComponent(orchRaw, deps)
	if err != nil {
		return fmt.Errorf("create orchestrator-api: %w", err)
	}
	orch, ok := comp.(*orchestratorapi.Component)
	if !ok {
		return fmt.Errorf("unexpected orchestrator-api component type %T", comp)
	}
	if err := orch.Initialize(); err != nil {
		return fmt.Errorf("initialize orchestrator-api: %w", err)
	}
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator-api: %w", err)
	}
	a.orchestrator = orch

	if !a.cfg.Janitor.Disabled {
		janRaw, _ := json.Marshal(janitorConfig(a.cfg))
		comp, err := statejanitor.NewComponent(janRaw, deps)
		if err != nil {
			return fmt.Errorf("create state-janitor: %w", err)
		}
		jan, ok := comp.(*statejanitor.Component)
		if !ok {
			return fmt.Errorf("unexpected state-janitor component type %T", comp)
		}
		if err := jan.Initialize(); err != nil {
			return fmt.Errorf("initialize state-janitor: %w", err)
		}
		if err := jan.Start(ctx); err != nil {
			return fmt.Errorf("start state-janitor: %w", err)
		}
		a.janitor = jan
	}

	mux := http.NewServeMux()
	a.orchestrator.RegisterHTTPHandlers("", mux)

	a.httpServer = &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Info("HTTP API listening", "addr", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", "error", err)
		}
	}()

	return nil
}

// Shutdown stops intake first, then the processors, then NATS. The
// orchestrator stop waits for background workflow runs to checkpoint.
func (a *App) Shutdown(timeout time.Duration) {
	if a.httpServer != nil {
		shutdownTimeout := a.cfg.HTTP.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("HTTP server shutdown incomplete", "error", err)
		}
		cancel()
	}

	if a.janitor != nil {
		if err := a.janitor.Stop(timeout); err != nil {
			a.logger.Warn("state-janitor stop failed", "error", err)
		}
	}

	if a.orchestrator != nil {
		if err := a.orchestrator.Stop(timeout); err != nil {
			a.logger.Warn("orchestrator-api stop failed", "error", err)
		}
	}

	if a.natsClient != nil {
		a.natsClient.Close(context.Background())
	}
}

// orchestratorConfig maps service-level config onto the component
// config. Zero durations map to empty strings so the component applies
// its own defaults.
func orchestratorConfig(cfg *config.Config) orchestratorapi.Config {
	var modelTimeout, fetchTimeout string
	if cfg.Model.Timeout > 0 {
		modelTimeout = cfg.Model.Timeout.String()
	}
	if cfg.Research.FetchTimeout > 0 {
		fetchTimeout = cfg.Research.FetchTimeout.String()
	}

	return orchestratorapi.Config{
		ModelProvider: cfg.Model.Provider,
		ModelName:     cfg.Model.Name,
		ModelEndpoint: cfg.Model.Endpoint,
		ModelTimeout:  modelTimeout,
		Temperature:   cfg.Model.Temperature,
		MaxTokens:     cfg.Model.MaxTokens,
		FetchPages:    cfg.Research.FetchPages,
		FetchTimeout:  fetchTimeout,
		MaxPageBytes:  cfg.Research.MaxPageBytes,
		UserAgent:     cfg.Research.UserAgent,
	}
}

// janitorConfig maps service-level config onto the component config.
func janitorConfig(cfg *config.Config) statejanitor.Config {
	return statejanitor.Config{
		CheckInterval: cfg.Janitor.CheckInterval,
		MaxAge:        cfg.Janitor.MaxAge,
	}
}

func connectToNATS(ctx context.Context, natsURL string, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20), // Higher threshold for startup bursts
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	// Check for common connection errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// ensureWorkflowStream creates the stream capturing workflow lifecycle
// events if it does not exist yet.
func ensureWorkflowStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	if _, err := js.Stream(ctx, workflowStreamName); err == nil {
		logger.Debug("JetStream stream ready", "stream", workflowStreamName)
		return nil
	}

	// Stream doesn't exist, create it
	subjects := []string{workflow.EventSubjectPrefix + ".>"}
	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        workflowStreamName,
		Description: "Workflow lifecycle events",
		Subjects:    subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("create %s stream: %w", workflowStreamName, err)
	}

	logger.Info("Created JetStream stream",
		"stream", workflowStreamName,
		"subjects", subjects)
	return nil
}
