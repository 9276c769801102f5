package statejanitor

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// janitorSchema defines the configuration schema.
var janitorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the state janitor component.
type Config struct {
	// CheckInterval is how often to scan for idle workflows.
	CheckInterval time.Duration `json:"check_interval"`

	// MaxAge is how long a workflow may sit unmodified before it is
	// removed. Age is measured from the state's updated_at stamp, so
	// any transition resets the clock.
	MaxAge time.Duration `json:"max_age"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 1 * time.Hour,
		MaxAge:        24 * time.Hour,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "workflow-state",
					Type:        "kv-watch",
					Subject:     "AGENTFLOW_WORKFLOWS",
					Description: "Scan workflow state in KV bucket",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "cleanup-events",
					Type:        "jetstream",
					Subject:     "workflow.event.cleanup.>",
					StreamName:  "WORKFLOW",
					Description: "Publish cleanup events for removed workflows",
					Required:    false,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	if c.MaxAge <= 0 {
		return fmt.Errorf("max_age must be positive")
	}
	return nil
}
