package orchestratorapi

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// orchestratorSchema defines the configuration schema.
var orchestratorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the orchestrator-api component.
type Config struct {
	// ModelProvider selects the LLM provider (ollama, openai, anthropic).
	ModelProvider string `json:"model_provider" schema:"type:string,description:LLM provider name,category:basic,default:ollama"`

	// ModelName is the model the planner and both workers prompt.
	ModelName string `json:"model_name" schema:"type:string,description:Model name,category:basic,default:qwen2.5:14b"`

	// ModelEndpoint overrides the provider's default endpoint.
	ModelEndpoint string `json:"model_endpoint,omitempty" schema:"type:string,description:Provider endpoint override,category:advanced"`

	// ModelTimeout bounds a single LLM call. Uses time.ParseDuration format (e.g. "5m").
	ModelTimeout string `json:"model_timeout" schema:"type:string,description:LLM call timeout,category:advanced,default:5m"`

	// Temperature is the sampling temperature for planning and worker calls.
	Temperature float64 `json:"temperature" schema:"type:float,description:Sampling temperature,category:advanced,default:0.2"`

	// MaxTokens caps model responses. Zero uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty" schema:"type:int,description:Max response tokens (0 = provider default),category:advanced"`

	// FetchPages lets the researcher download URLs named in task
	// descriptions and feed the extracted articles to the model.
	FetchPages bool `json:"fetch_pages,omitempty" schema:"type:bool,description:Fetch URLs found in research tasks,category:advanced,default:false"`

	// FetchTimeout bounds one page download.
	FetchTimeout string `json:"fetch_timeout,omitempty" schema:"type:string,description:Page fetch timeout,category:advanced,default:30s"`

	// MaxPageBytes caps a downloaded page body. Zero uses the fetcher default.
	MaxPageBytes int64 `json:"max_page_bytes,omitempty" schema:"type:int,description:Max bytes per fetched page,category:advanced"`

	// UserAgent identifies page fetches.
	UserAgent string `json:"user_agent,omitempty" schema:"type:string,description:User agent for page fetches,category:advanced"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Input/output port definitions,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		ModelProvider: "ollama",
		ModelName:     "qwen2.5:14b",
		ModelTimeout:  "5m",
		Temperature:   0.2,
		FetchTimeout:  "30s",
		Ports: &component.PortConfig{
			Outputs: []component.PortDefinition{
				{
					Name:        "workflow-events",
					Type:        "jetstream",
					Subject:     "workflow.event.>",
					StreamName:  "WORKFLOW",
					Description: "Publish workflow lifecycle events",
					Required:    false,
				},
			},
		},
	}
}

// GetModelTimeout parses the model timeout duration.
// Returns 5 minutes if the field is empty or unparseable.
func (c *Config) GetModelTimeout() time.Duration {
	if c.ModelTimeout == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.ModelTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetFetchTimeout parses the page fetch timeout.
// Returns 30 seconds if the field is empty or unparseable.
func (c *Config) GetFetchTimeout() time.Duration {
	if c.FetchTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ModelProvider == "" {
		return fmt.Errorf("model_provider is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}
	if c.ModelTimeout != "" {
		if _, err := time.ParseDuration(c.ModelTimeout); err != nil {
			return fmt.Errorf("invalid model_timeout: %w", err)
		}
	}
	if c.FetchTimeout != "" {
		if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
			return fmt.Errorf("invalid fetch_timeout: %w", err)
		}
	}
	return nil
}
