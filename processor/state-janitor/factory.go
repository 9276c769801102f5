package statejanitor

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the state janitor component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "state-janitor",
		Factory:     NewComponent,
		Schema:      janitorSchema,
		Type:        "processor",
		Protocol:    "workflow",
		Domain:      "agentic",
		Description: "Removes workflow state left idle past the retention window",
		Version:     "0.1.0",
	})
}
