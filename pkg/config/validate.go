package config

import "fmt"

// ValidatableConfig is a configuration that can report its own problems.
type ValidatableConfig interface {
	Validate() []error
}

// Validate collects the problems of all cfgs.
func Validate(cfgs ...ValidatableConfig) []error {
	var out []error

	for _, cfg := range cfgs {
		out = append(out, cfg.Validate()...)
	}

	return out
}

// validatePort accepts 0, which asks the OS for an ephemeral port.
func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%d not in [0, 65535]", port)
	}

	return nil
}
