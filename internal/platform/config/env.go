package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable read by the header service.
const EnvPrefix = "NAVHEADER_"

// ParseEnv loads configuration from NAVHEADER_-prefixed environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvLookup loads configuration from a caller-provided environment map.
// Keys in environment must already carry EnvPrefix.
func ParseEnvLookup(target any, environment map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix, Environment: environment}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
