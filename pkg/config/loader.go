package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const configFileName = "finagent.yaml"

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load finagent.yaml from configDir (optional, built-ins apply)
//  2. Expand environment variables
//  3. Merge user config over built-in defaults
//  4. Validate the result
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"profile_fields", stats.ProfileFields,
		"required_fields", stats.RequiredFields,
		"debate_rounds", stats.DebateRounds)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	cfg := defaultConfig()

	path := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No user configuration file, using built-in defaults", "path", path)
			return cfg, nil
		}
		return nil, NewLoadError(configFileName, err)
	}

	expanded := ExpandEnv(data)

	var user Config
	if err := yaml.Unmarshal(expanded, &user); err != nil {
		return nil, NewLoadError(configFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	// User values override built-ins; empty user fields keep defaults.
	if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
		return nil, NewLoadError(configFileName, err)
	}

	// mergo merges slices element-wise only with special options; a
	// user-provided field registry replaces the built-in one wholesale.
	if len(user.ProfileFields) > 0 {
		cfg.ProfileFields = user.ProfileFields
	}

	return cfg, nil
}
