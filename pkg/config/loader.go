package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/formbridge/pkg/version"
)

// IntakesYAMLConfig represents the complete intakes.yaml file structure
type IntakesYAMLConfig struct {
	Defaults *IntakeDefaults          `yaml:"defaults"`
	Intakes  map[string]*IntakeConfig `yaml:"intakes"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load .env from configDir when present
//  2. Load intakes.yaml
//  3. Expand environment variables
//  4. Merge the defaults section into each intake
//  5. Build the intake registry
//  6. Validate all intakes (schemas compile-checked)
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing intake configuration", "version", version.Full())

	// Optional .env; absence is not an error
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err == nil {
		log.Info("Loaded .env file")
	}

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Intake configuration initialized successfully",
		"intakes", cfg.IntakeRegistry.Count())

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	intakesConfig, err := loader.loadIntakesYAML()
	if err != nil {
		return nil, NewLoadError("intakes.yaml", err)
	}

	// Merge the defaults section into each intake (unset knobs only)
	defaults := intakesConfig.Defaults
	if defaults == nil {
		defaults = &IntakeDefaults{}
	}
	fill := &IntakeConfig{
		TTL:           defaults.TTL,
		RequireReview: defaults.RequireReview,
	}
	for intakeID, intakeCfg := range intakesConfig.Intakes {
		if intakeCfg == nil {
			intakeCfg = &IntakeConfig{}
			intakesConfig.Intakes[intakeID] = intakeCfg
		}
		if err := mergo.Merge(intakeCfg, fill); err != nil {
			return nil, fmt.Errorf("failed to merge defaults into intake %q: %w", intakeID, err)
		}
	}

	return &Config{
		configDir:      configDir,
		Defaults:       defaults,
		IntakeRegistry: NewIntakeRegistry(intakesConfig.Intakes),
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing YAML parser to handle the content (or fail with clearer error message)
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadIntakesYAML() (*IntakesYAMLConfig, error) {
	var config IntakesYAMLConfig

	// Initialize map to avoid nil map
	config.Intakes = make(map[string]*IntakeConfig)

	if err := l.loadYAML("intakes.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}
