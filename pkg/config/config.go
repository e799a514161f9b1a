package config

import (
	"github.com/codeready-toolchain/formbridge/pkg/runtime"
)

// Config is the root configuration object returned by Initialize.
type Config struct {
	configDir string

	// Defaults is the resolved defaults section of intakes.yaml.
	Defaults *IntakeDefaults

	// IntakeRegistry resolves intake ids to their definitions.
	IntakeRegistry *IntakeRegistry
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetIntake returns the intake definition by id.
// This is a convenience method that wraps IntakeRegistry.Get().
func (c *Config) GetIntake(intakeID string) (*IntakeConfig, error) {
	return c.IntakeRegistry.Get(intakeID)
}

// BuildRuntime constructs a submission runtime for one configured intake,
// translating the intake's policy knobs into the runtime policy. Extra
// options (storage, delivery, uploader, scheduler, shared emitter) are
// passed through.
func (c *Config) BuildRuntime(intakeID string, opts ...runtime.Option) (*runtime.Runtime, error) {
	intakeCfg, err := c.GetIntake(intakeID)
	if err != nil {
		return nil, err
	}

	policy := runtime.Policy{
		RequireReview: intakeCfg.ReviewRequired(),
		DefaultTTL:    intakeCfg.TTLDuration(),
	}
	if len(intakeCfg.Uploads) > 0 {
		policy.Uploads = make(map[string]runtime.UploadPolicy, len(intakeCfg.Uploads))
		for field, upload := range intakeCfg.Uploads {
			policy.Uploads[field] = runtime.UploadPolicy{
				Accept:   upload.Accept,
				MaxBytes: upload.MaxBytes,
			}
		}
	}

	opts = append([]runtime.Option{runtime.WithPolicy(policy)}, opts...)
	return runtime.New(intakeID, intakeCfg.Schema, opts...)
}
