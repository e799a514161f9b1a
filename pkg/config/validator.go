package config

import (
	"fmt"
	"time"

	"github.com/codeready-toolchain/formbridge/pkg/validation"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if v.cfg.IntakeRegistry.Count() == 0 {
		return fmt.Errorf("%w: at least one intake must be defined", ErrMissingRequiredField)
	}

	for _, intakeID := range v.cfg.IntakeRegistry.Names() {
		intakeCfg, err := v.cfg.IntakeRegistry.Get(intakeID)
		if err != nil {
			return err
		}
		if err := v.validateIntake(intakeID, intakeCfg); err != nil {
			return fmt.Errorf("intake validation failed: %w", err)
		}
	}

	return nil
}

func (v *ConfigValidator) validateIntake(intakeID string, intakeCfg *IntakeConfig) error {
	// Schema is required and must compile
	if len(intakeCfg.Schema) == 0 {
		return NewValidationError(intakeID, "schema", ErrMissingRequiredField)
	}
	if _, err := validation.NewEngine(intakeCfg.Schema); err != nil {
		return NewValidationError(intakeID, "schema", err)
	}

	// TTL must parse to a positive duration when set
	if intakeCfg.TTL != "" {
		d, err := time.ParseDuration(intakeCfg.TTL)
		if err != nil {
			return NewValidationError(intakeID, "ttl", fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		if d <= 0 {
			return NewValidationError(intakeID, "ttl", fmt.Errorf("%w: must be positive", ErrInvalidValue))
		}
	}

	// Upload constraints
	for field, upload := range intakeCfg.Uploads {
		if field == "" {
			return NewValidationError(intakeID, "uploads", fmt.Errorf("%w: empty field path", ErrInvalidValue))
		}
		if upload.MaxBytes < 0 {
			return NewValidationError(intakeID, "uploads."+field+".max_bytes", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
		for _, mime := range upload.Accept {
			if mime == "" {
				return NewValidationError(intakeID, "uploads."+field+".accept", fmt.Errorf("%w: empty MIME type", ErrInvalidValue))
			}
		}
	}

	return nil
}
