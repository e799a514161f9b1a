// Package config loads intake definitions from intakes.yaml: per-intake
// JSON Schema, TTL, review policy and upload constraints, with environment
// expansion, a defaults section merged into each intake, and fail-fast
// validation at load time.
package config

import (
	"log/slog"
	"time"
)

// IntakeConfig is one intake template: the schema its submissions validate
// against plus the policy knobs the runtime applies.
type IntakeConfig struct {
	// Schema is the intake's JSON Schema (Draft 7 compatible), written
	// inline as YAML. Compile-checked at load time.
	Schema map[string]any `yaml:"schema"`

	// TTL is the expiration budget for new submissions, as a Go duration
	// string ("24h", "30m"). Empty means no expiration.
	TTL string `yaml:"ttl,omitempty"`

	// RequireReview routes every successful submit on to human review.
	// A pointer so the defaults section can fill it when unset.
	RequireReview *bool `yaml:"require_review,omitempty"`

	// Uploads maps upload field paths to their constraints.
	Uploads map[string]UploadFieldConfig `yaml:"uploads,omitempty"`
}

// UploadFieldConfig constrains one upload field.
type UploadFieldConfig struct {
	// Accept lists the permitted MIME types; empty accepts anything.
	Accept []string `yaml:"accept,omitempty"`
	// MaxBytes is the size budget; zero means unlimited.
	MaxBytes int64 `yaml:"max_bytes,omitempty"`
}

// IntakeDefaults is the defaults section of intakes.yaml, merged into every
// intake that leaves the corresponding knob unset.
type IntakeDefaults struct {
	TTL           string `yaml:"ttl,omitempty"`
	RequireReview *bool  `yaml:"require_review,omitempty"`
}

// TTLDuration parses the intake's TTL. A malformed value is logged and
// treated as no expiration; the validator rejects it before a Config is
// ever returned, so this path only triggers on hand-built configs.
func (c *IntakeConfig) TTLDuration() time.Duration {
	if c.TTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		slog.Warn("Invalid ttl in intake config, treating as no expiration",
			"value", c.TTL,
			"error", err)
		return 0
	}
	return d
}

// ReviewRequired resolves the RequireReview pointer; unset means false.
func (c *IntakeConfig) ReviewRequired() bool {
	return c.RequireReview != nil && *c.RequireReview
}
