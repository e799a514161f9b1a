package config

import (
	"fmt"
	"sort"
)

// IntakeRegistry holds the loaded intake definitions keyed by intake id.
// Built once at load time and read-only afterwards.
type IntakeRegistry struct {
	intakes map[string]*IntakeConfig
}

// NewIntakeRegistry creates a registry from the merged intake map.
func NewIntakeRegistry(intakes map[string]*IntakeConfig) *IntakeRegistry {
	if intakes == nil {
		intakes = make(map[string]*IntakeConfig)
	}
	return &IntakeRegistry{intakes: intakes}
}

// Get returns the intake with the given id.
func (r *IntakeRegistry) Get(intakeID string) (*IntakeConfig, error) {
	intake, ok := r.intakes[intakeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntakeNotFound, intakeID)
	}
	return intake, nil
}

// Has reports whether an intake with the given id exists.
func (r *IntakeRegistry) Has(intakeID string) bool {
	_, ok := r.intakes[intakeID]
	return ok
}

// Names returns all intake ids, sorted.
func (r *IntakeRegistry) Names() []string {
	names := make([]string, 0, len(r.intakes))
	for name := range r.intakes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered intakes.
func (r *IntakeRegistry) Count() int {
	return len(r.intakes)
}

// GetAll returns the underlying intake map. Callers must not mutate it.
func (r *IntakeRegistry) GetAll() map[string]*IntakeConfig {
	return r.intakes
}
