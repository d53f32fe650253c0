package config

import (
	"fmt"
	"os"

	"dentaldesk/internal/models"
	"dentaldesk/internal/slots"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one provider in providers.yaml.
type ProviderConfig struct {
	ID           int64                     `yaml:"id"`
	Name         string                    `yaml:"name"`
	Specialty    string                    `yaml:"specialty"`
	IsActive     bool                      `yaml:"is_active"`
	Availability models.WeeklyAvailability `yaml:"availability,omitempty"`
}

// ProviderDefaults holds values applied to providers without explicit settings.
type ProviderDefaults struct {
	Availability models.WeeklyAvailability `yaml:"availability"`
}

// ProvidersConfig is the root of providers.yaml.
type ProvidersConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
	Defaults  ProviderDefaults `yaml:"defaults"`
}

// LoadProvidersConfig loads and validates the providers file.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	if path == "" {
		path = "configs/providers.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers config: %w", err)
	}

	var cfg ProvidersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse providers config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate providers config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ProvidersConfig) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers defined")
	}

	ids := make(map[int64]bool)
	for i, p := range c.Providers {
		if p.ID <= 0 {
			return fmt.Errorf("provider[%d]: id must be positive, got %d", i, p.ID)
		}
		if ids[p.ID] {
			return fmt.Errorf("provider[%d]: duplicate id %d", i, p.ID)
		}
		ids[p.ID] = true

		if p.Name == "" {
			return fmt.Errorf("provider[%d]: name is required", i)
		}
		if err := slots.ValidateAvailability(p.Availability); err != nil {
			return fmt.Errorf("provider[%d].availability: %w", i, err)
		}
	}

	if err := slots.ValidateAvailability(c.Defaults.Availability); err != nil {
		return fmt.Errorf("defaults.availability: %w", err)
	}

	return nil
}

func (c *ProvidersConfig) applyDefaults() {
	for i := range c.Providers {
		if len(c.Providers[i].Availability) == 0 && len(c.Defaults.Availability) > 0 {
			c.Providers[i].Availability = c.Defaults.Availability.Clone()
		}
	}
}

// String returns a summary of the configuration.
func (c *ProvidersConfig) String() string {
	active := 0
	for _, p := range c.Providers {
		if p.IsActive {
			active++
		}
	}
	return fmt.Sprintf("ProvidersConfig: %d providers (%d active)", len(c.Providers), active)
}
