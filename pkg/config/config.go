// Package config provides configuration loading and management for the
// tissue extraction pipeline. It handles loading configuration from YAML
// files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters
	Processing struct {
		// TileSize is the streaming window edge in pixels for every tiled
		// stage: pyramid conversion, mask rasterization and compositing.
		TileSize int `yaml:"tileSize"`

		// MaskThreshold is the mask sample value above which a pixel counts
		// as tissue.
		MaskThreshold int `yaml:"maskThreshold"`

		// MaxLevels caps how many mask pyramid levels are built; 0 builds a
		// level for every image pyramid level.
		MaxLevels int `yaml:"maxLevels"`
	} `yaml:"processing"`

	// Selection parameters
	Selection struct {
		// Levels is the default level specification applied when no -levels
		// flag is given, e.g. "0-3" or "all". Empty selects every level.
		Levels string `yaml:"levels"`

		// Interactive prompts for a level specification on stdin when true.
		Interactive bool `yaml:"interactive"`
	} `yaml:"selection"`

	// Output parameters
	Output struct {
		// KeepIntermediates preserves the converted slide pyramid and the
		// intermediate mask pyramid after the run.
		KeepIntermediates bool `yaml:"keepIntermediates"`

		// Verbose controls the level of progress output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.TileSize = 512
	cfg.Processing.MaskThreshold = 128
	cfg.Processing.MaxLevels = 0

	cfg.Selection.Levels = ""
	cfg.Selection.Interactive = true

	cfg.Output.KeepIntermediates = true
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
