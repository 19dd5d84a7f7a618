package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Engine types understood by the launcher
const (
	EngineTypeLocal  = "local"
	EngineTypeRemote = "remote"
)

// Engine describes a configured optimization engine. Local engines run a
// solver binary, remote engines talk to an optimization service. API keys
// are never stored here, only the name of the env var holding one.
type Engine struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Command   string `yaml:"command,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`
	URL       string `yaml:"url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	StudyID   string `yaml:"study_id,omitempty"`
}

// Config holds the configured engines
type Config struct {
	Engines  []Engine `yaml:"engines"`
	Selected string   `yaml:"selected,omitempty"`
}

// ConfigDir returns the launcher's config directory (~/.stimopt)
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".stimopt"), nil
}

// LoadEngines loads engine configurations from the default location
func LoadEngines() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadEnginesFromFile(filepath.Join(dir, "engines.yaml"))
}

// LoadEnginesFromFile loads engine configurations from a specific file.
// A missing file yields the default set.
func LoadEnginesFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	for i := range config.Engines {
		if err := config.Engines[i].Validate(); err != nil {
			return nil, fmt.Errorf("engine %q: %w", config.Engines[i].Name, err)
		}
	}

	return &config, nil
}

// SaveEngines saves the engine configuration to the default location
func SaveEngines(config *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(dir, "engines.yaml")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Find returns the engine with the given name
func (c *Config) Find(name string) (*Engine, error) {
	for i := range c.Engines {
		if c.Engines[i].Name == name {
			return &c.Engines[i], nil
		}
	}
	return nil, fmt.Errorf("engine %q not configured", name)
}

// Default returns the selected engine, or the only one when a single
// engine is configured
func (c *Config) Default() (*Engine, error) {
	if c.Selected != "" {
		return c.Find(c.Selected)
	}
	if len(c.Engines) == 1 {
		return &c.Engines[0], nil
	}
	return nil, fmt.Errorf("no engine selected")
}

// Validate checks that the engine entry is usable for its type
func (e *Engine) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("engine name is required")
	}
	switch e.Type {
	case EngineTypeLocal:
		if e.Command == "" {
			return fmt.Errorf("local engine requires a command")
		}
	case EngineTypeRemote:
		if e.URL == "" {
			return fmt.Errorf("remote engine requires a url")
		}
	default:
		return fmt.Errorf("unknown engine type %q", e.Type)
	}
	return nil
}

// getDefaultConfig returns the default engine set: a local solver on PATH
func getDefaultConfig() *Config {
	return &Config{
		Engines: []Engine{
			{
				Name:      "local",
				Type:      EngineTypeLocal,
				Command:   "tesolve",
				OutputDir: "optimizations",
			},
		},
		Selected: "local",
	}
}
