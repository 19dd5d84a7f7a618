package opt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// readSpec reads and unmarshals a spec file without defaults or validation
func readSpec(path string) (*Optimization, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading spec file: %w", err)
	}

	var o Optimization
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("error parsing spec file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("error parsing spec file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported spec format %q (want .yaml, .yml or .json)", filepath.Ext(path))
	}

	return &o, nil
}

// Load reads an optimization spec from a YAML or JSON file, fills defaults
// and validates it
func Load(path string) (*Optimization, error) {
	o, err := readSpec(path)
	if err != nil {
		return nil, err
	}

	o.ApplyDefaults()
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimization spec: %w", err)
	}

	return o, nil
}

// Save validates the optimization and writes it to path, creating parent
// directories as needed. The format follows the file extension.
func Save(o *Optimization, path string) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid optimization spec: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(o)
	case ".json":
		data, err = json.MarshalIndent(o, "", "  ")
	default:
		return fmt.Errorf("unsupported spec format %q (want .yaml, .yml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("error marshaling spec: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing spec file: %w", err)
	}

	return nil
}
