package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/protocol"
)

// ProtocolInfo contains information about a discovered protocol
type ProtocolInfo struct {
	Path   string
	Config protocol.ProtocolConfig
}

// DiscoverProtocols finds all protocols in the cmd directory
func DiscoverProtocols() ([]ProtocolInfo, error) {
	var protocols []ProtocolInfo

	rootDir, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	cmdDir := filepath.Join(rootDir, "cmd")

	err = filepath.Walk(cmdDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.Name() == "protocol.yaml" {
			protoInfo, err := loadProtocolConfig(path)
			if err != nil {
				logger.Warnf("Failed to load %s: %v", path, err)
				return nil
			}
			protocols = append(protocols, *protoInfo)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan for protocols: %w", err)
	}

	return protocols, nil
}

// loadProtocolConfig loads a protocol configuration from a file
func loadProtocolConfig(path string) (*ProtocolInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol config: %w", err)
	}

	var config protocol.ProtocolConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse protocol config: %w", err)
	}

	return &ProtocolInfo{
		Path:   filepath.Dir(path),
		Config: config,
	}, nil
}

// findProjectRoot finds the project root by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
