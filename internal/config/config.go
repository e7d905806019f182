// Package config handles the devtap configuration file and its environment
// overrides. The file is optional; without one the client talks to the
// default local devtools endpoint.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codefionn/devtap/internal/protocol"
)

const configFileName = ".devtap.json"

// Config holds the devtap settings persisted on disk. Environment
// variables DEVTAP_HOST, DEVTAP_PORT and DEVTAP_LOG_LEVEL override the
// file, flags override both.
type Config struct {
	// Host is the devtools server address
	Host string `json:"host"`
	// Port is the devtools server port
	Port int `json:"port"`
	// QueueSize is the outbound log queue capacity
	QueueSize int `json:"queue_size,omitempty"`
	// LogLevel controls the client's own diagnostic logging
	LogLevel string `json:"log_level,omitempty"`
	// LogFile is where client diagnostics are written; empty disables them
	LogFile string `json:"log_file,omitempty"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Host:      protocol.DefaultHost,
		Port:      protocol.DefaultPort,
		QueueSize: protocol.LogQueueMaxSize,
		LogLevel:  "info",
	}
}

// DefaultPath returns the per-user config file location
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, configFileName)
}

// Load reads the config file at path, fills gaps with defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults plus environment only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// Save writes the config as indented JSON, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func (c *Config) applyEnv() {
	if host := os.Getenv("DEVTAP_HOST"); host != "" {
		c.Host = host
	}
	if portStr := os.Getenv("DEVTAP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			c.Port = port
		}
	}
	if level := os.Getenv("DEVTAP_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

func (c *Config) normalize() {
	if c.Host == "" {
		c.Host = protocol.DefaultHost
	}
	if c.Port <= 0 {
		c.Port = protocol.DefaultPort
	}
	if c.QueueSize <= 0 {
		c.QueueSize = protocol.LogQueueMaxSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
