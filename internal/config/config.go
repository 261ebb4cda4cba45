// Package config holds host configuration: defaults, and optional YAML
// file loading for the serve command.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HostConfig holds configuration for the ExtHost server and connector.
type HostConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json
	DBPath    string `yaml:"db_path"`    // SQLite transcript database (default ~/.exthost/exthost.db, ":memory:" for testing)

	// Connector policy knobs.
	AllowHosts     []string      `yaml:"allow_hosts"`     // empty admits every host not denied
	DenyHosts      []string      `yaml:"deny_hosts"`      // checked before allow
	RequireTLS     bool          `yaml:"require_tls"`     // reject plain http
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`  // response body cap
	RequestTimeout time.Duration `yaml:"request_timeout"` // per host call
}

// DefaultHostConfig returns sensible defaults.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		RequireTLS:     true,
		MaxBodyBytes:   4 << 20,
		RequestTimeout: 30 * time.Second,
	}
}

// Load reads a YAML config file over the defaults. Fields absent from the
// file keep their default values.
func Load(path string) (HostConfig, error) {
	cfg := DefaultHostConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
