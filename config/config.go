// Package config loads the platform configuration from YAML with safe
// defaults. Policy knobs (gateway strictness, timeouts, storage backend)
// are configuration inputs, never compile-time constants.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the coordination server.
type Config struct {
	Listen  string        `yaml:"listen"`
	Gateway GatewayConfig `yaml:"gateway"`
	Session SessionConfig `yaml:"session"`
	Channel ChannelConfig `yaml:"channel"`
	Group   GroupConfig   `yaml:"group"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig controls session identity extraction.
type GatewayConfig struct {
	// Header is the session identity header key, matched case-insensitively.
	Header string `yaml:"header"`
	// Policy is "strict" or "permissive".
	Policy string `yaml:"policy"`
}

// SessionConfig controls session lifetimes.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Sliding       bool          `yaml:"sliding"`
}

// ChannelConfig controls point-to-point delivery.
type ChannelConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// GroupConfig controls group coordination rounds.
type GroupConfig struct {
	ResponseDeadline time.Duration `yaml:"response_deadline"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration used when a field is unset.
func Default() Config {
	return Config{
		Listen: ":8787",
		Gateway: GatewayConfig{
			Header: "MCP-Session-Id",
			Policy: "strict",
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Channel: ChannelConfig{Timeout: 30 * time.Second},
		Group:   GroupConfig{ResponseDeadline: 30 * time.Second},
		Store:   StoreConfig{Driver: "memory"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads a YAML config file, layering it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Gateway.Header == "" {
		return fmt.Errorf("gateway header is required")
	}
	switch c.Gateway.Policy {
	case "strict", "permissive":
	default:
		return fmt.Errorf("unknown gateway policy %q", c.Gateway.Policy)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive")
	}
	if c.Channel.Timeout <= 0 {
		return fmt.Errorf("channel timeout must be positive")
	}
	if c.Group.ResponseDeadline <= 0 {
		return fmt.Errorf("group response deadline must be positive")
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("dsn is required for postgres store")
	}
	return nil
}
