// Package config loads board.yml, the settings shared by the relay server
// and the headless client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in a directory.
const FileName = "board.yml"

// Config models board.yml.
type Config struct {
	Relay struct {
		Addr            string `yaml:"addr"`
		MaxMessageBytes int    `yaml:"max_message_bytes"`
		// SnapshotEvery compacts a board's history after this many actions.
		// Zero disables compaction.
		SnapshotEvery int `yaml:"snapshot_every"`
		// Membership restricts each board to the users granted a role on it.
		Membership        bool          `yaml:"membership"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"relay"`
	Client struct {
		URL         string        `yaml:"url"`
		Email       string        `yaml:"email"`
		DialTimeout time.Duration `yaml:"dial_timeout"`
	} `yaml:"client"`
	NATS struct {
		URL           string        `yaml:"url"`
		MaxReconnects int           `yaml:"max_reconnects"`
		ReconnectWait time.Duration `yaml:"reconnect_wait"`
	} `yaml:"nats"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.Relay.Addr = ":8080"
	cfg.Relay.MaxMessageBytes = 64 << 10
	cfg.Relay.SnapshotEvery = 100
	cfg.Relay.ReadHeaderTimeout = 10 * time.Second
	cfg.Relay.ShutdownTimeout = 5 * time.Second
	cfg.Client.URL = "http://localhost:8080"
	cfg.Client.DialTimeout = 5 * time.Second
	cfg.NATS.MaxReconnects = 5
	cfg.NATS.ReconnectWait = 2 * time.Second

	return &cfg
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.Relay.Addr == "" {
		return fmt.Errorf("config.relay.addr is required")
	}

	if c.Relay.MaxMessageBytes <= 0 {
		return fmt.Errorf("config.relay.max_message_bytes must be positive")
	}

	if c.Relay.SnapshotEvery < 0 {
		return fmt.Errorf("config.relay.snapshot_every must not be negative")
	}

	if c.Relay.ReadHeaderTimeout < 0 || c.Relay.ShutdownTimeout < 0 {
		return fmt.Errorf("config.relay timeouts must not be negative")
	}

	if c.Client.URL == "" {
		return fmt.Errorf("config.client.url is required")
	}

	if c.Client.DialTimeout <= 0 {
		return fmt.Errorf("config.client.dial_timeout must be positive")
	}

	if c.NATS.URL != "" && c.NATS.ReconnectWait <= 0 {
		return fmt.Errorf("config.nats.reconnect_wait must be positive")
	}

	return nil
}

// Path returns the config file path for a directory.
func Path(dir string) string {
	if dir == "" {
		dir = "."
	}

	return filepath.Join(dir, FileName)
}

// Load reads and validates config from dir.
func Load(dir string) (*Config, error) {
	path := Path(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}

		return nil, err
	}

	return FromYAML(data)
}

// LoadOptional reads config from dir, falling back to Default when the
// file does not exist.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err == nil {
		return cfg, nil
	}

	if _, statErr := os.Stat(Path(dir)); os.IsNotExist(statErr) {
		return Default(), nil
	}

	return nil, err
}

// FromYAML parses and validates config from raw YAML bytes. Fields the
// YAML leaves out keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return FromYAML(data)
}

// YAML renders the config as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
