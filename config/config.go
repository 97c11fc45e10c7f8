// Package config loads server.yaml, the gateway's own startup settings
// (as opposed to partner/keys.go, which loads the separate
// partner_keys.yaml credential file).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Upstream controls the pooled HTTP client used to call the location API.
type Upstream struct {
	TimeoutSeconds      int `yaml:"timeout_seconds"`
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
}

// Config is the root server.yaml shape.
type Config struct {
	ListenAddr         string   `yaml:"listen_addr"`
	APIURL             string   `yaml:"api_url"`
	ConnTimeoutSeconds int      `yaml:"conn_timeout_seconds"`
	Upstream           Upstream `yaml:"upstream"`
	LogLevel           string   `yaml:"log_level"`
}

// ConnTimeout is ConnTimeoutSeconds as a time.Duration.
func (c *Config) ConnTimeout() time.Duration {
	return time.Duration(c.ConnTimeoutSeconds) * time.Second
}

// UpstreamTimeout is Upstream.TimeoutSeconds as a time.Duration. If unset,
// it falls back to ConnTimeout, matching the spec's "if absent, bounded by
// the same conn_timeout" rule for the upstream HTTP call.
func (c *Config) UpstreamTimeout() time.Duration {
	if c.Upstream.TimeoutSeconds <= 0 {
		return c.ConnTimeout()
	}
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// Load reads and parses a server.yaml file, expanding environment
// variables and applying defaults the same way it validates required
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":7000"
	}
	if c.ConnTimeoutSeconds == 0 {
		c.ConnTimeoutSeconds = 10
	}
	if c.Upstream.MaxIdleConnsPerHost == 0 {
		c.Upstream.MaxIdleConnsPerHost = 16
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.ConnTimeoutSeconds <= 0 {
		return fmt.Errorf("conn_timeout_seconds must be positive")
	}
	return nil
}
