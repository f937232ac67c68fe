package probe

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultTimeoutSeconds = 30

// Config is the TOML configuration of the HTTP probe
//
//	[probe]
//	base_url = "https://staging.example.com"
//	timeout_seconds = 15
//
//	[probe.headers]
//	X-Audit-Token = "$AUDIT_TOKEN"
//
//	[endpoints]
//	mpesa-stk-push = "/api/mpesa/stk-push"
type Config struct {
	Probe     ServerConfig      `toml:"probe"`
	Endpoints map[string]string `toml:"endpoints"`
}

type ServerConfig struct {
	BaseURL        string            `toml:"base_url"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	Headers        map[string]string `toml:"headers"`
}

// Timeout returns the per-request timeout
func (c *Config) Timeout() time.Duration {
	if c.Probe.TimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// LoadConfig reads and validates a probe configuration file. Header values
// starting with "$" are read from the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := new(Config)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode probe config %s: %w", path, err)
	}
	for k, v := range cfg.Probe.Headers {
		if strings.HasPrefix(v, "$") {
			cfg.Probe.Headers[k] = os.Getenv(strings.TrimPrefix(v, "$"))
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the base URL parses and every endpoint has a path
func (c *Config) Validate() error {
	if c.Probe.BaseURL == "" {
		return errors.New("probe.base_url is required")
	}
	u, err := url.Parse(c.Probe.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid probe.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("probe.base_url must be http or https, got %q", u.Scheme)
	}
	for name, path := range c.Endpoints {
		if path == "" {
			return fmt.Errorf("endpoint %q has an empty path", name)
		}
	}
	return nil
}
