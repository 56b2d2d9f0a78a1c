// Package config loads coordinator configuration from standard
// locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/handoff/delegation"
	"github.com/vinayprograms/handoff/events"
)

// Duration wraps time.Duration so TOML values can be written as
// strings like "10m" or "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the top-level coordinator configuration.
type Config struct {
	// ResultsDir is the base directory of the file-backed result
	// store.
	ResultsDir string `toml:"results_dir"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `toml:"log_level"`

	Delegation DelegationConfig `toml:"delegation"`
	Events     EventsConfig     `toml:"events"`
	Anthropic  AnthropicConfig  `toml:"anthropic"`
}

// DelegationConfig holds lifecycle timing.
type DelegationConfig struct {
	MaxRuntime   Duration `toml:"max_runtime"`
	Grace        Duration `toml:"grace"`
	PollInterval Duration `toml:"poll_interval"`
	ReadMargin   Duration `toml:"read_margin"`
}

// EventsConfig selects the session event backend.
type EventsConfig struct {
	// Backend is "memory" or "nats".
	Backend string `toml:"backend"`

	// URL of the NATS server, for the nats backend.
	URL string `toml:"url"`

	// BufferSize for subscription channels.
	BufferSize int `toml:"buffer_size"`
}

// AnthropicConfig configures the Anthropic-backed session client.
type AnthropicConfig struct {
	// APIKey for the Anthropic API. The ANTHROPIC_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the API endpoint, for proxies.
	BaseURL string `toml:"base_url"`

	// Model handling delegated turns.
	Model string `toml:"model"`

	// MaxTokens per assistant reply.
	MaxTokens int `toml:"max_tokens"`
}

// Default returns configuration with sensible defaults.
func Default() *Config {
	timing := delegation.DefaultConfig()
	return &Config{
		ResultsDir: defaultResultsDir(),
		LogLevel:   "info",
		Delegation: DelegationConfig{
			MaxRuntime:   Duration{timing.MaxRuntime},
			Grace:        Duration{timing.Grace},
			PollInterval: Duration{timing.PollInterval},
			ReadMargin:   Duration{timing.ReadMargin},
		},
		Events: EventsConfig{
			Backend:    "memory",
			BufferSize: events.DefaultConfig().BufferSize,
		},
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
	}
}

// defaultResultsDir picks the results directory under the user config
// root, falling back to the working directory.
func defaultResultsDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "handoff", "results")
	}
	return "results"
}

// StandardPaths returns the configuration file locations in order of
// priority.
func StandardPaths() []string {
	paths := []string{"handoff.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "handoff", "handoff.toml"))
	}
	return paths
}

// Load reads configuration from the first available standard location.
// No file found is not an error; defaults apply.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}
	return Default(), "", nil
}

// LoadFile reads configuration from a specific file. Values absent
// from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.ResultsDir == "" {
		return fmt.Errorf("results_dir is required")
	}
	if c.Delegation.MaxRuntime.Duration <= 0 {
		return fmt.Errorf("delegation.max_runtime must be positive")
	}
	if c.Delegation.Grace.Duration < 0 {
		return fmt.Errorf("delegation.grace cannot be negative")
	}
	if c.Delegation.PollInterval.Duration <= 0 {
		return fmt.Errorf("delegation.poll_interval must be positive")
	}
	switch c.Events.Backend {
	case "memory", "nats":
	default:
		return fmt.Errorf("events.backend must be memory or nats, got %q", c.Events.Backend)
	}
	if c.Events.Backend == "nats" && c.Events.URL == "" {
		return fmt.Errorf("events.url is required for the nats backend")
	}
	return nil
}

// Timing converts the lifecycle section to a delegation config.
func (c *Config) Timing() delegation.Config {
	return delegation.Config{
		MaxRuntime:   c.Delegation.MaxRuntime.Duration,
		Grace:        c.Delegation.Grace.Duration,
		PollInterval: c.Delegation.PollInterval.Duration,
		ReadMargin:   c.Delegation.ReadMargin.Duration,
	}
}

// AnthropicAPIKey returns the API key, preferring the environment.
func (c *Config) AnthropicAPIKey() string {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key
	}
	return c.Anthropic.APIKey
}
