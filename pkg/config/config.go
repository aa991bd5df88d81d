// Package config loads and validates the monitor configuration.
//
// Configuration is read once at startup and never mutated afterwards;
// changing it requires a restart.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Notification modes.
const (
	NotifyGmail = "gmail"
	NotifyLog   = "log"
)

// Config is the root configuration for vigil.
type Config struct {
	// Target is the URL probed on every tick.
	Target string `yaml:"target"`

	// Recipients receive down and recovery alerts.
	Recipients []string `yaml:"recipients"`

	// Sender is the identity used by the notification transport.
	Sender string `yaml:"sender"`

	// CheckIntervalSec is the probe cadence in seconds. Default: 600.
	CheckIntervalSec int `yaml:"check_interval"`

	// TimeoutSec is the per-probe timeout in seconds. Must not exceed
	// the check interval. Default: 30.
	TimeoutSec int `yaml:"timeout"`

	// MaxConsecutiveFailures is how many unhealthy probes in a row open
	// an incident. Default: 2.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`

	Notify NotifyConfig `yaml:"notify,omitempty"`
	Log    LogConfig    `yaml:"log,omitempty"`
}

// NotifyConfig configures the notification channel.
type NotifyConfig struct {
	// Mode selects the channel: "gmail" or "log". Default: gmail.
	Mode string `yaml:"mode,omitempty"`

	// TokenFile is the path to the persisted OAuth token JSON.
	// Required in gmail mode.
	TokenFile string `yaml:"token_file,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error. Default: info.
	Format string `yaml:"format,omitempty"` // text or json. Default: text.
	File   string `yaml:"file,omitempty"`   // optional log file, tee'd with stdout
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CheckIntervalSec == 0 {
		c.CheckIntervalSec = 600
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = 30
	}
	if c.MaxConsecutiveFailures == 0 {
		c.MaxConsecutiveFailures = 2
	}
	if c.Notify.Mode == "" {
		c.Notify.Mode = NotifyGmail
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target is required")
	}
	u, err := url.Parse(c.Target)
	if err != nil {
		return fmt.Errorf("target %q: %w", c.Target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target %q: scheme must be http or https", c.Target)
	}
	if u.Host == "" {
		return fmt.Errorf("target %q: missing host", c.Target)
	}

	if len(c.Recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, r := range c.Recipients {
		if !strings.Contains(r, "@") {
			return fmt.Errorf("recipient %q is not an email address", r)
		}
	}
	if c.Sender == "" {
		return fmt.Errorf("sender is required")
	}
	if !strings.Contains(c.Sender, "@") {
		return fmt.Errorf("sender %q is not an email address", c.Sender)
	}

	if c.CheckIntervalSec <= 0 {
		return fmt.Errorf("check_interval must be positive, got %d", c.CheckIntervalSec)
	}
	if c.TimeoutSec <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSec)
	}
	if c.TimeoutSec > c.CheckIntervalSec {
		return fmt.Errorf("timeout (%ds) cannot exceed check_interval (%ds)", c.TimeoutSec, c.CheckIntervalSec)
	}
	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("max_consecutive_failures must be >= 1, got %d", c.MaxConsecutiveFailures)
	}

	switch c.Notify.Mode {
	case NotifyGmail:
		if c.Notify.TokenFile == "" {
			return fmt.Errorf("notify.token_file is required in gmail mode")
		}
	case NotifyLog:
	default:
		return fmt.Errorf("notify.mode %q: must be %q or %q", c.Notify.Mode, NotifyGmail, NotifyLog)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: must be text or json", c.Log.Format)
	}

	return nil
}

// CheckInterval returns the probe cadence as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSec) * time.Second
}

// Timeout returns the per-probe timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}
