package execution

import (
	"fmt"
	"time"
)

// Config is the engine section of the application config.
type Config struct {
	// MaxConcurrency bounds how many steps of one wave run at once.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	// DefaultTimeout applies to every attempt of a step without a timeout.
	DefaultTimeout time.Duration `yaml:"default_timeout" mapstructure:"default_timeout"`
	Retry          RetryConfig   `yaml:"retry" mapstructure:"retry"`
	// PipelinesDir holds YAML or JSON definitions served by Submit.
	PipelinesDir string `yaml:"pipelines_dir" mapstructure:"pipelines_dir"`
	// TrackerFlushTimeout bounds how long finalization waits for pending
	// tracker writes.
	TrackerFlushTimeout time.Duration `yaml:"tracker_flush_timeout" mapstructure:"tracker_flush_timeout"`
}

// RetryConfig holds the retry defaults steps fall back to.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	// Exponential defaults to true.
	Exponential *bool `yaml:"exponential" mapstructure:"exponential"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 60 * time.Second
	}
	if c.TrackerFlushTimeout == 0 {
		c.TrackerFlushTimeout = 5 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 500 * time.Millisecond
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}
	if c.Retry.Exponential == nil {
		exp := true
		c.Retry.Exponential = &exp
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("engine.max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("engine.default_timeout must be positive")
	}
	if c.TrackerFlushTimeout <= 0 {
		return fmt.Errorf("engine.tracker_flush_timeout must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("engine.retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("engine.retry delays must not be negative")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("engine.retry.max_delay must not be below base_delay")
	}
	return nil
}
