package app

import (
	"fmt"
	"time"

	"github.com/kbukum/pipeflow/config"
	"github.com/kbukum/pipeflow/database"
	"github.com/kbukum/pipeflow/execution"
	"github.com/kbukum/pipeflow/httpclient"
	"github.com/kbukum/pipeflow/kafka"
	"github.com/kbukum/pipeflow/llm"
	"github.com/kbukum/pipeflow/observability"
	"github.com/kbukum/pipeflow/redis"
	"github.com/kbukum/pipeflow/sandbox"
	"github.com/kbukum/pipeflow/server"
	"github.com/kbukum/pipeflow/storage"
)

// Tracker backend names.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendKafka  = "kafka"
)

// Config is the pipeflow process configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Engine        execution.Config     `yaml:"engine" mapstructure:"engine"`
	LLM           llm.Config           `yaml:"llm" mapstructure:"llm"`
	HTTP          httpclient.Config    `yaml:"http" mapstructure:"http"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Sandbox       sandbox.Config       `yaml:"sandbox" mapstructure:"sandbox"`
	Tracker       TrackerConfig        `yaml:"tracker" mapstructure:"tracker"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// TrackerConfig selects the transition tracker backends. Every listed
// backend must acknowledge a transition.
type TrackerConfig struct {
	Backends []string        `yaml:"backends" mapstructure:"backends"`
	SQL      database.Config `yaml:"sql" mapstructure:"sql"`
	Redis    RedisTracker    `yaml:"redis" mapstructure:"redis"`
	Kafka    kafka.Config    `yaml:"kafka" mapstructure:"kafka"`
}

// RedisTracker is the redis backend section.
type RedisTracker struct {
	redis.Config `yaml:",inline" mapstructure:",squash"`
	// TTL expires an execution's keys after its last write. Zero keeps them.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LLMEnabled reports whether an LLM provider is configured. Without one,
// llm_prompt steps are rejected at submission.
func (c *Config) LLMEnabled() bool {
	return c.LLM.Dialect != ""
}

// ApplyDefaults fills unset fields in every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Engine.ApplyDefaults()
	if c.LLMEnabled() {
		c.LLM.ApplyDefaults()
	}
	c.HTTP.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Sandbox.ApplyDefaults()
	c.Tracker.ApplyDefaults()
	c.Server.ApplyDefaults()
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" && c.Version != "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.LLMEnabled() {
		if err := c.LLM.Validate(); err != nil {
			return err
		}
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Sandbox.Validate(); err != nil {
		return err
	}
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// ApplyDefaults defaults the backend list to the in-memory tracker and
// fills the sections of enabled backends.
func (c *TrackerConfig) ApplyDefaults() {
	if len(c.Backends) == 0 {
		c.Backends = []string{BackendMemory}
	}
	if c.Enabled(BackendSQL) {
		c.SQL.ApplyDefaults()
	}
	if c.Enabled(BackendRedis) {
		c.Redis.ApplyDefaults()
	}
	if c.Enabled(BackendKafka) {
		c.Kafka.ApplyDefaults()
	}
}

// Validate checks the backend list and the sections of enabled backends.
func (c *TrackerConfig) Validate() error {
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		switch b {
		case BackendMemory, BackendSQL, BackendRedis, BackendKafka:
		default:
			return fmt.Errorf("tracker.backends: unsupported backend %q", b)
		}
		if seen[b] {
			return fmt.Errorf("tracker.backends: %q listed twice", b)
		}
		seen[b] = true
	}
	if seen[BackendSQL] {
		if err := c.SQL.Validate(); err != nil {
			return fmt.Errorf("tracker.sql: %w", err)
		}
	}
	if seen[BackendRedis] {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("tracker.redis: %w", err)
		}
		if c.Redis.TTL < 0 {
			return fmt.Errorf("tracker.redis.ttl must not be negative")
		}
	}
	if seen[BackendKafka] {
		if err := c.Kafka.Validate(); err != nil {
			return fmt.Errorf("tracker.kafka: %w", err)
		}
	}
	return nil
}

// Enabled reports whether backend is listed.
func (c *TrackerConfig) Enabled(backend string) bool {
	for _, b := range c.Backends {
		if b == backend {
			return true
		}
	}
	return false
}
