package llm

import (
	"fmt"
	"time"
)

const (
	defaultTimeout = 120 * time.Second
)

// Config holds configuration for creating an LLM client.
// It is provider-agnostic; the Dialect field selects the provider mapping.
type Config struct {
	// Name identifies this client in errors and logs (e.g., "primary-llm").
	Name string `yaml:"name" mapstructure:"name"`

	// Dialect selects the provider mapping ("openai", "ollama").
	// Must match a dialect registered via RegisterDialect.
	Dialect string `yaml:"dialect" mapstructure:"dialect"`

	// BaseURL is the provider's API base URL (e.g., "http://localhost:11434").
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Model is the default model (e.g., "gpt-4o-mini", "qwen2.5:1.5b").
	Model string `yaml:"model" mapstructure:"model"`

	// Temperature is the default sampling temperature.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens is the default maximum tokens for responses. 0 means provider default.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout for HTTP requests. Defaults to 120s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// APIKey is sent as a bearer token when set.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Headers are additional HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// RateLimit caps requests per second to the provider. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Burst is the rate limiter bucket size.
	Burst int `yaml:"burst" mapstructure:"burst"`
}

// ApplyDefaults sets default values for unset config fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Name == "" && c.Dialect != "" {
		c.Name = c.Dialect + "-llm"
	}
	if c.RateLimit > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Dialect == "" {
		return fmt.Errorf("llm.dialect is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("llm.rate_limit must not be negative")
	}
	return nil
}
