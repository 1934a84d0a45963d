// Package sandbox defines the code-execution collaborator used by code steps
// and the runtimes that implement it.
package sandbox

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/resilience"
)

// Request is one code execution.
type Request struct {
	Language      string
	Source        string
	Args          []string
	Env           map[string]string
	Timeout       time.Duration
	MemoryLimitMB int
}

// Result is the captured outcome of a run. Runtimes return it alongside an
// error when the program ran but failed, so callers can report its output.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Sandbox runs untrusted source code.
type Sandbox interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Language maps a language name to the interpreter invocation that takes the
// source as its final argument, and the image used by container runtimes.
type Language struct {
	Command []string `yaml:"command" mapstructure:"command"`
	Image   string   `yaml:"image" mapstructure:"image"`
}

// DefaultLanguages are available unless the config overrides them.
func DefaultLanguages() map[string]Language {
	return map[string]Language{
		"python":     {Command: []string{"python3", "-c"}, Image: "python:3.12-alpine"},
		"javascript": {Command: []string{"node", "-e"}, Image: "node:22-alpine"},
		"shell":      {Command: []string{"sh", "-c"}, Image: "alpine:3.20"},
	}
}

// Providers.
const (
	ProviderProcess = "process"
	ProviderDocker  = "docker"
)

// Config is the sandbox section of the application config.
type Config struct {
	Provider      string              `yaml:"provider" mapstructure:"provider"`
	Languages     map[string]Language `yaml:"languages" mapstructure:"languages"`
	MemoryLimitMB int                 `yaml:"memory_limit_mb" mapstructure:"memory_limit_mb"`
	MaxConcurrent int                 `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxWait       time.Duration       `yaml:"max_wait" mapstructure:"max_wait"`
	GracePeriod   time.Duration       `yaml:"grace_period" mapstructure:"grace_period"`
	WorkDir       string              `yaml:"work_dir" mapstructure:"work_dir"`
	DockerHost    string              `yaml:"docker_host" mapstructure:"docker_host"`
	Network       string              `yaml:"network" mapstructure:"network"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderProcess
	}
	langs := DefaultLanguages()
	for name, l := range c.Languages {
		langs[name] = l
	}
	c.Languages = langs
	if c.MemoryLimitMB == 0 {
		c.MemoryLimitMB = 256
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 4
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 2 * time.Second
	}
	if c.Network == "" {
		c.Network = "none"
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderProcess, ProviderDocker:
	default:
		return fmt.Errorf("sandbox.provider must be %q or %q, got %q", ProviderProcess, ProviderDocker, c.Provider)
	}
	for name, l := range c.Languages {
		if len(l.Command) == 0 {
			return fmt.Errorf("sandbox.languages.%s.command is required", name)
		}
		if c.Provider == ProviderDocker && l.Image == "" {
			return fmt.Errorf("sandbox.languages.%s.image is required for the docker provider", name)
		}
	}
	if c.MemoryLimitMB < 0 || c.MaxConcurrent < 0 {
		return fmt.Errorf("sandbox limits must not be negative")
	}
	return nil
}

// Resolve returns the language entry for name, or a validation error listing
// the supported languages.
func Resolve(languages map[string]Language, name string) (Language, error) {
	l, ok := languages[name]
	if !ok {
		names := make([]string, 0, len(languages))
		for n := range languages {
			names = append(names, n)
		}
		sort.Strings(names)
		return Language{}, errors.InvalidInput("language", fmt.Sprintf("unsupported language %q", name)).
			WithDetail("supported", names)
	}
	return l, nil
}

// Argv builds the full command line for req.
func Argv(l Language, req Request) []string {
	argv := make([]string, 0, len(l.Command)+1+len(req.Args))
	argv = append(argv, l.Command...)
	argv = append(argv, req.Source)
	return append(argv, req.Args...)
}

// Failure converts the outcome of a finished program into an error. A
// non-zero exit is fatal for the step; context errors keep their meaning.
func Failure(ctx context.Context, res *Result, runErr error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.Timeout("code execution").WithCause(runErr)
		}
		return errors.Cancelled("code execution").WithCause(runErr)
	}
	if runErr != nil && (res == nil || res.ExitCode == 0) {
		return errors.HandlerFatal("sandbox failed to run the program").WithCause(runErr)
	}
	if res != nil && res.ExitCode != 0 {
		return errors.HandlerFatal(fmt.Sprintf("program exited with code %d", res.ExitCode)).
			WithDetails(map[string]any{"exit_code": res.ExitCode, "stderr": truncate(res.Stderr, 2048)})
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Limited bounds the number of concurrent runs of s.
type Limited struct {
	inner    Sandbox
	bulkhead *resilience.Bulkhead
}

// Limit wraps s in a bulkhead admitting at most max concurrent runs, waiting
// up to maxWait for a slot.
func Limit(s Sandbox, max int, maxWait time.Duration) *Limited {
	return &Limited{
		inner: s,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "sandbox",
			MaxConcurrent: max,
			MaxWait:       maxWait,
		}),
	}
}

// Run implements Sandbox.
func (l *Limited) Run(ctx context.Context, req Request) (*Result, error) {
	var res *Result
	err := l.bulkhead.Execute(ctx, func(ctx context.Context) error {
		var runErr error
		res, runErr = l.inner.Run(ctx, req)
		return runErr
	})
	if stderrors.Is(err, resilience.ErrBulkheadTimeout) {
		return nil, errors.ServiceUnavailable("code sandbox").WithCause(err)
	}
	return res, err
}
