package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/pipeflow/component"
	"github.com/kbukum/pipeflow/execution"
	"github.com/kbukum/pipeflow/observability"
	"github.com/kbukum/pipeflow/step"
)

// engineComponent stops the engine with the rest of the process. The engine
// itself is ready once built.
type engineComponent struct {
	engine   *execution.Engine
	handlers *step.Registry
	cfg      execution.Config
}

var (
	_ component.Component   = (*engineComponent)(nil)
	_ component.Describable = (*engineComponent)(nil)
)

func (c *engineComponent) Name() string                   { return "engine" }
func (c *engineComponent) Start(context.Context) error    { return nil }
func (c *engineComponent) Stop(ctx context.Context) error { return c.engine.Close(ctx) }

func (c *engineComponent) Health(context.Context) component.Health {
	running := 0
	for _, x := range c.engine.List() {
		if x.Status == execution.StatusRunning {
			running++
		}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d running", running),
	}
}

func (c *engineComponent) Describe() component.Description {
	types := c.handlers.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return component.Description{
		Name: "Engine",
		Type: "engine",
		Details: fmt.Sprintf("max_concurrency=%d default_timeout=%s handlers=%s",
			c.cfg.MaxConcurrency, c.cfg.DefaultTimeout, strings.Join(names, ",")),
	}
}

// probeComponent reports the health of a collaborator that has no lifecycle
// of its own, such as the docker daemon or an LLM provider. A failed probe
// degrades the process instead of failing it.
type probeComponent struct {
	name    string
	kind    string
	details string
	probe   func(ctx context.Context) error
}

func (c *probeComponent) Name() string                { return c.name }
func (c *probeComponent) Start(context.Context) error { return nil }
func (c *probeComponent) Stop(context.Context) error  { return nil }

func (c *probeComponent) Health(ctx context.Context) component.Health {
	if err := c.probe(ctx); err != nil {
		return component.Health{Name: c.name, Status: component.StatusDegraded, Message: err.Error()}
	}
	return component.Health{Name: c.name, Status: component.StatusHealthy}
}

func (c *probeComponent) Describe() component.Description {
	return component.Description{Type: c.kind, Details: c.details}
}

// telemetryComponent installs the otel providers on Start and flushes them
// on Stop.
type telemetryComponent struct {
	cfg      observability.Config
	shutdown func(context.Context) error
}

func (c *telemetryComponent) Name() string { return "telemetry" }

func (c *telemetryComponent) Start(ctx context.Context) error {
	shutdown, err := observability.Setup(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	c.shutdown = shutdown
	return nil
}

func (c *telemetryComponent) Stop(ctx context.Context) error {
	if c.shutdown == nil {
		return nil
	}
	return c.shutdown(ctx)
}

func (c *telemetryComponent) Health(context.Context) component.Health {
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *telemetryComponent) Describe() component.Description {
	if !c.cfg.Enabled {
		return component.Description{Name: "Telemetry", Type: "otel", Details: "disabled"}
	}
	return component.Description{
		Name:    "Telemetry",
		Type:    "otel",
		Details: fmt.Sprintf("endpoint=%s sample_rate=%.2f", c.cfg.Endpoint, c.cfg.SampleRate),
	}
}
