package redis

import (
	"context"
	"fmt"

	"github.com/kbukum/pipeflow/component"
	"github.com/kbukum/pipeflow/logger"
)

var _ component.Component = (*Component)(nil)

// Component owns the Client behind the redis tracker backend.
type Component struct {
	cfg    Config
	log    *logger.Logger
	client *Client
}

// NewComponent creates the component. The client is opened by Start.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

// Client is nil until Start succeeds.
func (c *Component) Client() *Client { return c.client }

func (c *Component) Name() string { return "redis" }

// Start opens the client and fails unless the server answers a PING.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("redis start: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis start: %w", err)
	}
	c.client = client
	c.log.Info("redis connected", map[string]interface{}{"addr": c.cfg.Addr, "db": c.cfg.DB})
	return nil
}

func (c *Component) Stop(context.Context) error { return c.client.Close() }

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case c.client == nil:
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	case c.client.Ping(ctx) != nil:
		h.Status, h.Message = component.StatusUnhealthy, "ping failed"
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Redis",
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d prefix=%s", c.cfg.Addr, c.cfg.DB, c.cfg.KeyPrefix),
	}
}
