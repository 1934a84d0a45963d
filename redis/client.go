package redis

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/pipeflow/logger"
)

// Client is a go-redis client bound to a key prefix.
type Client struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger
	closed atomic.Bool
}

// New validates cfg and opens a client. Connections are made lazily; call
// Ping to check the server.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	log.Debug("redis client created", map[string]interface{}{
		"addr":      cfg.Addr,
		"db":        cfg.DB,
		"pool_size": cfg.PoolSize,
	})
	return &Client{rdb: goredis.NewClient(cfg.options()), prefix: cfg.KeyPrefix, log: log}, nil
}

// Ping round-trips a PING.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Key joins parts under the key prefix: Key("seen", id) is "pipeflow:seen:<id>".
func (c *Client) Key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Close is idempotent.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.log.Debug("closing redis connection")
	return c.rdb.Close()
}

// Unwrap exposes the go-redis client for scripts and pub/sub.
func (c *Client) Unwrap() *goredis.Client { return c.rdb }
