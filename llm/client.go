package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/httpclient"
)

// ErrNoDialect is returned by NewWithDialect when no dialect is given.
var ErrNoDialect = stderrors.New("llm: dialect is required")

// Completer is the narrow completion surface the LLM-Prompt step depends on.
type Completer interface {
	Execute(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Client is a config-driven LLM client that works with any provider via the
// Dialect pattern. Transport concerns (auth, timeout, rate limit) live in the
// underlying httpclient; provider mapping lives in the Dialect.
//
// Client never retries. Errors come back as AppErrors whose kind tells the
// engine's retry manager whether another attempt makes sense.
type Client struct {
	name      string
	http      *httpclient.Client
	dialect   Dialect
	model     string
	temp      float64
	maxTokens int
}

// New creates an LLM client from config using the global dialect registry.
// The config's Dialect field must match a registered dialect name.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialect, err := GetDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	return newClient(dialect, cfg)
}

// NewWithDialect creates an LLM client with an explicit dialect instance.
func NewWithDialect(dialect Dialect, cfg Config) (*Client, error) {
	if dialect == nil {
		return nil, ErrNoDialect
	}
	if cfg.Dialect == "" {
		cfg.Dialect = dialect.Name()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(dialect, cfg)
}

func newClient(dialect Dialect, cfg Config) (*Client, error) {
	httpCfg := httpclient.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		Headers:   cfg.Headers,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}
	if cfg.APIKey != "" {
		httpCfg.Auth = httpclient.BearerAuth(cfg.APIKey)
	}
	client, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, fmt.Errorf("llm: create http client: %w", err)
	}

	return &Client{
		name:      cfg.Name,
		http:      client,
		dialect:   dialect,
		model:     cfg.Model,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Name returns the client name.
func (c *Client) Name() string { return c.name }

// Dialect returns the dialect used by this client.
func (c *Client) Dialect() Dialect { return c.dialect }

// IsAvailable checks if the LLM provider is reachable through the dialect's
// health endpoint. Dialects without one are assumed available.
func (c *Client) IsAvailable(ctx context.Context) bool {
	hp := c.dialect.HealthPath()
	if hp == "" {
		return true
	}
	_, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: hp})
	return err == nil
}

// Execute sends a completion request and returns the full response.
func (c *Client) Execute(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	c.applyDefaults(&req)

	body, err := c.dialect.BuildRequest(req)
	if err != nil {
		return CompletionResponse{}, errors.HandlerFatal("llm: build request").WithCause(err)
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   c.dialect.ChatPath(),
		Body:   body,
	})
	if err != nil {
		return CompletionResponse{}, c.classify(resp, err)
	}

	result, err := c.dialect.ParseResponse(resp.Body)
	if err != nil {
		if errors.IsAppError(err) {
			return CompletionResponse{}, err
		}
		appErr := errors.ExternalServiceError(c.name, err).WithDetail("reason", "malformed response")
		appErr.Retryable = false
		return CompletionResponse{}, appErr
	}
	if result.Model == "" {
		result.Model = req.Model
	}
	return *result, nil
}

func (c *Client) classify(resp *httpclient.Response, err error) error {
	if ec, ok := c.dialect.(ErrorClassifier); ok && resp != nil {
		if classified := ec.ClassifyError(resp.StatusCode, resp.Body); classified != nil {
			return classified
		}
	}
	return httpclient.ToAppError(c.name, err)
}

func (c *Client) applyDefaults(req *CompletionRequest) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.Temperature == nil && c.temp != 0 {
		t := c.temp
		req.Temperature = &t
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}
}
