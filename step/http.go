package step

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/httpclient"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/state"
)

// HTTPDoer sends one request. *httpclient.Client implements it.
type HTTPDoer interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// HTTPHandler runs http_api steps. URL, headers, query values, body strings
// and auth secrets are templates over the step's scope.
type HTTPHandler struct {
	client HTTPDoer
}

// NewHTTPHandler creates an HTTPHandler.
func NewHTTPHandler(client HTTPDoer) *HTTPHandler {
	return &HTTPHandler{client: client}
}

func (h *HTTPHandler) Type() pipeline.StepType { return pipeline.TypeHTTPAPI }

// Check parses every template in the request config.
func (h *HTTPHandler) Check(def *pipeline.StepDefinition) error {
	cfg, err := configOf[*pipeline.HTTPConfig](def)
	if err != nil {
		return err
	}
	texts := map[string]string{"url": cfg.URL}
	for k, v := range cfg.Headers {
		texts["headers."+k] = v
	}
	for k, v := range cfg.Query {
		texts["query."+k] = v
	}
	if cfg.Auth != nil {
		texts["auth.token"] = cfg.Auth.Token
		texts["auth.password"] = cfg.Auth.Password
	}
	for name, text := range texts {
		if err := state.Check(name, text); err != nil {
			return definitionError(def, err)
		}
	}
	if err := checkValue("body", cfg.Body); err != nil {
		return definitionError(def, err)
	}
	return nil
}

// Execute sends the request. 5xx responses, timeouts and network errors are
// transient; every 4xx response, 429 included, fails the step.
func (h *HTTPHandler) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg, err := configOf[*pipeline.HTTPConfig](req.Step)
	if err != nil {
		return nil, err
	}
	hreq, err := h.buildRequest(req.Scope, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(ctx, hreq)
	if err != nil {
		return nil, classify(err)
	}

	var body any = string(resp.Body)
	if v, ok := resp.JSON(); ok {
		body = v
	}
	headers := make(map[string]any, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}
	return &Result{Output: map[string]any{
		"status":  resp.StatusCode,
		"headers": headers,
		"body":    body,
	}}, nil
}

func (h *HTTPHandler) buildRequest(scope *state.Scope, cfg *pipeline.HTTPConfig) (httpclient.Request, error) {
	url, err := scope.Render("url", cfg.URL)
	if err != nil {
		return httpclient.Request{}, err
	}
	if strings.TrimSpace(url) == "" {
		return httpclient.Request{}, errors.InvalidInput("url", "rendered to an empty string")
	}
	headers, err := renderStrings(scope, "headers", cfg.Headers)
	if err != nil {
		return httpclient.Request{}, err
	}
	query, err := renderStrings(scope, "query", cfg.Query)
	if err != nil {
		return httpclient.Request{}, err
	}
	body, err := scope.RenderValue("body", cfg.Body)
	if err != nil {
		return httpclient.Request{}, err
	}
	auth, err := renderAuth(scope, cfg.Auth)
	if err != nil {
		return httpclient.Request{}, err
	}
	return httpclient.Request{
		Method:  strings.ToUpper(cfg.Method),
		Path:    url,
		Headers: headers,
		Query:   query,
		Body:    body,
		Auth:    auth,
	}, nil
}

func renderAuth(scope *state.Scope, a *pipeline.HTTPAuth) (*httpclient.AuthConfig, error) {
	if a == nil {
		return nil, nil
	}
	token, err := scope.Render("auth.token", a.Token)
	if err != nil {
		return nil, err
	}
	switch a.Type {
	case "bearer":
		return httpclient.BearerAuth(token), nil
	case "basic":
		password, err := scope.Render("auth.password", a.Password)
		if err != nil {
			return nil, err
		}
		return httpclient.BasicAuth(a.Username, password), nil
	case "api_key":
		if a.Header != "" {
			return httpclient.APIKeyAuthHeader(token, a.Header), nil
		}
		return httpclient.APIKeyAuth(token), nil
	}
	return nil, errors.InvalidInput("auth.type", "must be bearer, basic or api_key")
}

func renderStrings(scope *state.Scope, name string, in map[string]string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		r, err := scope.Render(name+"."+k, v)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

// checkValue parses every string inside v as a template.
func checkValue(name string, v any) error {
	switch t := v.(type) {
	case string:
		return state.Check(name, t)
	case map[string]any:
		for k, e := range t {
			if err := checkValue(name+"."+k, e); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range t {
			if err := checkValue(name, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// classify maps a client error onto the engine taxonomy. Client errors,
// 429 included, are never retried.
func classify(err error) error {
	appErr := httpclient.ToAppError("http_api", err)
	var herr *httpclient.Error
	if stderrors.As(err, &herr) && herr.StatusCode >= 400 && herr.StatusCode < 500 {
		if e, ok := errors.AsAppError(appErr); ok {
			e.Retryable = false
		}
	}
	return appErr
}
