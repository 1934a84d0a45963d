package step

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/sandbox"
	"github.com/kbukum/pipeflow/state"
)

// EnvContext carries the step's template data, JSON-encoded, into the program.
const EnvContext = "PIPEFLOW_CONTEXT"

// CodeHandler runs code steps in a sandbox. Source is passed through
// unrendered; programs read upstream data from EnvContext.
type CodeHandler struct {
	sandbox   sandbox.Sandbox
	languages map[string]bool
}

// NewCodeHandler creates a CodeHandler. When languages is non-empty, steps
// naming any other language are rejected at submission.
func NewCodeHandler(sb sandbox.Sandbox, languages ...string) *CodeHandler {
	h := &CodeHandler{sandbox: sb}
	if len(languages) > 0 {
		h.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			h.languages[l] = true
		}
	}
	return h
}

func (h *CodeHandler) Type() pipeline.StepType { return pipeline.TypeCode }

// Check rejects unsupported languages and malformed env templates.
func (h *CodeHandler) Check(def *pipeline.StepDefinition) error {
	cfg, err := configOf[*pipeline.CodeConfig](def)
	if err != nil {
		return err
	}
	if h.languages != nil && !h.languages[cfg.Language] {
		supported := make([]string, 0, len(h.languages))
		for l := range h.languages {
			supported = append(supported, l)
		}
		sort.Strings(supported)
		return definitionError(def, errors.InvalidInput("language",
			fmt.Sprintf("unsupported language %q (supported: %s)", cfg.Language, strings.Join(supported, ", "))))
	}
	for k, v := range cfg.Env {
		if err := state.Check("env."+k, v); err != nil {
			return definitionError(def, err)
		}
	}
	return nil
}

// Execute runs the program with the engine's timeout and the step's memory
// limit. A non-zero exit fails the step; stdout that parses as JSON is also
// exposed as "result".
func (h *CodeHandler) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg, err := configOf[*pipeline.CodeConfig](req.Step)
	if err != nil {
		return nil, err
	}
	env, err := renderStrings(req.Scope, "env", cfg.Env)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = make(map[string]string, 1)
	}
	data, err := json.Marshal(req.Scope.Data())
	if err != nil {
		return nil, errors.HandlerFatal("encoding step context failed").WithCause(err)
	}
	env[EnvContext] = string(data)

	res, err := h.sandbox.Run(ctx, sandbox.Request{
		Language:      cfg.Language,
		Source:        cfg.Source,
		Args:          cfg.Args,
		Env:           env,
		Timeout:       req.Timeout,
		MemoryLimitMB: cfg.MemoryLimitMB,
	})
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, sandbox.Failure(ctx, res, err)
	}

	out := map[string]any{
		"stdout":      res.Stdout,
		"stderr":      res.Stderr,
		"exit_code":   res.ExitCode,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if trimmed := strings.TrimSpace(res.Stdout); trimmed != "" {
		var v any
		if json.Unmarshal([]byte(trimmed), &v) == nil {
			out["result"] = v
		}
	}
	return &Result{Output: out}, nil
}
