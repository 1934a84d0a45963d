package step

import (
	"context"

	"github.com/kbukum/pipeflow/llm"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/state"
)

// LLMHandler runs llm_prompt steps against a completion backend. Prompt and
// system prompt are templates over the step's scope.
type LLMHandler struct {
	llm llm.Completer
}

// NewLLMHandler creates an LLMHandler.
func NewLLMHandler(c llm.Completer) *LLMHandler {
	return &LLMHandler{llm: c}
}

func (h *LLMHandler) Type() pipeline.StepType { return pipeline.TypeLLMPrompt }

// Check parses both templates.
func (h *LLMHandler) Check(def *pipeline.StepDefinition) error {
	cfg, err := configOf[*pipeline.LLMPromptConfig](def)
	if err != nil {
		return err
	}
	if err := state.Check("prompt", cfg.Prompt); err != nil {
		return definitionError(def, err)
	}
	if err := state.Check("system_prompt", cfg.SystemPrompt); err != nil {
		return definitionError(def, err)
	}
	return nil
}

// Execute renders the prompt and sends it. Provider errors keep the kind the
// client assigned: transient failures retry, content policy refusals do not.
func (h *LLMHandler) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg, err := configOf[*pipeline.LLMPromptConfig](req.Step)
	if err != nil {
		return nil, err
	}
	prompt, err := req.Scope.Render("prompt", cfg.Prompt)
	if err != nil {
		return nil, err
	}
	system, err := req.Scope.Render("system_prompt", cfg.SystemPrompt)
	if err != nil {
		return nil, err
	}

	creq := llm.UserPrompt(system, prompt)
	creq.Model = cfg.Model
	creq.Temperature = cfg.Temperature
	creq.MaxTokens = cfg.MaxTokens
	if cfg.ResponseFormat == "json" {
		llm.JSONMode(&creq)
	}

	resp, err := h.llm.Execute(ctx, creq)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"text":          resp.Content,
		"model":         resp.Model,
		"finish_reason": resp.FinishReason,
		"usage": map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	}
	if cfg.ResponseFormat == "json" {
		v, err := llm.DecodeJSON(resp.Content)
		if err != nil {
			return nil, err
		}
		out["json"] = v
	}
	return &Result{Output: out}, nil
}
