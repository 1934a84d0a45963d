// Package openai registers the "openai" dialect for OpenAI-compatible chat
// completion APIs (OpenAI, Azure OpenAI deployments, vLLM, LM Studio).
package openai

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/llm"
)

// DialectName is the registered name for the OpenAI dialect.
const DialectName = "openai"

// Finish reasons and error codes the provider uses for moderation refusals.
const (
	finishContentFilter = "content_filter"
	codeContentPolicy   = "content_policy_violation"
	codeContentFilter   = "content_filter"
)

func init() {
	llm.RegisterDialect(DialectName, &Dialect{})
}

// Dialect maps universal LLM types to the /v1/chat/completions format.
type Dialect struct{}

var (
	_ llm.Dialect         = (*Dialect)(nil)
	_ llm.ErrorClassifier = (*Dialect)(nil)
)

// Name returns "openai".
func (*Dialect) Name() string { return DialectName }

// ChatPath returns the chat completions endpoint.
func (*Dialect) ChatPath() string { return "/v1/chat/completions" }

// HealthPath returns the model listing endpoint.
func (*Dialect) HealthPath() string { return "/v1/models" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// BuildRequest creates a chat completion request. Extra["response_format"]
// is passed through so prompts can ask for JSON mode.
func (*Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	all := req.AllMessages()
	msgs := make([]message, 0, len(all))
	for _, m := range all {
		msgs = append(msgs, message{Role: m.Role, Content: m.Content})
	}
	out := chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if rf, ok := req.Extra["response_format"].(map[string]any); ok {
		out.ResponseFormat = rf
	}
	return out, nil
}

// ParseResponse decodes the first choice. A choice stopped by the provider's
// content filter is reported as a content policy error.
func (*Dialect) ParseResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == finishContentFilter {
		return nil, errors.ContentPolicy("completion withheld by the provider's content filter").
			WithDetail("finish_reason", choice.FinishReason)
	}
	return &llm.CompletionResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: choice.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ClassifyError turns moderation refusals into content policy errors. Every
// other body falls back to status based classification.
func (*Dialect) ClassifyError(statusCode int, body []byte) error {
	if statusCode != http.StatusBadRequest {
		return nil
	}
	var e errorBody
	if json.Unmarshal(body, &e) != nil {
		return nil
	}
	code, _ := e.Error.Code.(string)
	if code == codeContentPolicy || code == codeContentFilter {
		return errors.ContentPolicy(e.Error.Message).WithDetail("provider_code", code)
	}
	return nil
}
