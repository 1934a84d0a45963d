// Package ollama registers the "ollama" dialect for Ollama's native chat API.
package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/llm"
)

// DialectName is the registered name for the Ollama dialect.
const DialectName = "ollama"

func init() {
	llm.RegisterDialect(DialectName, &Dialect{})
}

// Dialect maps universal LLM types to Ollama's /api/chat format.
type Dialect struct{}

var (
	_ llm.Dialect         = (*Dialect)(nil)
	_ llm.ErrorClassifier = (*Dialect)(nil)
)

// Name returns "ollama".
func (*Dialect) Name() string { return DialectName }

// ChatPath returns the chat endpoint.
func (*Dialect) ChatPath() string { return "/api/chat" }

// HealthPath returns the model listing endpoint, which is cheap and always present.
func (*Dialect) HealthPath() string { return "/api/tags" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   any           `json:"format,omitempty"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

// BuildRequest creates a non-streaming Ollama chat request. A "format" entry
// in Extra is passed through for JSON mode.
func (*Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}
	all := req.AllMessages()
	msgs := make([]chatMessage, 0, len(all))
	for _, m := range all {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	out := chatRequest{Model: req.Model, Messages: msgs}
	if req.Temperature != nil || req.MaxTokens > 0 {
		out.Options = &chatOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}
	if f, ok := req.Extra["format"]; ok {
		out.Format = f
	}
	return out, nil
}

// ParseResponse decodes a chat response.
func (*Dialect) ParseResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	return &llm.CompletionResponse{
		Content:      resp.Message.Content,
		Model:        resp.Model,
		FinishReason: resp.DoneReason,
		Usage: llm.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

// ClassifyError recognizes Ollama's "model not found" body, which no amount
// of retrying will fix.
func (*Dialect) ClassifyError(statusCode int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == "" {
		return nil
	}
	if statusCode == 404 && strings.Contains(e.Error, "not found") {
		return errors.NotFound("model", "").WithDetail("reason", e.Error)
	}
	return nil
}
