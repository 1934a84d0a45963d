package llm

import (
	"encoding/json"
	"strings"

	apperrors "github.com/kbukum/pipeflow/errors"
)

const jsonInstruction = "Respond with a single JSON value only. Do not wrap it in markdown."

// JSONMode asks the provider for a JSON reply. Each dialect reads the Extra
// key it understands: ollama "format", openai "response_format".
func JSONMode(req *CompletionRequest) {
	if req.Extra == nil {
		req.Extra = map[string]any{}
	}
	req.Extra["format"] = "json"
	req.Extra["response_format"] = map[string]any{"type": "json_object"}
	if req.SystemPrompt == "" {
		req.SystemPrompt = jsonInstruction
	} else {
		req.SystemPrompt += "\n\n" + jsonInstruction
	}
}

// ExtractJSON strips markdown fences and surrounding prose from a reply,
// keeping the outermost object or array. Replies without one come back
// trimmed.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.LastIndex(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		return s[start : end+1]
	}
	return s
}

// DecodeJSON decodes the JSON carried by an LLM reply. Replies without valid
// JSON yield an INVALID_FORMAT error, which is not retried.
func DecodeJSON(content string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(ExtractJSON(content)), &v); err != nil {
		return nil, apperrors.InvalidFormat("llm reply", "JSON").WithCause(err)
	}
	return v, nil
}
