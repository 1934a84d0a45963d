package llm

import (
	"reflect"
	"testing"

	apperrors "github.com/kbukum/pipeflow/errors"
)

var _ Completer = (*Client)(nil)

func TestJSONMode(t *testing.T) {
	req := UserPrompt("Be terse.", "List colors.")
	JSONMode(&req)

	if req.Extra["format"] != "json" {
		t.Errorf("format = %v", req.Extra["format"])
	}
	if rf, _ := req.Extra["response_format"].(map[string]any); rf["type"] != "json_object" {
		t.Errorf("response_format = %v", req.Extra["response_format"])
	}
	if req.SystemPrompt != "Be terse.\n\n"+jsonInstruction {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}

	bare := UserPrompt("", "x")
	JSONMode(&bare)
	if bare.SystemPrompt != jsonInstruction {
		t.Errorf("system prompt = %q", bare.SystemPrompt)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"key": "value"}`, `{"key": "value"}`},
		{"whitespace", "  {\"key\": 1}\n", `{"key": 1}`},
		{"fence", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"prose around", `Here you go: {"key": "value"} Enjoy.`, `{"key": "value"}`},
		{"array", `Result: [1, {"a": 2}]`, `[1, {"a": 2}]`},
		{"no json", "just text", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON("```json\n{\"name\": \"Bob\", \"tags\": [\"a\"]}\n```")
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	want := map[string]any{"name": "Bob", "tags": []any{"a"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeJSON = %v, want %v", got, want)
	}

	_, err = DecodeJSON("no json here")
	if apperrors.KindOf(err) != apperrors.KindValidation {
		t.Errorf("kind = %s, want validation", apperrors.KindOf(err))
	}
}
