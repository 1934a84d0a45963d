package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/pipeflow/errors"
)

const sampleYAML = `
id: triage
name: Ticket triage
owner: support
version: 2
steps:
  - id: normalize
    type: transform
    depends_on: []
    config:
      operation: literal
      value: {x: 1}
  - id: classify
    type: llm_prompt
    timeout: 45s
    retry:
      max_attempts: 3
      base_delay: 200ms
      exponential: true
    config:
      prompt: "Classify {{.input.ticket}}"
      temperature: 0.2
  - id: route
    type: condition
    depends_on: [normalize]
    config:
      expression: "x > 0"
      on_true: [notify]
      on_false: [archive]
  - id: notify
    type: http_api
    depends_on: [normalize]
    best_effort: true
    config:
      method: post
      url: "https://hooks.example.com/{{.input.team}}"
      auth: {type: bearer, token: secret}
  - id: archive
    type: file
    enabled: false
    config:
      operation: write
      path: archive/ticket.txt
      content: "{{.steps.classify.text}}"
`

func mustParse(t *testing.T, src string) *Pipeline {
	t.Helper()
	p, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestParse_YAML(t *testing.T) {
	p := mustParse(t, sampleYAML)
	if p.ID != "triage" || p.Version != 2 || len(p.Steps) != 5 {
		t.Fatalf("unexpected pipeline %+v", p)
	}

	normalize, _ := p.Step("normalize")
	if normalize.DependsOn == nil || len(normalize.DependsOn) != 0 {
		t.Errorf("explicit empty depends_on should decode as empty non-nil, got %#v", normalize.DependsOn)
	}
	classify, _ := p.Step("classify")
	if classify.DependsOn != nil {
		t.Errorf("absent depends_on should stay nil, got %#v", classify.DependsOn)
	}
	if classify.Timeout.Std() != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", classify.Timeout)
	}
	if classify.Retry == nil || classify.Retry.MaxAttempts != 3 || classify.Retry.BaseDelay.Std() != 200*time.Millisecond {
		t.Errorf("unexpected retry policy %+v", classify.Retry)
	}
	llm, ok := classify.Config.(*LLMPromptConfig)
	if !ok || llm.Temperature == nil || *llm.Temperature != 0.2 {
		t.Errorf("unexpected llm config %#v", classify.Config)
	}

	notify, _ := p.Step("notify")
	httpCfg := notify.Config.(*HTTPConfig)
	if httpCfg.Method != "POST" {
		t.Errorf("method should be upper-cased, got %q", httpCfg.Method)
	}
	if !notify.BestEffort {
		t.Error("expected best_effort")
	}

	archive, _ := p.Step("archive")
	if archive.IsEnabled() {
		t.Error("archive should be disabled")
	}
	if err := Validate(p); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParse_JSON(t *testing.T) {
	src := `{"id":"j","steps":[{"id":"a","type":"transform","is_enabled":false,"timeout":5,"config":{"operation":"pick","fields":["x"]}}]}`
	p := mustParse(t, src)
	a := p.Steps[0]
	if a.IsEnabled() {
		t.Error("is_enabled=false should disable the step")
	}
	if a.Timeout.Std() != 5*time.Second {
		t.Errorf("numeric timeout should be seconds, got %v", a.Timeout)
	}
	if cfg := a.Config.(*TransformConfig); cfg.Fields[0] != "x" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestParse_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown type", `{id: p, steps: [{id: a, type: shell, config: {}}]}`, "unknown step type"},
		{"unknown config key", `{id: p, steps: [{id: a, type: code, config: {language: python, source: x, memory: 1}}]}`, "malformed config"},
		{"unknown step key", `{id: p, steps: [{id: a, type: code, retries: 3, config: {}}]}`, "unknown field"},
		{"config not mapping", `{id: p, steps: [{id: a, type: code, config: [1]}]}`, "malformed config"},
		{"bad duration", `{id: p, steps: [{id: a, type: code, timeout: soon, config: {}}]}`, "invalid step"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.KindOf(err) != errors.KindDefinition {
				t.Errorf("expected definition kind, got %s (%v)", errors.KindOf(err), err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing prompt", `{id: p, steps: [{id: a, type: llm_prompt, config: {model: m}}]}`, "invalid config"},
		{"bad method", `{id: p, steps: [{id: a, type: http_api, config: {method: fetch, url: "x"}}]}`, "invalid config"},
		{"file path required", `{id: p, steps: [{id: a, type: file, config: {operation: read}}]}`, "invalid config"},
		{"missing config", `{id: p, steps: [{id: a, type: code}]}`, "invalid config"},
		{"duplicate id", `{id: p, steps: [{id: a, type: transform, config: {operation: literal}}, {id: a, type: transform, config: {operation: literal}}]}`, "duplicate"},
		{"unknown dep", `{id: p, steps: [{id: a, type: transform, depends_on: [z], config: {operation: literal}}]}`, "unknown step"},
		{"self dep", `{id: p, steps: [{id: a, type: transform, depends_on: [a], config: {operation: literal}}]}`, "itself"},
		{"condition self", `{id: p, steps: [{id: c, type: condition, config: {expression: "true", on_true: [c]}}]}`, "itself"},
		{"condition unknown", `{id: p, steps: [{id: c, type: condition, config: {expression: "true", on_false: [q]}}]}`, "unknown step"},
		{"negative attempts", `{id: p, steps: [{id: a, type: transform, retry: {max_attempts: -1}, config: {operation: literal}}]}`, "retry"},
		{"bearer without token", `{id: p, steps: [{id: a, type: http_api, config: {method: GET, url: "x", auth: {type: bearer}}}]}`, "invalid config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := mustParse(t, tc.src)
			err := Validate(p)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.KindOf(err) != errors.KindDefinition {
				t.Errorf("expected definition kind, got %s", errors.KindOf(err))
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestMemoryStore_Versions(t *testing.T) {
	v1 := mustParse(t, `{id: p, version: 1, steps: [{id: a, type: transform, config: {operation: literal}}]}`)
	v2 := mustParse(t, `{id: p, version: 2, steps: [{id: a, type: transform, config: {operation: literal}}]}`)
	store, err := NewMemoryStore(v1, v2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	got, err := store.Get(ctx, "p")
	if err != nil || got.Version != 2 {
		t.Fatalf("expected latest version 2, got %v %v", got, err)
	}
	got, err = store.Get(ctx, "p@1")
	if err != nil || got.Version != 1 {
		t.Fatalf("expected version 1, got %v %v", got, err)
	}
	if _, err := store.Get(ctx, "p@7"); errors.CodeOf(err) != errors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if _, err := store.Get(ctx, "p@x"); errors.CodeOf(err) != errors.ErrCodeInvalidFormat {
		t.Errorf("expected INVALID_FORMAT, got %v", err)
	}
	if err := store.Put(v1); errors.CodeOf(err) != errors.ErrCodeConflict {
		t.Errorf("republishing a version should conflict, got %v", err)
	}
	if refs := store.List(); len(refs) != 2 || refs[0] != "p@1" {
		t.Errorf("unexpected refs %v", refs)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "team")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(path, body string) {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(dir, "first.yaml"), `{id: first, steps: [{id: a, type: transform, config: {operation: literal}}]}`)
	write(filepath.Join(nested, "second.json"), `{"steps":[{"id":"a","type":"transform","config":{"operation":"literal"}}]}`)
	write(filepath.Join(dir, "README.md"), "ignored")

	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	if _, err := store.Get(context.Background(), "second"); err != nil {
		t.Errorf("id should default to the file name: %v", err)
	}
	if _, err := store.Get(context.Background(), "first"); err != nil {
		t.Errorf("expected first: %v", err)
	}
}
