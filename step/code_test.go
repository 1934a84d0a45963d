package step

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/sandbox"
)

type fakeSandbox struct {
	got sandbox.Request
	res *sandbox.Result
	err error
}

func (f *fakeSandbox) Run(_ context.Context, req sandbox.Request) (*sandbox.Result, error) {
	f.got = req
	return f.res, f.err
}

func codeStep(cfg *pipeline.CodeConfig) *pipeline.StepDefinition {
	return &pipeline.StepDefinition{ID: "run", Type: pipeline.TypeCode, Config: cfg}
}

func TestCodeHandler_Execute(t *testing.T) {
	sb := &fakeSandbox{res: &sandbox.Result{Stdout: `{"sum": 3}` + "\n", ExitCode: 0, Duration: 20 * time.Millisecond}}
	def := codeStep(&pipeline.CodeConfig{
		Language:      "python",
		Source:        "print({'sum': 3})",
		MemoryLimitMB: 64,
		Env:           map[string]string{"GREETING": "hi {{.input.name}}"},
	})
	req := newRequest(def, newScope(t, map[string]any{"name": "bob"}, nil))
	req.Timeout = 5 * time.Second

	res, err := NewCodeHandler(sb, "python").Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if sb.got.Timeout != 5*time.Second || sb.got.MemoryLimitMB != 64 || sb.got.Language != "python" {
		t.Errorf("sandbox request = %+v", sb.got)
	}
	if sb.got.Env["GREETING"] != "hi bob" {
		t.Errorf("env = %v", sb.got.Env)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(sb.got.Env[EnvContext]), &data); err != nil {
		t.Fatalf("context env: %v", err)
	}
	if data["input"].(map[string]any)["name"] != "bob" {
		t.Errorf("context env = %v", data)
	}

	out := res.Output.(map[string]any)
	if out["exit_code"] != 0 || out["duration_ms"] != int64(20) {
		t.Errorf("output = %v", out)
	}
	if result := out["result"].(map[string]any); result["sum"] != float64(3) {
		t.Errorf("result = %v", out["result"])
	}
}

func TestCodeHandler_Failures(t *testing.T) {
	tests := []struct {
		name string
		res  *sandbox.Result
		err  error
		kind errors.Kind
	}{
		{"non-zero exit", &sandbox.Result{ExitCode: 2, Stderr: "boom"}, errors.HandlerFatal("program exited with code 2"), errors.KindFatal},
		{"timeout", nil, errors.Timeout("code execution"), errors.KindTimeout},
		{"foreign error", nil, context.DeadlineExceeded, errors.KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := &fakeSandbox{res: tt.res, err: tt.err}
			_, err := NewCodeHandler(sb).Execute(context.Background(),
				newRequest(codeStep(&pipeline.CodeConfig{Language: "shell", Source: "exit 2"}), newScope(t, nil, nil)))
			if kind := errors.KindOf(err); kind != tt.kind {
				t.Errorf("kind = %s, want %s (err=%v)", kind, tt.kind, err)
			}
		})
	}
}

func TestCodeHandler_Check(t *testing.T) {
	h := NewCodeHandler(&fakeSandbox{}, "python", "shell")
	if err := h.Check(codeStep(&pipeline.CodeConfig{Language: "cobol", Source: "x"})); errors.KindOf(err) != errors.KindDefinition {
		t.Errorf("unsupported language: got %v", err)
	}
	if err := h.Check(codeStep(&pipeline.CodeConfig{Language: "shell", Source: "echo {{"})); err != nil {
		t.Errorf("source must not be parsed as a template: %v", err)
	}
	if err := NewCodeHandler(&fakeSandbox{}).Check(codeStep(&pipeline.CodeConfig{Language: "cobol", Source: "x"})); err != nil {
		t.Errorf("no language list should accept any language: %v", err)
	}
}
