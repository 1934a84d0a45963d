package expr

import (
	"reflect"
	"testing"

	"github.com/kbukum/pipeflow/errors"
)

func TestEvalBool(t *testing.T) {
	vars := MapResolver{
		"x":      float64(1),
		"name":   "alice",
		"flag":   true,
		"empty":  "",
		"items":  []any{"a", "b"},
		"nested": map[string]any{"score": 0.8, "tags": []any{"x"}},
		"null":   nil,
		"steps":  map[string]any{"fetch-1": map[string]any{"status": float64(200)}},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"x > 0", true},
		{"x >= 1", true},
		{"x < 1", false},
		{"x == 1", true},
		{"x != 1", false},
		{"-1 < x", true},
		{`name == "alice"`, true},
		{`name == 'bob'`, false},
		{`name > "aaa"`, true},
		{"flag", true},
		{"!flag", false},
		{"empty", false},
		{"items", true},
		{"items.1 == \"b\"", true},
		{"nested.score > 0.5 && nested.score < 1", true},
		{"nested.missing > 0", false},
		{"nested.missing < 0", false},
		{"nested.missing == null", true},
		{"missing != 1", true},
		{"(x > 5 || flag) && !(name == \"bob\")", true},
		{"x > 5 || name == \"bob\"", false},
		{"steps.fetch-1.status == 200", true},
		{"name > 1", false},
		{"true && !false", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCompile_SyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"x >",
		"(x > 1",
		"x > 1)",
		`name == "open`,
		"x # 1",
		"a..b == 1",
		"x > 1 y",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.CodeOf(err) != errors.ErrCodeInvalidFormat {
				t.Errorf("code = %s, want INVALID_FORMAT", errors.CodeOf(err))
			}
		})
	}
}

func TestIdentifiers(t *testing.T) {
	e := MustCompile(`steps.a.x > 0 && (input.mode == "fast" || !ready)`)
	want := []string{"steps.a.x", "input.mode", "ready"}
	if got := e.Identifiers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Identifiers() = %v, want %v", got, want)
	}
}

func TestEvalValue(t *testing.T) {
	e := MustCompile("x")
	if got := e.Eval(MapResolver{"x": "v"}); got != "v" {
		t.Errorf("Eval = %v", got)
	}
	if got := e.Eval(MapResolver{}); got != nil {
		t.Errorf("absent Eval = %v, want nil", got)
	}
	if e.EvalBool(nil) {
		t.Error("nil resolver must make identifiers absent")
	}
}
