package state

import (
	"reflect"
	"testing"

	"github.com/kbukum/pipeflow/errors"
)

type payload struct {
	Count int    `json:"count"`
	Label string `json:"label"`
}

func TestContext_PutIsAppendOnly(t *testing.T) {
	c, err := New(map[string]any{"name": "ada"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("a", map[string]any{"x": 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if c.Version() != 1 {
		t.Errorf("Version = %d, want 1", c.Version())
	}
	err = c.Put("a", "again")
	if errors.KindOf(err) != errors.KindEngineInvariant {
		t.Errorf("second Put kind = %s, want engine_invariant", errors.KindOf(err))
	}
	if err := c.MarkAbsent("a"); err == nil {
		t.Error("MarkAbsent after Put must fail")
	}
	if err := c.MarkAbsent("b"); err != nil {
		t.Fatalf("MarkAbsent: %v", err)
	}
	if c.Version() != 2 {
		t.Errorf("Version = %d, want 2", c.Version())
	}
}

func TestContext_NormalizesOutputs(t *testing.T) {
	c, _ := New(nil)
	if err := c.Put("a", payload{Count: 3, Label: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("b", map[string]any{"n": 2, "list": []string{"p"}}); err != nil {
		t.Fatal(err)
	}

	snap := c.Snapshot()
	a, _ := snap.Output("a")
	if !reflect.DeepEqual(a, map[string]any{"count": float64(3), "label": "x"}) {
		t.Errorf("a = %#v", a)
	}
	b, _ := snap.Output("b")
	if !reflect.DeepEqual(b, map[string]any{"n": float64(2), "list": []any{"p"}}) {
		t.Errorf("b = %#v", b)
	}

	if err := c.Put("c", make(chan int)); errors.KindOf(err) != errors.KindFatal {
		t.Errorf("unserializable output kind = %s", errors.KindOf(err))
	}
}

func TestSnapshot_IsIsolated(t *testing.T) {
	c, _ := New(map[string]any{"k": "v"})
	out := map[string]any{"x": float64(1)}
	_ = c.Put("a", out)
	out["x"] = float64(99)

	snap := c.Snapshot()
	_ = c.Put("b", "later")

	if _, ok := snap.Output("b"); ok {
		t.Error("snapshot observed a write made after it was taken")
	}
	got, _ := snap.Output("a")
	if got.(map[string]any)["x"] != float64(1) {
		t.Error("caller mutation leaked into the context")
	}
	got.(map[string]any)["x"] = float64(7)
	again, _ := snap.Output("a")
	if again.(map[string]any)["x"] != float64(1) {
		t.Error("reader mutation leaked into the snapshot")
	}
	if snap.Version() != 1 {
		t.Errorf("snapshot version = %d", snap.Version())
	}
}

func TestScope_Lookup(t *testing.T) {
	c, _ := New(map[string]any{"ticket": "broken"})
	_ = c.Put("a", map[string]any{"x": 1, "shared": "from-a"})
	_ = c.Put("b", map[string]any{"y": 2, "shared": "from-b"})
	_ = c.Put("c", map[string]any{"z": 3})
	_ = c.MarkAbsent("d")

	scope := c.Snapshot().Scope([]string{"a", "b", "d"})

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"x", float64(1), true},
		{"y", float64(2), true},
		{"shared", "from-b", true},
		{"z", nil, false},
		{"steps.c.z", float64(3), true},
		{"input.ticket", "broken", true},
		{"deps.x", float64(1), true},
		{"steps.d", nil, false},
	}
	for _, tt := range tests {
		got, ok := scope.Resolve(tt.path)
		if ok != tt.ok || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Resolve(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
	if _, ok := scope.Dependency("d"); ok {
		t.Error("absent dependency must not resolve")
	}
	if !scope.Snapshot().Absent("d") {
		t.Error("d must be marked absent")
	}
}

func TestScope_ResolveEmptyPath(t *testing.T) {
	c, _ := New(nil)
	_ = c.Put("list", []any{"a", "b"})
	got, ok := c.Snapshot().Scope([]string{"list"}).Resolve("")
	if !ok || !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("Resolve(\"\") = %v, %v", got, ok)
	}
}

func TestScope_Render(t *testing.T) {
	c, _ := New(map[string]any{"name": "ada"})
	_ = c.Put("a", map[string]any{"x": 1, "tags": []any{"p", "q"}})
	scope := c.Snapshot().Scope([]string{"a"})

	tests := []struct {
		tmpl string
		want string
	}{
		{"plain text", "plain text"},
		{"Hello {{.input.name}}", "Hello ada"},
		{"x={{.x}} via steps={{.steps.a.x}}", "x=1 via steps=1"},
		{"[{{.missing}}]", "[]"},
		{"{{json .steps.a.tags}}", `["p","q"]`},
		{"{{join \",\" .tags}}", "p,q"},
		{"{{upper .input.name}}", "ADA"},
		{"{{default \"anon\" .input.nick}}", "anon"},
	}
	for _, tt := range tests {
		got, err := scope.Render("t", tt.tmpl)
		if err != nil {
			t.Fatalf("Render(%q): %v", tt.tmpl, err)
		}
		if got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}

	if _, err := scope.Render("bad", "{{.x"); errors.CodeOf(err) != errors.ErrCodeInvalidFormat {
		t.Errorf("parse error code = %s", errors.CodeOf(err))
	}
	if err := Check("bad", "{{if}}"); err == nil {
		t.Error("Check must reject malformed templates")
	}
}

func TestScope_RenderValue(t *testing.T) {
	c, _ := New(map[string]any{"id": "42"})
	scope := c.Snapshot().Scope(nil)
	got, err := scope.RenderValue("body", map[string]any{
		"ref":   "ticket-{{.input.id}}",
		"count": float64(2),
		"list":  []any{"{{.input.id}}"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"ref": "ticket-42", "count": float64(2), "list": []any{"42"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RenderValue = %#v", got)
	}
}
