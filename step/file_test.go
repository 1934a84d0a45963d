package step

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/storage"
	"github.com/kbukum/pipeflow/storage/local"
)

func newFileHandler(t *testing.T, mode string, maxSize int64) (*FileHandler, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := local.NewStorage(dir)
	if err != nil {
		t.Fatalf("local.NewStorage: %v", err)
	}
	return NewFileHandler(store, mode, maxSize), dir
}

func fileStep(op, path, content string) *pipeline.StepDefinition {
	return &pipeline.StepDefinition{ID: "f", Type: pipeline.TypeFile,
		Config: &pipeline.FileConfig{Operation: op, Path: path, Content: content}}
}

func runFile(t *testing.T, h *FileHandler, def *pipeline.StepDefinition) map[string]any {
	t.Helper()
	req := newRequest(def, newScope(t, map[string]any{"name": "report"}, nil))
	if err := h.Preflight(req); err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	res, err := h.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute(%s): %v", def.Config.(*pipeline.FileConfig).Operation, err)
	}
	return res.Output.(map[string]any)
}

func TestFileHandler_Lifecycle(t *testing.T) {
	h, dir := newFileHandler(t, storage.ScopeExecution, 0)

	runFile(t, h, fileStep("write", "out/{{.input.name}}.txt", "hello"))
	runFile(t, h, fileStep("append", "out/report.txt", " world"))

	if _, err := os.Stat(filepath.Join(dir, "executions", "exec-1", "out", "report.txt")); err != nil {
		t.Fatalf("file not written inside the execution scope: %v", err)
	}

	out := runFile(t, h, fileStep("read", "out/report.txt", ""))
	if out["content"] != "hello world" || out["path"] != "out/report.txt" {
		t.Errorf("read output = %v", out)
	}

	out = runFile(t, h, fileStep("list", "", ""))
	files := out["files"].([]any)
	if len(files) != 1 || files[0].(map[string]any)["path"] != "out/report.txt" {
		t.Errorf("list output = %v", files)
	}

	runFile(t, h, fileStep("delete", "out/report.txt", ""))
	_, err := h.Execute(context.Background(), newRequest(fileStep("read", "out/report.txt", ""), newScope(t, nil, nil)))
	if errors.CodeOf(err) != errors.ErrCodeNotFound {
		t.Errorf("read after delete: %v", err)
	}
}

func TestFileHandler_RejectsTraversal(t *testing.T) {
	h, _ := newFileHandler(t, storage.ScopeExecution, 0)
	for _, p := range []string{"../other/secret", "/etc/passwd", "a/../../b", "{{.input.evil}}"} {
		t.Run(p, func(t *testing.T) {
			req := newRequest(fileStep("read", p, ""), newScope(t, map[string]any{"evil": "../../x"}, nil))
			err := h.Preflight(req)
			if errors.KindOf(err) != errors.KindValidation {
				t.Fatalf("Preflight kind = %s, want validation (err=%v)", errors.KindOf(err), err)
			}
			if errors.IsRetryable(err) {
				t.Error("traversal must not be retryable")
			}
		})
	}
}

func TestFileHandler_ReadLimit(t *testing.T) {
	h, _ := newFileHandler(t, storage.ScopeShared, 4)
	runFile(t, h, fileStep("write", "big.txt", "0123456789"))

	_, err := h.Execute(context.Background(), newRequest(fileStep("read", "big.txt", ""), newScope(t, nil, nil)))
	if errors.KindOf(err) != errors.KindValidation {
		t.Errorf("kind = %s, want validation", errors.KindOf(err))
	}
}

func TestFileHandler_EmptyPath(t *testing.T) {
	h, _ := newFileHandler(t, storage.ScopeExecution, 0)
	req := newRequest(fileStep("write", "{{.input.missing}}", "x"), newScope(t, nil, nil))
	if err := h.Preflight(req); errors.KindOf(err) != errors.KindValidation {
		t.Errorf("Preflight = %v, want validation error", err)
	}
}

func TestFileHandler_StepScope(t *testing.T) {
	h, dir := newFileHandler(t, storage.ScopePipeline, 0)

	def := fileStep("write", "notes.txt", "x")
	def.Config.(*pipeline.FileConfig).Scope = storage.ScopeExecution
	if err := h.Check(def); err != nil {
		t.Fatalf("Check: %v", err)
	}
	runFile(t, h, def)
	if _, err := os.Stat(filepath.Join(dir, "executions", "exec-1", "notes.txt")); err != nil {
		t.Errorf("narrowed scope not used: %v", err)
	}

	wide := fileStep("read", "notes.txt", "")
	wide.Config.(*pipeline.FileConfig).Scope = storage.ScopeShared
	if err := h.Check(wide); errors.KindOf(err) != errors.KindDefinition {
		t.Errorf("Check(shared under pipeline) = %v, want definition error", err)
	}
	if err := h.Preflight(newRequest(wide, newScope(t, nil, nil))); errors.KindOf(err) != errors.KindValidation {
		t.Errorf("Preflight(shared under pipeline) = %v, want validation error", err)
	}
}
