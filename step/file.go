package step

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/state"
	"github.com/kbukum/pipeflow/storage"
)

// FileHandler runs file steps against a Storage backend. Every path is a
// template confined to the execution's scope directory.
type FileHandler struct {
	store       storage.Storage
	scopeMode   string
	maxFileSize int64
}

// NewFileHandler creates a FileHandler. scopeMode is one of the storage
// Scope* modes; maxFileSize bounds reads when positive.
func NewFileHandler(store storage.Storage, scopeMode string, maxFileSize int64) *FileHandler {
	return &FileHandler{store: store, scopeMode: scopeMode, maxFileSize: maxFileSize}
}

func (h *FileHandler) Type() pipeline.StepType { return pipeline.TypeFile }

// Check parses the path and content templates.
func (h *FileHandler) Check(def *pipeline.StepDefinition) error {
	cfg, err := configOf[*pipeline.FileConfig](def)
	if err != nil {
		return err
	}
	if err := state.Check("path", cfg.Path); err != nil {
		return definitionError(def, err)
	}
	if err := state.Check("content", cfg.Content); err != nil {
		return definitionError(def, err)
	}
	if cfg.Scope != "" && !storage.Within(cfg.Scope, h.scopeMode) {
		return definitionError(def, errors.InvalidInput("scope",
			fmt.Sprintf("%s is wider than the %s scope files are confined to", cfg.Scope, h.mode())))
	}
	return nil
}

func (h *FileHandler) mode() string {
	if h.scopeMode == "" {
		return storage.ScopeExecution
	}
	return h.scopeMode
}

// Preflight resolves the path and rejects anything outside the scope.
func (h *FileHandler) Preflight(req *Request) error {
	_, _, err := h.resolve(req)
	return err
}

func (h *FileHandler) resolve(req *Request) (rel, full string, err error) {
	cfg, err := configOf[*pipeline.FileConfig](req.Step)
	if err != nil {
		return "", "", err
	}
	rel, err = req.Scope.Render("path", cfg.Path)
	if err != nil {
		return "", "", err
	}
	if rel == "" && cfg.Operation != pipeline.FileList {
		return "", "", errors.MissingField("path")
	}
	mode := h.scopeMode
	if cfg.Scope != "" {
		if !storage.Within(cfg.Scope, mode) {
			return "", "", errors.InvalidInput("scope", cfg.Scope+" is wider than the "+h.mode()+" scope")
		}
		mode = cfg.Scope
	}
	scope := storage.ScopeFor(mode, req.PipelineID, req.ExecutionID)
	full, err = storage.ScopedPath(scope, rel)
	if err != nil {
		return "", "", err
	}
	if full == "" && cfg.Operation != pipeline.FileList {
		return "", "", errors.InvalidInput("path", "does not name a file").WithDetail("path", rel)
	}
	return rel, full, nil
}

// Execute performs the operation.
func (h *FileHandler) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg, err := configOf[*pipeline.FileConfig](req.Step)
	if err != nil {
		return nil, err
	}
	rel, full, err := h.resolve(req)
	if err != nil {
		return nil, err
	}

	switch cfg.Operation {
	case pipeline.FileRead:
		data, err := storage.ReadFile(ctx, h.store, full, h.maxFileSize)
		if err != nil {
			return nil, err
		}
		return &Result{Output: map[string]any{"path": rel, "content": string(data), "size": len(data)}}, nil

	case pipeline.FileWrite, pipeline.FileAppend:
		content, err := req.Scope.Render("content", cfg.Content)
		if err != nil {
			return nil, err
		}
		if cfg.Operation == pipeline.FileWrite {
			err = storage.WriteFile(ctx, h.store, full, []byte(content))
		} else {
			err = storage.AppendFile(ctx, h.store, full, []byte(content))
		}
		if err != nil {
			return nil, err
		}
		return &Result{Output: map[string]any{"path": rel, "size": len(content)}}, nil

	case pipeline.FileDelete:
		if err := h.store.Delete(ctx, full); err != nil {
			return nil, err
		}
		return &Result{Output: map[string]any{"path": rel, "deleted": true}}, nil

	case pipeline.FileList:
		scope := storage.ScopeFor(h.scopeMode, req.PipelineID, req.ExecutionID)
		infos, err := h.store.List(ctx, full)
		if err != nil {
			return nil, err
		}
		files := make([]any, 0, len(infos))
		for _, fi := range infos {
			files = append(files, map[string]any{
				"path":          storage.Unscope(scope, fi.Path),
				"size":          fi.Size,
				"content_type":  fi.ContentType,
				"last_modified": fi.LastModified.UTC().Format(time.RFC3339),
			})
		}
		return &Result{Output: map[string]any{"path": rel, "files": files}}, nil
	}
	return nil, errors.InvalidInput("operation", "must be read, write, append, delete or list")
}
