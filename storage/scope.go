package storage

import (
	"path"
	"strings"

	"github.com/kbukum/pipeflow/errors"
)

// Scope modes select how File steps are confined.
const (
	// ScopeExecution gives every execution its own directory.
	ScopeExecution = "execution"
	// ScopePipeline shares one directory between executions of a pipeline.
	ScopePipeline = "pipeline"
	// ScopeShared lets every execution see the whole store.
	ScopeShared = "shared"
)

var scopeWidth = map[string]int{ScopeExecution: 0, ScopePipeline: 1, ScopeShared: 2}

// Within reports whether mode confines at least as tightly as limit. An empty
// or unknown limit means ScopeExecution.
func Within(mode, limit string) bool {
	w, ok := scopeWidth[mode]
	return ok && w <= scopeWidth[limit]
}

// ScopeFor returns the directory a File step may touch.
func ScopeFor(mode, pipelineID, executionID string) string {
	switch mode {
	case ScopeShared:
		return ""
	case ScopePipeline:
		return path.Join("pipelines", pipelineID)
	default:
		return path.Join("executions", executionID)
	}
}

// ScopedPath resolves p inside scope. Absolute paths and paths that climb out
// of the scope are rejected with a validation error; nothing is joined with
// unchecked input.
func ScopedPath(scope, p string) (string, error) {
	if p == "" {
		return scope, nil
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || hasDrive(p) {
		return "", traversal(p, "absolute paths are not allowed")
	}
	if strings.ContainsRune(p, 0) {
		return "", traversal(p, "path contains a NUL byte")
	}
	clean := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", traversal(p, "path escapes the allowed scope")
	}
	if clean == "." {
		return scope, nil
	}
	if scope == "" {
		return clean, nil
	}
	return path.Join(scope, clean), nil
}

// Unscope strips scope from a path produced by ScopedPath.
func Unscope(scope, p string) string {
	if scope == "" {
		return p
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, scope), "/")
}

func hasDrive(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

func traversal(p, reason string) error {
	return errors.InvalidInput("path", reason).WithDetail("path", p)
}
