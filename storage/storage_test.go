package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/logger"
)

// memStorage is a map-backed Storage without Append support.
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{files: map[string][]byte{}} }

func (m *memStorage) Upload(_ context.Context, p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = data
	return nil
}

func (m *memStorage) Download(_ context.Context, p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[p]
	if !ok {
		return nil, errors.NotFound("file", p)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	return nil
}

func (m *memStorage) Exists(_ context.Context, p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[p]
	return ok, nil
}

func (m *memStorage) List(_ context.Context, prefix string) ([]FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FileInfo
	for p, data := range m.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, FileInfo{Path: p, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func TestScopedPath(t *testing.T) {
	tests := []struct {
		scope, path string
		want        string
		wantErr     bool
	}{
		{"executions/e1", "out.txt", "executions/e1/out.txt", false},
		{"executions/e1", "a/b/../c.txt", "executions/e1/a/c.txt", false},
		{"executions/e1", "./x", "executions/e1/x", false},
		{"executions/e1", "", "executions/e1", false},
		{"executions/e1", ".", "executions/e1", false},
		{"", "notes.md", "notes.md", false},
		{"executions/e1", "../e2/secret", "", true},
		{"executions/e1", "a/../../b", "", true},
		{"executions/e1", "..", "", true},
		{"executions/e1", "/etc/passwd", "", true},
		{"executions/e1", `\windows\system32`, "", true},
		{"executions/e1", `..\..\boot.ini`, "", true},
		{"executions/e1", "C:secret", "", true},
		{"executions/e1", "a\x00b", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ScopedPath(tt.scope, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ScopedPath(%q) = %q, want error", tt.path, got)
				}
				if errors.KindOf(err) != errors.KindValidation {
					t.Errorf("kind = %s, want validation", errors.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ScopedPath(%q, %q) = %q, want %q", tt.scope, tt.path, got, tt.want)
			}
		})
	}
}

func TestScopeFor(t *testing.T) {
	if got := ScopeFor(ScopeExecution, "p", "e"); got != "executions/e" {
		t.Errorf("execution scope = %q", got)
	}
	if got := ScopeFor("", "p", "e"); got != "executions/e" {
		t.Errorf("default scope = %q", got)
	}
	if got := ScopeFor(ScopePipeline, "p", "e"); got != "pipelines/p" {
		t.Errorf("pipeline scope = %q", got)
	}
	if got := ScopeFor(ScopeShared, "p", "e"); got != "" {
		t.Errorf("shared scope = %q", got)
	}
	if got := Unscope("executions/e", "executions/e/a.txt"); got != "a.txt" {
		t.Errorf("Unscope = %q", got)
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		mode, limit string
		want        bool
	}{
		{ScopeExecution, ScopeShared, true},
		{ScopePipeline, ScopePipeline, true},
		{ScopeExecution, "", true},
		{ScopePipeline, "", false},
		{ScopeShared, ScopePipeline, false},
		{"global", ScopeShared, false},
	}
	for _, tt := range tests {
		if got := Within(tt.mode, tt.limit); got != tt.want {
			t.Errorf("Within(%q, %q) = %v, want %v", tt.mode, tt.limit, got, tt.want)
		}
	}
}

func TestAppendFile_ReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	s := newMemStorage()

	if err := AppendFile(ctx, s, "log.txt", []byte("one\n")); err != nil {
		t.Fatalf("append to missing file: %v", err)
	}
	if err := AppendFile(ctx, s, "log.txt", []byte("two\n")); err != nil {
		t.Fatalf("append: %v", err)
	}
	data, err := ReadFile(ctx, s, "log.txt", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("content = %q", data)
	}
}

func TestReadFile_Limit(t *testing.T) {
	ctx := context.Background()
	s := newMemStorage()
	_ = WriteFile(ctx, s, "big", []byte("0123456789"))

	if _, err := ReadFile(ctx, s, "big", 10); err != nil {
		t.Errorf("exact limit should pass: %v", err)
	}
	_, err := ReadFile(ctx, s, "big", 5)
	if errors.KindOf(err) != errors.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	_, err = ReadFile(ctx, s, "missing", 0)
	if errors.CodeOf(err) != errors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"local defaults", Config{}, false},
		{"s3 ok", Config{Provider: ProviderS3, Bucket: "b"}, false},
		{"s3 no bucket", Config{Provider: ProviderS3}, true},
		{"s3 half credentials", Config{Provider: ProviderS3, Bucket: "b", AccessKey: "k"}, true},
		{"bad scope", Config{Scope: "global"}, true},
		{"bad provider", Config{Provider: "ftp"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnregisteredProvider(t *testing.T) {
	_, err := New(context.Background(), Config{BasePath: t.TempDir()}, nil)
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected unregistered provider error, got %v", err)
	}
}

func TestNew_UsesFactory(t *testing.T) {
	mem := newMemStorage()
	var seen Config
	RegisterFactory(ProviderLocal, func(_ context.Context, cfg Config, _ *logger.Logger) (Storage, error) {
		seen = cfg
		return mem, nil
	})
	defer func() {
		factoriesMu.Lock()
		delete(factories, ProviderLocal)
		factoriesMu.Unlock()
	}()

	got, err := New(context.Background(), Config{}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got != Storage(mem) {
		t.Error("New did not return the factory's storage")
	}
	if seen.BasePath != DefaultBasePath || seen.Scope != ScopeExecution {
		t.Errorf("factory got config without defaults: %+v", seen)
	}
	if names := Providers(); len(names) != 1 || names[0] != ProviderLocal {
		t.Errorf("Providers() = %v", names)
	}

	if _, err := New(context.Background(), Config{Provider: ProviderS3}, nil); err == nil {
		t.Error("expected validation error for s3 without bucket")
	}
}
