// Package local stores File step data on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(_ context.Context, cfg storage.Config, log *logger.Logger) (storage.Storage, error) {
		s, err := NewStorage(cfg.BasePath)
		if err != nil {
			return nil, err
		}
		log.Debug("local storage ready", map[string]interface{}{"base_path": s.basePath})
		return s, nil
	})
}

// Storage implements storage.Storage using the local filesystem.
type Storage struct {
	basePath string
}

var (
	_ storage.Storage  = (*Storage)(nil)
	_ storage.Appender = (*Storage)(nil)
)

// NewStorage creates a new local filesystem storage rooted at basePath.
func NewStorage(basePath string) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Storage{basePath: abs}, nil
}

// resolve maps a relative store path onto the filesystem, refusing anything
// that lands outside basePath, including through symlinked directories.
func (s *Storage) resolve(p string) (string, error) {
	rel, err := storage.ScopedPath("", p)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(rel))
	if err := s.contain(full, p); err != nil {
		return "", err
	}
	if resolved, ok := realPath(full); ok {
		if err := s.contain(resolved, p); err != nil {
			return "", err
		}
	}
	return full, nil
}

// realPath resolves symlinks in the deepest existing ancestor of full.
func realPath(full string) (string, bool) {
	dir, rest := filepath.Dir(full), filepath.Base(full)
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

func (s *Storage) contain(full, p string) error {
	r, err := filepath.Rel(s.basePath, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return errors.InvalidInput("path", "path escapes the storage root").WithDetail("path", p)
	}
	return nil
}

// Upload writes data from reader to a local file.
func (s *Storage) Upload(ctx context.Context, path string, reader io.Reader) error {
	return s.write(ctx, path, reader, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

// Append appends data from reader to a local file, creating it when missing.
func (s *Storage) Append(ctx context.Context, path string, reader io.Reader) error {
	return s.write(ctx, path, reader, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

func (s *Storage) write(ctx context.Context, path string, reader io.Reader, flag int) error {
	if err := ctx.Err(); err != nil {
		return errors.Cancelled("file write").WithCause(err)
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return errors.ExternalServiceError("storage", fmt.Errorf("create directory: %w", err))
	}

	f, err := os.OpenFile(fullPath, flag, 0o640)
	if err != nil {
		return errors.ExternalServiceError("storage", fmt.Errorf("open file: %w", err))
	}
	if _, err := io.Copy(f, reader); err != nil {
		_ = f.Close()
		return errors.ExternalServiceError("storage", fmt.Errorf("write file: %w", err))
	}
	if err := f.Close(); err != nil {
		return errors.ExternalServiceError("storage", fmt.Errorf("close file: %w", err))
	}
	return nil
}

// Download returns a reader for the local file at the given path.
func (s *Storage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("file", path)
		}
		return nil, errors.ExternalServiceError("storage", fmt.Errorf("open file: %w", err))
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		_ = f.Close()
		return nil, errors.InvalidInput("path", "path is a directory").WithDetail("path", path)
	}
	return f, nil
}

// Delete removes a local file. Returns nil if the file does not exist.
func (s *Storage) Delete(_ context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return errors.ExternalServiceError("storage", fmt.Errorf("delete file: %w", err))
	}
	return nil
}

// Exists checks whether a local file exists.
func (s *Storage) Exists(_ context.Context, path string) (bool, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.ExternalServiceError("storage", fmt.Errorf("stat file: %w", err))
	}
	return true, nil
}

// List returns metadata for all files whose relative path starts with prefix.
func (s *Storage) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	rel, err := storage.ScopedPath("", prefix)
	if err != nil {
		return nil, err
	}
	root := s.basePath
	if rel != "" {
		root = filepath.Join(s.basePath, filepath.FromSlash(rel))
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			root = filepath.Dir(root)
		}
	}

	files := []storage.FileInfo{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if rel != "" && !strings.HasPrefix(relPath, rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		ct := mime.TypeByExtension(filepath.Ext(path))
		if ct == "" {
			ct = "application/octet-stream"
		}
		files = append(files, storage.FileInfo{
			Path:         relPath,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ct,
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []storage.FileInfo{}, nil
		}
		return nil, errors.ExternalServiceError("storage", fmt.Errorf("list files: %w", err))
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}
