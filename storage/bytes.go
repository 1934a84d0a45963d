package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/kbukum/pipeflow/errors"
)

// ReadFile downloads the whole object at path, refusing objects larger than
// limit bytes when limit is positive.
func ReadFile(ctx context.Context, s Storage, path string, limit int64) ([]byte, error) {
	rc, err := s.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck // read-only

	r := io.Reader(rc)
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.ExternalServiceError("storage", fmt.Errorf("read %s: %w", path, err))
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errors.Validation(fmt.Sprintf("file %s exceeds the %d byte limit", path, limit)).
			WithDetail("path", path)
	}
	return data, nil
}

// WriteFile stores data at path.
func WriteFile(ctx context.Context, s Storage, path string, data []byte) error {
	return s.Upload(ctx, path, bytes.NewReader(data))
}

// AppendFile appends data to the object at path, creating it when missing.
func AppendFile(ctx context.Context, s Storage, path string, data []byte) error {
	if a, ok := s.(Appender); ok {
		return a.Append(ctx, path, bytes.NewReader(data))
	}
	existing, err := ReadFile(ctx, s, path, 0)
	if err != nil && errors.CodeOf(err) != errors.ErrCodeNotFound {
		return err
	}
	return s.Upload(ctx, path, io.MultiReader(bytes.NewReader(existing), bytes.NewReader(data)))
}
