package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes reports under a directory on disk.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir when missing.
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating output directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the output directory
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes r to dir/key. Keys may not escape the output directory.
func (s *LocalStore) Save(ctx context.Context, key, contentType string, r io.Reader, size int64) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return Object{}, fmt.Errorf("invalid report key %q", key)
	}

	dest := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, fmt.Errorf("failed creating directory for %s: %w", dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".report-*")
	if err != nil {
		return Object{}, fmt.Errorf("failed creating temp file for %s: %w", dest, err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("failed writing %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Object{}, fmt.Errorf("failed moving report to %s: %w", dest, err)
	}

	return Object{Key: key, Location: dest, Size: written, ContentType: contentType}, nil
}

var _ ReportStore = (*LocalStore)(nil)
