package storage

import (
	"context"
	"io"
)

// Object describes a stored report.
type Object struct {
	Key         string
	Location    string
	Size        int64
	ContentType string
}

// ReportStore persists generated report files.
type ReportStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader, size int64) (Object, error)
}
