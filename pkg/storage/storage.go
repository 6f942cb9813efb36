// Package storage archives payslip PDFs and exported workbooks on the local
// filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a file does not exist.
var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Namespace   string    `json:"namespace"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for file storage operations. Files are
// grouped by namespace, e.g. "slips" or "exports/2024".
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, namespace, filename, contentType string, r io.Reader) (*FileInfo, error)

	// Download retrieves a file by its ID
	Download(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, namespace string, fileID uuid.UUID) error

	// List returns all files in a namespace
	List(ctx context.Context, namespace string) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without downloading
	GetInfo(ctx context.Context, namespace string, fileID uuid.UUID) (*FileInfo, error)
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeNone  StorageType = "none"
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// Config holds storage configuration
type Config struct {
	Type StorageType

	// Local storage config
	LocalPath string

	// S3 storage config
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string // host[:port] or URL of the S3-compatible service
	S3UseSSL          bool
}

// New creates a new Storage implementation based on configuration. It
// returns nil for StorageTypeNone.
func New(ctx context.Context, cfg *Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, nil
	}
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

// cleanNamespace keeps namespace segments safe to use as a path or key prefix.
func cleanNamespace(ns string) string {
	parts := strings.FieldsFunc(ns, func(r rune) bool { return r == '/' || r == '\\' })
	out := parts[:0]
	for _, p := range parts {
		if p = sanitizeFilename(strings.TrimSpace(p)); p != "" && p != "." && p != "_" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "default"
	}
	return strings.Join(out, "/")
}
