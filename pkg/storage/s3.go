package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Storage implements Storage on Amazon S3 or an S3-compatible service.
// Objects are keyed namespace/fileID/filename.
type S3Storage struct {
	client *minio.Client
	bucket string
}

// NewS3Storage connects to the configured endpoint and creates the bucket
// when it does not exist yet.
func NewS3Storage(ctx context.Context, cfg *Config) (*S3Storage, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("S3 endpoint is required")
	}

	endpoint, secure := cfg.S3Endpoint, cfg.S3UseSSL
	if u, err := url.Parse(cfg.S3Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.S3Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.S3Bucket, err)
		}
	}

	return &S3Storage{client: client, bucket: cfg.S3Bucket}, nil
}

func objectPrefix(namespace string, fileID uuid.UUID) string {
	return path.Join(cleanNamespace(namespace), fileID.String()) + "/"
}

// Upload stores a file in the bucket and returns its metadata
func (s *S3Storage) Upload(ctx context.Context, namespace, filename, contentType string, r io.Reader) (*FileInfo, error) {
	fileID := uuid.New()
	key := objectPrefix(namespace, fileID) + sanitizeFilename(filename)

	info, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-name": filename},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &FileInfo{
		ID:          fileID,
		Namespace:   cleanNamespace(namespace),
		Name:        filename,
		Size:        info.Size,
		ContentType: contentType,
		Path:        key,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Download retrieves a file from the bucket by its ID
func (s *S3Storage) Download(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.GetInfo(ctx, namespace, fileID)
	if err != nil {
		return nil, nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, info.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return obj, info, nil
}

// Delete removes a file from the bucket by its ID
func (s *S3Storage) Delete(ctx context.Context, namespace string, fileID uuid.UUID) error {
	info, err := s.GetInfo(ctx, namespace, fileID)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, info.Path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// List returns all files in a namespace, oldest first
func (s *S3Storage) List(ctx context.Context, namespace string) ([]*FileInfo, error) {
	prefix := cleanNamespace(namespace) + "/"

	var files []*FileInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", obj.Err)
		}
		if info, ok := fileInfoFromKey(namespace, obj); ok {
			files = append(files, info)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// GetInfo returns metadata for a file without downloading
func (s *S3Storage) GetInfo(ctx context.Context, namespace string, fileID uuid.UUID) (*FileInfo, error) {
	opts := minio.ListObjectsOptions{Prefix: objectPrefix(namespace, fileID), Recursive: true, MaxKeys: 1}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			var resp minio.ErrorResponse
			if errors.As(obj.Err, &resp) && resp.Code == "NoSuchKey" {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
			}
			return nil, fmt.Errorf("failed to stat S3 object: %w", obj.Err)
		}
		if info, ok := fileInfoFromKey(namespace, obj); ok {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
}

// fileInfoFromKey parses namespace/fileID/filename object keys.
func fileInfoFromKey(namespace string, obj minio.ObjectInfo) (*FileInfo, bool) {
	rest := strings.TrimPrefix(obj.Key, cleanNamespace(namespace)+"/")
	id, name, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(name, "/") {
		return nil, false
	}
	fileID, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	return &FileInfo{
		ID:          fileID,
		Namespace:   cleanNamespace(namespace),
		Name:        name,
		Size:        obj.Size,
		ContentType: obj.ContentType,
		Path:        obj.Key,
		CreatedAt:   obj.LastModified,
	}, true
}
