// Package storage provides read access to input files on the local filesystem
// or in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrDownloadFailed = errors.New("download failed")
	ErrInvalidPath    = errors.New("invalid object path")
)

// ObjectStorage abstracts where an input file lives.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Open returns a reader over the object's bytes. The caller closes it.
	// Returns ErrObjectNotFound if the object does not exist.
	Open(ctx context.Context, objectPath string) (io.ReadCloser, error)

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)
}

const s3Scheme = "s3://"

// IsS3URI reports whether path is an s3://bucket/key URI.
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, s3Scheme)
}

// ParseS3URI splits s3://bucket/key into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", fmt.Errorf("%w: %s is not an s3:// URI", ErrInvalidPath, uri)
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s must be s3://bucket/key", ErrInvalidPath, uri)
	}
	return bucket, key, nil
}

// ForPath returns the storage able to serve path along with the object path to
// pass to it. s3:// URIs are served from S3; anything else from the local filesystem.
func ForPath(ctx context.Context, path string, cfg S3Config) (ObjectStorage, string, error) {
	if !IsS3URI(path) {
		return NewLocalStorage(""), path, nil
	}
	bucket, key, err := ParseS3URI(path)
	if err != nil {
		return nil, "", err
	}
	s3store, err := NewS3Storage(ctx, bucket, cfg)
	if err != nil {
		return nil, "", err
	}
	return s3store, key, nil
}
