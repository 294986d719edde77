// Package blob stores synthesized audio durably and hands back playable
// URLs. Objects are immutable once written; callers derive object names
// deterministically so a re-upload of the same phrase is harmless.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store writes audio bytes and returns a publicly playable URL
type Store interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// S3Store implements Store on any S3-compatible endpoint
type S3Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// S3Config carries connection settings for an S3-compatible blob backend
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PublicBaseURL overrides URL construction when objects are served
	// through a CDN or public alias rather than the API endpoint.
	PublicBaseURL string
}

// NewS3Store connects to an S3-compatible blob backend
func NewS3Store(cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to blob endpoint %s: %w", cfg.Endpoint, err)
	}

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}

	return &S3Store{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Put uploads the object and returns its public URL. Phrases are reused
// indefinitely, so objects are marked long-lived cacheable.
func (s *S3Store) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", objectName, err)
	}
	return s.objectURL(objectName), nil
}

func (s *S3Store) objectURL(objectName string) string {
	escaped := url.PathEscape(objectName)
	// PathEscape encodes "/", but object names keep their path shape
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, escaped)
}
