package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Provider resolves object keys to public URLs.
type Provider interface {
	URL(key string) string
}

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL replaces the endpoint in generated URLs, e.g. behind a CDN.
	PublicURL string
}

// MinioProvider serves pictures from a MinIO bucket.
type MinioProvider struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewMinioProvider(opts MinioOptions) (*MinioProvider, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioProvider{client: client, bucket: opts.Bucket, baseURL: baseURL(opts)}, nil
}

func baseURL(opts MinioOptions) string {
	if opts.PublicURL != "" {
		return strings.TrimRight(opts.PublicURL, "/")
	}
	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + opts.Endpoint
}

// EnsureBucket creates the bucket on first start.
func (p *MinioProvider) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (p *MinioProvider) URL(key string) string {
	return objectURL(p.baseURL, p.bucket, key)
}

// LocalProvider serves pictures from a static file server.
type LocalProvider struct {
	BaseURL string
}

func (p LocalProvider) URL(key string) string {
	return strings.TrimRight(p.BaseURL, "/") + "/" + escapeKey(key)
}

func objectURL(base, bucket, key string) string {
	return base + "/" + bucket + "/" + escapeKey(key)
}

// escapeKey escapes each path segment and keeps the separators.
func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
