package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Sink keeps a copy of every export before the reset runs.
type Sink interface {
	Store(ctx context.Context, name string, data []byte) error
}

// FileSink writes exports into a local directory.
type FileSink struct {
	Dir string
}

// Store implements Sink.
func (s FileSink) Store(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return fmt.Errorf("backup: create %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("backup: write %s: %w", path, err)
	}
	return nil
}

// GCSSink uploads exports to a Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink connects with application default credentials unless opts
// say otherwise (option.WithCredentialsJSON, option.WithCredentialsFile).
func NewGCSSink(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSSink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("backup: gcs bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("backup: gcs client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix}, nil
}

// Store implements Sink.
func (s *GCSSink) Store(ctx context.Context, name string, data []byte) error {
	object := s.prefix + name
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = ContentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close() //nolint:errcheck // already failing
		return fmt.Errorf("backup: upload gs://%s/%s: %w", s.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("backup: upload gs://%s/%s: %w", s.bucket, object, err)
	}
	return nil
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}
