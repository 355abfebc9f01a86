package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/foxseedlab/minutagen/external/gcp"
	"github.com/foxseedlab/minutagen/internal/storage"
)

type GCSObjectStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSObjectStore(ctx context.Context, credentialsJSON, bucket string) (*GCSObjectStore, error) {
	opts, err := gcp.ClientOptions(credentialsJSON)
	if err != nil {
		return nil, err
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSObjectStore{client: client, bucket: strings.TrimSpace(bucket)}, nil
}

var _ storage.ObjectStore = (*GCSObjectStore)(nil)

func objectURI(bucket, name string) string {
	return "gs://" + bucket + "/" + name
}

func (s *GCSObjectStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", name, err)
	}
	uri := objectURI(s.bucket, name)
	slog.Info("object uploaded", "uri", uri, "bytes", n)
	return uri, nil
}

func (s *GCSObjectStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Bucket(s.bucket).Object(name).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %s: %w", name, err)
	}
	slog.Info("object deleted", "bucket", s.bucket, "name", name)
	return nil
}

func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}
