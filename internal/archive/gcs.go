package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
)

// GCSBackend uploads crops as objects in a Google Cloud Storage bucket.
// Credentials are resolved via application-default credentials.
type GCSBackend struct {
	bucket string
	client *storage.Client
}

// NewGCSBackend creates a GCSBackend.
func NewGCSBackend(bucket string) *GCSBackend {
	client, err := storage.NewClient(context.Background())
	if err != nil {
		log.Error("failed to create GCS client, gcs archival will fail", "error", err)
		return &GCSBackend{bucket: bucket}
	}
	return &GCSBackend{bucket: bucket, client: client}
}

func (b *GCSBackend) Name() string { return "gcs" }

// Upload writes localPath to bucket/key.
func (b *GCSBackend) Upload(ctx context.Context, localPath, key string) error {
	if b.client == nil {
		return fmt.Errorf("gcs backend not initialized (see earlier config error)")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open crop file: %w", err)
	}
	defer f.Close()

	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs upload: close: %w", err)
	}
	return nil
}
