package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Backblaze/blazer/b2"
)

// B2Backend uploads crops as objects in a Backblaze B2 bucket.
type B2Backend struct {
	bucketName string
	keyID      string
	key        string
}

// NewB2Backend creates a B2Backend without contacting B2. Every Upload
// authenticates afresh, since b2.NewClient requires a context.
func NewB2Backend(bucketName, keyID, key string) *B2Backend {
	return &B2Backend{bucketName: bucketName, keyID: keyID, key: key}
}

func (b *B2Backend) Name() string { return "b2" }

// Upload writes localPath to key in the configured bucket.
func (b *B2Backend) Upload(ctx context.Context, localPath, key string) error {
	client, err := b2.NewClient(ctx, b.keyID, b.key)
	if err != nil {
		return fmt.Errorf("b2 client auth: %w", err)
	}
	bucket, err := client.Bucket(ctx, b.bucketName)
	if err != nil {
		return fmt.Errorf("b2 bucket lookup: %w", err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open crop file: %w", err)
	}
	defer f.Close()

	w := bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("b2 upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("b2 upload: close: %w", err)
	}
	return nil
}
