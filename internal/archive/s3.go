package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend uploads crops to an S3-compatible bucket using the AWS SDK's
// multipart-aware manager.Uploader.
type S3Backend struct {
	bucket   string
	region   string
	uploader *manager.Uploader
}

// NewS3Backend creates an S3Backend. Credentials are resolved from the
// standard AWS credential chain (env vars, shared config, instance role).
func NewS3Backend(bucket, region string) *S3Backend {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		log.Error("failed to load AWS config, s3 archival will fail", "error", err)
		return &S3Backend{bucket: bucket, region: region}
	}
	client := s3.NewFromConfig(cfg)
	return &S3Backend{
		bucket:   bucket,
		region:   region,
		uploader: manager.NewUploader(client),
	}
}

func (b *S3Backend) Name() string { return "s3" }

// Upload streams localPath to bucket/key.
func (b *S3Backend) Upload(ctx context.Context, localPath, key string) error {
	if b.uploader == nil {
		return fmt.Errorf("s3 backend not initialized (see earlier config error)")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open crop file: %w", err)
	}
	defer f.Close()

	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}
