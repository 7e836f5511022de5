package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"objectstorage/internal/storage"
)

// DefaultConfig provides default configuration values
var DefaultConfig = storage.Config{
	Backend:    storage.BackendS3,
	BucketName: "objectstorage-keys",
	Region:     "us-east-1",
	KeyPrefix:  "keys/",
}

// NewClient creates a store on a new S3 client after checking that the
// bucket is reachable.
func NewClient(ctx context.Context, cfg aws.Config, bucket string, opts ...func(*storage.Config)) (*Store, error) {
	client := s3.NewFromConfig(cfg)

	// Verify bucket exists and is accessible
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %s: %w", bucket, err)
	}

	config := DefaultConfig
	config.BucketName = bucket
	config.Region = cfg.Region
	for _, opt := range opts {
		opt(&config)
	}

	return New(client, config), nil
}

// WithKeyPrefix sets the prefix key records are stored under
func WithKeyPrefix(prefix string) func(*storage.Config) {
	return func(c *storage.Config) {
		if prefix != "" {
			c.KeyPrefix = prefix
		}
	}
}
