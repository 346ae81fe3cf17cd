package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ecosort/internal/config"
	"ecosort/internal/logger"
)

// Archiver copies a stored capture to off-site storage.
type Archiver interface {
	Archive(ctx context.Context, localPath string) error
}

// putObjectAPI is the part of the S3 client the archiver needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads captured images to an S3 bucket.
type S3Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
	logger *logger.Logger
}

// NewS3Archiver creates an archiver using the default AWS credential chain.
// It returns nil when no bucket is configured.
func NewS3Archiver(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*S3Archiver, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("S3 archive enabled: s3://%s/%s", cfg.S3Bucket, cfg.S3Prefix)
	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
		logger: logger,
	}, nil
}

// Archive uploads the file at localPath under the configured prefix.
func (a *S3Archiver) Archive(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(a.prefix, filepath.Base(localPath))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	a.logger.Info("Archived %s to s3://%s/%s", filepath.Base(localPath), a.bucket, key)
	return nil
}
