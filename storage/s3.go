package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage wraps the S3 client for document upload and presigned reads.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	logger    *slog.Logger
}

// NewS3Storage creates an S3 storage client using the default AWS
// credential chain
func NewS3Storage(ctx context.Context, bucket, region string) (*S3Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	slog.Info("S3 storage initialized", "bucket", bucket, "region", region)
	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		logger:    slog.With("service", "S3Storage"),
	}, nil
}

func (s *S3Storage) Bucket() string {
	return s.bucket
}

// Upload stores an object under the given key
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.logger.Error("Failed to upload object", "error", err, "key", key)
		return fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Info("Object uploaded", "key", key)
	return nil
}

// PresignedGetURL mints a fresh time-limited GET URL for the given key
func (s *S3Storage) PresignedGetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		s.logger.Error("Failed to generate presigned URL", "error", err, "key", key)
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	s.logger.Debug("Generated presigned URL", "key", key, "expires", expires)
	return result.URL, nil
}
