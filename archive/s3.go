package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the slice of the S3 client used by S3Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies generated files to a bucket.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	region string
	prefix string
}

// NewS3Uploader wraps an existing client.
func NewS3Uploader(client PutObjectAPI, bucket, region, prefix string) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewS3UploaderFromEnv builds a client from the default AWS credential
// chain for region.
func NewS3UploaderFromEnv(ctx context.Context, bucket, region, prefix string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: loading aws config: %w", err)
	}
	return NewS3Uploader(s3.NewFromConfig(cfg), bucket, region, prefix), nil
}

// Upload stores data under key (below the configured prefix) and returns
// the object URL.
func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if u.prefix != "" {
		key = path.Join(u.prefix, key)
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("archive: uploading %s: %w", key, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key), nil
}
