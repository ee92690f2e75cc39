package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultBucket is used when no bucket is configured
const DefaultBucket = "cvat-datasets"

// MinIO stores objects in an S3 compatible bucket
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the endpoint in cfg. No request is made until the
// first Put or Get.
func NewMinIO(cfg Config) (*MinIO, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required for the minio backend")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &MinIO{client: client, bucket: bucket}, nil
}

// Bucket returns the bucket objects are stored in
func (m *MinIO) Bucket() string {
	return m.bucket
}

// Put uploads localPath, creating the bucket when needed
func (m *MinIO) Put(ctx context.Context, localPath, key, contentType string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	_, err = m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Get downloads key to localPath
func (m *MinIO) Get(ctx context.Context, key, localPath string) error {
	err := m.client.FGetObject(ctx, m.bucket, key, localPath, minio.GetObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return err
	}
	return nil
}
