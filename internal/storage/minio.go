package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioDisk implements Disk on a MinIO (or any S3-compatible) bucket.
type MinioDisk struct {
	client *minio.Client
	bucket string
}

// NewMinioDisk creates a MinIO client, ensures the bucket exists, and returns
// a ready-to-use MinioDisk.
func NewMinioDisk(ctx context.Context, endpoint, accessKey, secretKey, bucket, region string, useSSL bool) (*MinioDisk, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Info().Str("bucket", bucket).Msg("storage: created bucket")
	}

	return &MinioDisk{client: client, bucket: bucket}, nil
}

// Name implements Disk.
func (s *MinioDisk) Name() string { return "s3" }

// Bucket returns the bucket objects are written to.
func (s *MinioDisk) Bucket() string { return s.bucket }

// Exists implements Disk.
func (s *MinioDisk) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat object %q: %w", path, err)
}

// Delete implements Disk. S3 deletes are idempotent, so a missing key succeeds.
func (s *MinioDisk) Delete(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", path, err)
	}
	return nil
}

// Store streams r to the bucket under path. size must be the exact byte count,
// or -1 when unknown (MinIO then buffers into multipart chunks).
func (s *MinioDisk) Store(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", path, err)
	}
	return path, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}
