package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const TagS3 = "s3"

// S3Config holds S3-compatible object storage configuration.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store keeps uploads in an S3-compatible bucket (MinIO, AWS S3).
// It is safe for concurrent use by multiple goroutines.
type S3Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewS3Store validates connectivity and ensures the bucket exists,
// creating it if missing.
func NewS3Store(cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &S3Store{client: cli, bucket: cfg.Bucket, logger: logger}, nil
}

func (s *S3Store) Tag() string {
	return TagS3
}

// Store uploads the source file under a generated object key. The checksum
// is computed in a first pass over the file so the descriptor carries the
// fingerprint regardless of what the backend reports.
func (s *S3Store) Store(ctx context.Context, sourcePath, originalFilename string) (Descriptor, error) {
	mtype, err := mimetype.DetectFile(sourcePath)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to detect mime type: %w", err)
	}

	checksum, size, err := hashFile(sourcePath)
	if err != nil {
		return Descriptor{}, err
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	key := generatePath(originalFilename)
	_, err = s.client.PutObject(ctx, s.bucket, key, src, size, minio.PutObjectOptions{
		ContentType: mtype.String(),
	})
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Debug("File stored in object storage",
		slog.String("key", key),
		slog.Int64("size_bytes", size),
	)

	return Descriptor{
		Storage:          TagS3,
		Path:             key,
		OriginalFilename: originalFilename,
		MimeType:         mtype.String(),
		SizeBytes:        size,
		ChecksumSHA256:   checksum,
	}, nil
}

// Delete removes an object by key.
func (s *S3Store) Delete(ctx context.Context, storage, path string) error {
	if storage != TagS3 {
		return fmt.Errorf("s3 store cannot delete from backend %q", storage)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	s.logger.Debug("Object deleted from s3 store",
		slog.String("key", path),
	)
	return nil
}

// PresignGet returns a time-limited download URL for a stored object.
func (s *S3Store) PresignGet(ctx context.Context, path string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return u.String(), nil
}

func hashFile(path string) (checksum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	size, err = io.Copy(hasher, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
