package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/port"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage reads source videos from the upload bucket and writes rendered
// clips, and optional frame archives, to the gif bucket.
type Storage struct {
	client       *miniogo.Client
	uploadBucket string
	gifBucket    string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UploadBucket string
	GifBucket    string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:       client,
		uploadBucket: cfg.UploadBucket,
		gifBucket:    cfg.GifBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploadBucket, s.gifBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) DownloadVideo(ctx context.Context, objectKey string, destPath string) error {
	if err := s.client.FGetObject(ctx, s.uploadBucket, objectKey, destPath, miniogo.GetObjectOptions{}); err != nil {
		if miniogo.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("download video %s: %w", objectKey, port.ErrVideoNotFound)
		}
		return fmt.Errorf("download video %s: %w", objectKey, err)
	}
	return nil
}

// Ping checks that the gif bucket is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.gifBucket); err != nil {
		return fmt.Errorf("minio ping: %w", err)
	}
	return nil
}

func (s *Storage) UploadGif(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	return s.put(ctx, objectKey, reader, size, "image/gif")
}

func (s *Storage) UploadArchive(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	return s.put(ctx, objectKey, reader, size, "application/zip")
}

func (s *Storage) put(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.gifBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectKey, err)
	}
	return nil
}
