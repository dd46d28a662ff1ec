package port

import (
	"context"
	"errors"
	"io"
)

// ErrVideoNotFound is returned by DownloadVideo when the object does not exist.
var ErrVideoNotFound = errors.New("video not found")

type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadGif(ctx context.Context, objectKey string, reader io.Reader, size int64) error
	UploadArchive(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
