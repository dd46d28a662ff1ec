package port

import (
	"context"
	"image"
	"io"
	"time"
)

type ClipEncoder interface {
	Encode(ctx context.Context, w io.Writer, frames []image.Image, delay time.Duration) error
}

// FrameArchiver writes captured frames as a zip of still images.
type FrameArchiver interface {
	ArchiveFrames(ctx context.Context, frames []image.Image, outputPath string) error
}
