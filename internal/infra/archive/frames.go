package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"
)

// FrameArchiver stores captured samples as numbered PNG files in a zip.
type FrameArchiver struct{}

func NewFrameArchiver() *FrameArchiver {
	return &FrameArchiver{}
}

func (a *FrameArchiver) ArchiveFrames(ctx context.Context, frames []image.Image, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	for i, frame := range frames {
		select {
		case <-ctx.Done():
			zipWriter.Close()
			return ctx.Err()
		default:
		}

		if err := addFrameToZip(zipWriter, fmt.Sprintf("frame_%04d.png", i+1), frame); err != nil {
			zipWriter.Close()
			return fmt.Errorf("add frame %d to zip: %w", i+1, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

func addFrameToZip(zw *zip.Writer, name string, frame image.Image) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	return png.Encode(writer, frame)
}
