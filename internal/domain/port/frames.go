package port

import (
	"context"
	"errors"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/sampler"
)

// ErrStopDecoding may be returned by a FrameFunc to end decoding early
// without error.
var ErrStopDecoding = errors.New("stop decoding")

// ErrUnsupportedVideo marks inputs no retry can fix.
var ErrUnsupportedVideo = errors.New("unsupported video")

// VideoInfo describes the first video stream of a file.
type VideoInfo struct {
	Width      int
	Height     int
	Duration   float64
	FrameCount int
}

// FrameFunc receives frames in presentation order, one at a time. The frame
// image is only valid until FrameFunc returns.
type FrameFunc func(sampler.Frame) error

type FrameSource interface {
	Decode(ctx context.Context, videoPath string, fn FrameFunc) (*VideoInfo, error)
}
