package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/port"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/sampler"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

var ErrDecode = errors.New("ffmpeg decode failed")

// Decoder streams the first video stream of a file as raw RGBA frames, each
// paired with its probed presentation timestamp. Frames are read on a
// separate goroutine and handed to the FrameFunc sequentially.
type Decoder struct {
	prober *Prober
	buffer int
	binary string
	logger *zap.Logger
}

func NewDecoder(prober *Prober, buffer int, logger *zap.Logger) *Decoder {
	if buffer < 1 {
		buffer = 1
	}
	return &Decoder{prober: prober, buffer: buffer, binary: "ffmpeg", logger: logger}
}

// Args returns the ffmpeg arguments used to decode videoPath. Timing is
// passed through so every decoded frame comes out exactly once, and the
// display matrix is ignored; orientation is corrected downstream.
func Args(videoPath string) []string {
	return ffmpeg.Input(videoPath, ffmpeg.KwArgs{"noautorotate": ""}).
		Output("pipe:", ffmpeg.KwArgs{
			"map":     "0:v:0",
			"format":  "rawvideo",
			"pix_fmt": "rgba",
			"vsync":   "passthrough",
		}).
		GlobalArgs("-hide_banner", "-loglevel", "error", "-nostdin").
		GetArgs()
}

func (d *Decoder) Decode(ctx context.Context, videoPath string, fn port.FrameFunc) (*port.VideoInfo, error) {
	probe, err := d.prober.Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	info := probe.Info

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary, Args(videoPath)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrDecode, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrDecode, err)
	}

	frames := make(chan *image.RGBA, d.buffer)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		readErr <- readFrames(ctx, stdout, info.Width, info.Height, frames)
	}()

	count := 0
	var fnErr error
	for img := range frames {
		if fnErr == nil {
			fnErr = fn(sampler.Frame{Image: img, PTS: probe.PTSAt(count)})
			if fnErr != nil {
				cancel()
			}
		}
		recycleFrame(img)
		count++
	}
	rerr := <-readErr
	werr := cmd.Wait()

	switch {
	case errors.Is(fnErr, port.ErrStopDecoding):
		d.logger.Debug("decoding stopped early", zap.Int("frames", count))
		return &info, nil
	case fnErr != nil:
		return nil, fnErr
	case parent.Err() != nil:
		return nil, parent.Err()
	case rerr != nil:
		return nil, fmt.Errorf("%w: read frames: %v", ErrDecode, rerr)
	case werr != nil:
		return nil, fmt.Errorf("%w: %v, output: %s", ErrDecode, werr, strings.TrimSpace(stderr.String()))
	case count == 0:
		return nil, fmt.Errorf("%w: no frames decoded", ErrDecode)
	}

	if count != len(probe.PTS) {
		d.logger.Warn("decoded frame count differs from probe",
			zap.Int("decoded", count),
			zap.Int("probed", len(probe.PTS)),
		)
	}
	d.logger.Info("frames decoded",
		zap.Int("count", count),
		zap.Float64("video_duration", info.Duration),
	)
	return &info, nil
}

func readFrames(ctx context.Context, r io.Reader, w, h int, out chan<- *image.RGBA) error {
	for {
		img := acquireFrame(w, h)
		if _, err := io.ReadFull(r, img.Pix); err != nil {
			recycleFrame(img)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("truncated frame")
			}
			return err
		}
		select {
		case out <- img:
		case <-ctx.Done():
			recycleFrame(img)
			return ctx.Err()
		}
	}
}
