package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/entity"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/mediatime"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/port"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/sampler"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/imaging"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/metrics"
	"go.uber.org/zap"
)

// ErrClipTooShort is returned when the stream ended before a single sample
// was captured.
var ErrClipTooShort = errors.New("clip too short: no samples captured")

// ClipRequest is everything needed to turn one video into one clip.
type ClipRequest struct {
	Sampler    sampler.Config
	Script     entity.Script
	Correction imaging.CorrectorConfig
}

// Clip is the outcome of a recording session.
type Clip struct {
	Frames   []image.Image
	Duration mediatime.Time
	// Partial is set when the stream ended before the last time point.
	Partial bool
	Decoded int
	Info    *port.VideoInfo
}

// ClipRenderer drives a sampler from a frame source and encodes the result.
type ClipRenderer struct {
	source  port.FrameSource
	encoder port.ClipEncoder
	logger  *zap.Logger
}

func NewClipRenderer(source port.FrameSource, encoder port.ClipEncoder, logger *zap.Logger) *ClipRenderer {
	return &ClipRenderer{source: source, encoder: encoder, logger: logger}
}

// Render captures a clip from videoPath and writes it to w as a GIF.
func (r *ClipRenderer) Render(ctx context.Context, videoPath string, req ClipRequest, w io.Writer) (*Clip, error) {
	clip, err := r.Capture(ctx, videoPath, req)
	if err != nil {
		return nil, err
	}
	if err := r.encoder.Encode(ctx, w, clip.Frames, req.Sampler.FrameDelay()); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}
	return clip, nil
}

// Capture decodes videoPath through the recording script and returns the
// sampled frames.
func (r *ClipRenderer) Capture(ctx context.Context, videoPath string, req ClipRequest) (*Clip, error) {
	script, err := req.Script.Compile()
	if err != nil {
		return nil, err
	}

	collector := &clipCollector{log: r.logger}
	corrector := imaging.NewCorrector(req.Correction)
	s, err := sampler.New(req.Sampler, collector, sampler.WithTransform(corrector.Apply))
	if err != nil {
		return nil, err
	}

	var first mediatime.NullTime
	decoded := 0
	info, err := r.source.Decode(ctx, videoPath, func(f sampler.Frame) error {
		if collector.done {
			return port.ErrStopDecoding
		}
		decoded++
		if !first.Valid {
			first = mediatime.Some(f.PTS)
		}

		switch script.CueAt(f.PTS.Sub(first.Time)) {
		case entity.CueWait:
			return nil
		case entity.CuePause:
			s.Pause()
		case entity.CueRecord:
			if err := s.Start(); err != nil {
				return err
			}
		}

		if s.OnFrame(f.Image, f.PTS) == sampler.ActionCompleted {
			return port.ErrStopDecoding
		}
		return nil
	})
	metrics.FramesDecodedTotal.Add(float64(decoded))
	if err != nil {
		r.logger.Debug("capture abandoned",
			zap.Int("samples", s.Captured()),
			zap.Stringer("state", s.State()),
			zap.Error(err),
		)
		s.Cancel()
		return nil, fmt.Errorf("decode video: %w", err)
	}

	partial := false
	if !collector.done {
		if err := s.Stop(); err != nil {
			if errors.Is(err, sampler.ErrNotRecording) {
				return nil, ErrClipTooShort
			}
			return nil, err
		}
		partial = true
	}

	r.logger.Debug("clip captured",
		zap.Int("samples", len(collector.frames)),
		zap.Int("decoded", decoded),
		zap.Stringer("duration", collector.total),
		zap.Bool("partial", partial),
	)

	return &Clip{
		Frames:   collector.frames,
		Duration: collector.total,
		Partial:  partial,
		Decoded:  decoded,
		Info:     info,
	}, nil
}

type clipCollector struct {
	log    *zap.Logger
	frames []image.Image
	total  mediatime.Time
	done   bool
}

func (c *clipCollector) SampleCaptured(count int) {
	metrics.SamplesCapturedTotal.Inc()
	c.log.Debug("sample captured", zap.Int("count", count))
}

func (c *clipCollector) SessionComplete(frames []image.Image, total mediatime.Time) {
	c.frames = frames
	c.total = total
	c.done = true
}
