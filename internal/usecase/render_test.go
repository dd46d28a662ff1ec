package usecase

import (
	"bytes"
	"context"
	"errors"
	"image/gif"
	"testing"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/entity"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/mediatime"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/sampler"
	gifenc "github.com/fiapx/fiapx-gifclip-service/internal/infra/gif"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func oneSecondAt10() sampler.Config {
	return sampler.Config{MaxDuration: 1.0, FramesPerSecond: 10}
}

func newRenderer(source *fakeSource) *ClipRenderer {
	return NewClipRenderer(source, gifenc.NewEncoder(false), zap.NewNop())
}

func TestCaptureFullClipStopsDecoding(t *testing.T) {
	source := newFakeSource(90)
	clip, err := newRenderer(source).Capture(context.Background(), "in.mp4", ClipRequest{Sampler: oneSecondAt10()})
	require.NoError(t, err)

	assert.Len(t, clip.Frames, 10)
	assert.False(t, clip.Partial)
	assert.Equal(t, mediatime.FromSeconds(0.9), clip.Duration)
	// Time point 0.9 s is frame 27; nothing after it is decoded.
	assert.Equal(t, 28, source.delivered)
	assert.Equal(t, 28, clip.Decoded)
}

func TestCaptureCopiesReusedFrames(t *testing.T) {
	clip, err := newRenderer(newFakeSource(90)).Capture(context.Background(), "in.mp4", ClipRequest{Sampler: oneSecondAt10()})
	require.NoError(t, err)

	first := clip.Frames[0].At(0, 0)
	last := clip.Frames[len(clip.Frames)-1].At(0, 0)
	assert.NotEqual(t, first, last)
}

func TestCaptureAppliesCorrection(t *testing.T) {
	req := ClipRequest{
		Sampler:    oneSecondAt10(),
		Correction: imaging.CorrectorConfig{MaxWidth: 32},
	}
	clip, err := newRenderer(newFakeSource(90)).Capture(context.Background(), "in.mp4", req)
	require.NoError(t, err)

	for _, f := range clip.Frames {
		assert.Equal(t, 32, f.Bounds().Dx())
		assert.Equal(t, 24, f.Bounds().Dy())
	}
}

func TestCapturePauseWindowIsExcised(t *testing.T) {
	req := ClipRequest{
		Sampler: oneSecondAt10(),
		Script:  entity.Script{Pauses: []entity.PauseWindow{{Start: 0.5, End: 1.0}}},
	}
	source := newFakeSource(90)
	clip, err := newRenderer(source).Capture(context.Background(), "in.mp4", req)
	require.NoError(t, err)

	assert.Len(t, clip.Frames, 10)
	assert.False(t, clip.Partial)
	assert.Equal(t, mediatime.FromSeconds(0.9), clip.Duration)
	// The half second pause pushes the last time point 15 frames later.
	assert.Equal(t, 43, source.delivered)
}

func TestCaptureWaitsForStart(t *testing.T) {
	req := ClipRequest{
		Sampler: oneSecondAt10(),
		Script:  entity.Script{StartAt: 1.0},
	}
	source := newFakeSource(90)
	clip, err := newRenderer(source).Capture(context.Background(), "in.mp4", req)
	require.NoError(t, err)

	assert.Len(t, clip.Frames, 10)
	assert.Equal(t, mediatime.FromSeconds(0.9), clip.Duration)
	assert.Equal(t, 58, source.delivered)
}

func TestCapturePartialOnStreamEnd(t *testing.T) {
	clip, err := newRenderer(newFakeSource(15)).Capture(context.Background(), "in.mp4", ClipRequest{Sampler: oneSecondAt10()})
	require.NoError(t, err)

	assert.True(t, clip.Partial)
	assert.Len(t, clip.Frames, 5)
	assert.Equal(t, mediatime.Time(14)*frameStep, clip.Duration)
}

func TestCaptureTooShort(t *testing.T) {
	req := ClipRequest{
		Sampler: oneSecondAt10(),
		Script:  entity.Script{StartAt: 5},
	}
	_, err := newRenderer(newFakeSource(60)).Capture(context.Background(), "in.mp4", req)
	assert.ErrorIs(t, err, ErrClipTooShort)
}

func TestCaptureRejectsInvalidConfig(t *testing.T) {
	_, err := newRenderer(newFakeSource(60)).Capture(context.Background(), "in.mp4",
		ClipRequest{Sampler: sampler.Config{MaxDuration: 0, FramesPerSecond: 10}})
	assert.ErrorIs(t, err, sampler.ErrInvalidConfig)
}

func TestCaptureRejectsInvalidScript(t *testing.T) {
	req := ClipRequest{
		Sampler: oneSecondAt10(),
		Script:  entity.Script{Pauses: []entity.PauseWindow{{Start: 2, End: 1}}},
	}
	_, err := newRenderer(newFakeSource(60)).Capture(context.Background(), "in.mp4", req)
	assert.ErrorIs(t, err, entity.ErrInvalidScript)
}

func TestCaptureWrapsDecodeErrors(t *testing.T) {
	source := newFakeSource(60)
	source.err = errors.New("boom")
	_, err := newRenderer(source).Capture(context.Background(), "in.mp4", ClipRequest{Sampler: oneSecondAt10()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode video")
}

func TestCaptureDropsSessionOnMidStreamError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	source := newFakeSource(60)
	source.err = errors.New("corrupt packet")
	source.failAfter = 12

	r := NewClipRenderer(source, gifenc.NewEncoder(false), zap.New(core))
	clip, err := r.Capture(context.Background(), "in.mp4", ClipRequest{Sampler: oneSecondAt10()})
	assert.Nil(t, clip)
	assert.ErrorIs(t, err, source.err)
	assert.Equal(t, 12, source.delivered)

	entries := logs.FilterMessage("capture abandoned").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(4), fields["samples"])
	assert.Equal(t, "recording", fields["state"])
	assert.Empty(t, logs.FilterMessage("clip captured").All())
}

func TestRenderWritesGif(t *testing.T) {
	var buf bytes.Buffer
	clip, err := newRenderer(newFakeSource(90)).Render(context.Background(), "in.mp4", ClipRequest{Sampler: oneSecondAt10()}, &buf)
	require.NoError(t, err)

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Len(t, g.Image, len(clip.Frames))
	assert.Equal(t, 0, g.LoopCount)
	for _, d := range g.Delay {
		assert.Equal(t, 10, d)
	}
}
