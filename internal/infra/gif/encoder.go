package gif

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	stdgif "image/gif"
	"io"
	"math"
	"time"
)

var ErrNoFrames = errors.New("gif: no frames to encode")

// Encoder writes frames as an infinitely looping animated GIF.
type Encoder struct {
	dither bool
}

func NewEncoder(dither bool) *Encoder {
	return &Encoder{dither: dither}
}

// DelayCentis converts a per-frame delay to GIF hundredths of a second,
// never less than 1.
func DelayCentis(d time.Duration) int {
	c := int(math.Round(float64(d) / float64(10*time.Millisecond)))
	if c < 1 {
		c = 1
	}
	return c
}

func (e *Encoder) Encode(ctx context.Context, w io.Writer, frames []image.Image, delay time.Duration) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}

	anim := &stdgif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     make([]int, 0, len(frames)),
		LoopCount: 0,
	}
	centis := DelayCentis(delay)

	for i, frame := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if frame == nil {
			return fmt.Errorf("frame %d is nil", i)
		}
		anim.Image = append(anim.Image, e.paletted(frame))
		anim.Delay = append(anim.Delay, centis)
	}

	first := anim.Image[0].Bounds()
	anim.Config = image.Config{Width: first.Dx(), Height: first.Dy()}

	if err := stdgif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}

func (e *Encoder) paletted(src image.Image) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
	if e.dither {
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), src, b.Min)
	} else {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}
	return dst
}
