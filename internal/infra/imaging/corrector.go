// Package imaging prepares captured frames for a clip: upright rotation,
// centred crop to the preview aspect ratio, front camera mirroring and
// optional down-scaling.
package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

type CorrectorConfig struct {
	// Preview is the target surface; only its aspect ratio matters. An empty
	// rectangle disables cropping.
	Preview     image.Rectangle
	Orientation Orientation
	// Mirror flips frames horizontally, as a front-facing camera preview does.
	Mirror bool
	// MaxWidth down-scales wider frames, keeping the aspect ratio. Zero disables it.
	MaxWidth int
}

type Corrector struct {
	cfg CorrectorConfig
}

func NewCorrector(cfg CorrectorConfig) *Corrector {
	return &Corrector{cfg: cfg}
}

// Apply returns a corrected copy of img. It never modifies img.
func (c *Corrector) Apply(img image.Image) image.Image {
	out := rotate(img, c.cfg.Orientation)

	if !c.cfg.Preview.Empty() {
		rect := CenterCropRect(out.Bounds(), c.cfg.Preview)
		if rect != out.Bounds() {
			out = imaging.Crop(out, rect)
		}
	}

	if c.cfg.Mirror {
		out = imaging.FlipH(out)
	}

	if c.cfg.MaxWidth > 0 && out.Bounds().Dx() > c.cfg.MaxWidth {
		out = imaging.Resize(out, c.cfg.MaxWidth, 0, imaging.Lanczos)
	}

	if out == img {
		return imaging.Clone(img)
	}
	return out
}

func rotate(img image.Image, o Orientation) image.Image {
	switch o {
	case OrientationPortraitUpsideDown:
		return imaging.Rotate180(img)
	case OrientationLandscapeLeft:
		return imaging.Rotate90(img)
	case OrientationLandscapeRight:
		return imaging.Rotate270(img)
	}
	return img
}
