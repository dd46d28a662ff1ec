package imaging

import (
	"image"
	"math"
)

// CenterCropRect returns the largest rectangle inside source with the aspect
// ratio of preview, centred on the axis that has to be trimmed. The shorter
// side of source is always kept whole.
func CenterCropRect(source, preview image.Rectangle) image.Rectangle {
	if source.Empty() || preview.Empty() {
		return source
	}

	sourceRatio := float64(source.Dx()) / float64(source.Dy())
	previewRatio := float64(preview.Dx()) / float64(preview.Dy())

	if sourceRatio > previewRatio {
		w := int(math.Round(float64(source.Dy()) * previewRatio))
		x := source.Min.X + (source.Dx()-w)/2
		return image.Rect(x, source.Min.Y, x+w, source.Max.Y)
	}

	h := int(math.Round(float64(source.Dx()) / previewRatio))
	y := source.Min.Y + (source.Dy()-h)/2
	return image.Rect(source.Min.X, y, source.Max.X, y+h)
}
