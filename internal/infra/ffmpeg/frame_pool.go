package ffmpeg

import (
	"image"
	"sync"
)

// Decoded frames are large and short-lived: a frame is only referenced while
// the FrameFunc runs, so its pixel buffer goes back to the pool right after.

var framePool sync.Pool // stores *image.RGBA

func acquireFrame(w, h int) *image.RGBA {
	rect := image.Rect(0, 0, w, h)
	needed := w * h * 4
	var img *image.RGBA
	if v := framePool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		return &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: rect}
	}
	img.Pix = img.Pix[:needed]
	img.Stride = w * 4
	img.Rect = rect
	return img
}

func recycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	framePool.Put(img)
}
