// Package imageutil holds the frame helpers used by the car status hub:
// bounded resizing for the processing pipeline and deep copies.
package imageutil

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ResizeByMaxSize scales img uniformly so that its larger side equals
// maxSize. If maxSize <= 0, or both sides are already below maxSize, img is
// returned as is (not copied). The resized image is always an *image.RGBA.
func ResizeByMaxSize(img image.Image, maxSize int) image.Image {
	if img == nil {
		return nil
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	if (width < maxSize && height < maxSize) || maxSize <= 0 {
		return img
	}

	var ratio float64
	if width > height {
		ratio = float64(maxSize) / float64(width)
	} else {
		ratio = float64(maxSize) / float64(height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, scaledSide(width, ratio), scaledSide(height, ratio)))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func scaledSide(side int, ratio float64) int {
	n := int(math.Round(float64(side) * ratio))
	if n < 1 {
		return 1
	}
	return n
}
