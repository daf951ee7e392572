package imageutil

import (
	"image"

	"golang.org/x/image/draw"
)

// Clone returns a deep copy of img that shares no pixel memory with it.
// RGBA, NRGBA, Gray and YCbCr images keep their concrete type and bounds;
// any other image is rendered into a new *image.RGBA with the same bounds.
func Clone(img image.Image) image.Image {
	switch src := img.(type) {
	case nil:
		return nil
	case *image.RGBA:
		if src == nil {
			return nil
		}
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.NRGBA:
		if src == nil {
			return nil
		}
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.Gray:
		if src == nil {
			return nil
		}
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.YCbCr:
		if src == nil {
			return nil
		}
		dst := *src
		dst.Y = append([]uint8(nil), src.Y...)
		dst.Cb = append([]uint8(nil), src.Cb...)
		dst.Cr = append([]uint8(nil), src.Cr...)
		return &dst
	default:
		b := img.Bounds()
		dst := image.NewRGBA(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst
	}
}
