// Package testutil provides shared test utilities and fixtures.
//
// This package centralises frame fixtures and assertion helpers used by the
// hub, image and telemetry tests.
package testutil

import (
	"image"
	"image/color"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewGradientFrame returns a width x height RGBA frame whose pixels encode
// their own coordinates, so any copy or aliasing mistake shows up as a
// pixel mismatch.
func NewGradientFrame(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 0xff})
		}
	}
	return img
}

// NewSolidGray returns a width x height grayscale image filled with v, the
// shape used for lane masks.
func NewSolidGray(width, height int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// Scribble overwrites the first pixel of img in place. It is used to prove
// that a stored copy does not alias the caller's buffer.
func Scribble(img image.Image) {
	switch m := img.(type) {
	case *image.RGBA:
		b := m.Bounds()
		m.SetRGBA(b.Min.X, b.Min.Y, color.RGBA{R: 0xde, G: 0xad, B: 0xbe, A: 0xef})
	case *image.Gray:
		b := m.Bounds()
		m.SetGray(b.Min.X, b.Min.Y, color.Gray{Y: 0x5a})
	}
}
