package imageutil

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/carstatus/internal/testutil"
)

func TestClone_RGBA(t *testing.T) {
	t.Parallel()

	src := testutil.NewGradientFrame(8, 6)
	got, ok := Clone(src).(*image.RGBA)
	require.True(t, ok, "RGBA clone must stay *image.RGBA")

	assert.Equal(t, src.Bounds(), got.Bounds())
	assert.Equal(t, src.Pix, got.Pix)

	testutil.Scribble(src)
	assert.NotEqual(t, src.RGBAAt(0, 0), got.RGBAAt(0, 0), "clone shares pixels with source")
}

func TestClone_Gray(t *testing.T) {
	t.Parallel()

	src := testutil.NewSolidGray(5, 5, 10)
	got, ok := Clone(src).(*image.Gray)
	require.True(t, ok)

	got.SetGray(2, 2, color.Gray{Y: 99})
	assert.Equal(t, uint8(10), src.GrayAt(2, 2).Y)
}

func TestClone_NRGBA(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(2, 2, 6, 6))
	src.SetNRGBA(3, 3, color.NRGBA{R: 1, G: 2, B: 3, A: 4})

	got, ok := Clone(src).(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, src.Bounds(), got.Bounds())
	assert.Equal(t, src.NRGBAAt(3, 3), got.NRGBAAt(3, 3))

	got.SetNRGBA(3, 3, color.NRGBA{})
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 4}, src.NRGBAAt(3, 3))
}

func TestClone_YCbCr(t *testing.T) {
	t.Parallel()

	src := image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)
	for i := range src.Y {
		src.Y[i] = 42
	}

	got, ok := Clone(src).(*image.YCbCr)
	require.True(t, ok)
	assert.Equal(t, src.SubsampleRatio, got.SubsampleRatio)

	got.Y[0] = 0
	got.Cb[0] = 7
	assert.Equal(t, uint8(42), src.Y[0])
	assert.Equal(t, uint8(0), src.Cb[0])
}

func TestClone_OtherTypesRenderToRGBA(t *testing.T) {
	t.Parallel()

	bounded := image.NewPaletted(image.Rect(0, 0, 3, 3), color.Palette{color.Black, color.RGBA{R: 9, A: 255}})
	bounded.SetColorIndex(1, 1, 1)

	got, ok := Clone(bounded).(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, bounded.Bounds(), got.Bounds())
	assert.Equal(t, color.RGBA{R: 9, A: 255}, got.RGBAAt(1, 1))
}

func TestClone_Nil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Clone(nil))
	var rgba *image.RGBA
	assert.Nil(t, Clone(rgba))
}
