package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf2emails/internal/domain"
)

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 10, G: 200, B: 30, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
			}
		}
	}
	return img
}

func bitmapOf(img *image.RGBA) domain.Bitmap {
	return domain.Bitmap{
		PageIndex: 2,
		Width:     img.Rect.Dx(),
		Height:    img.Rect.Dy(),
		Stride:    img.Stride,
		Pix:       img.Pix,
		Format:    domain.PixelFormatRGBA,
	}
}

func TestPNGEncoder_Lossless(t *testing.T) {
	src := checkerboard(7, 5)

	out, err := NewPNGEncoder().Encode(bitmapOf(src))
	require.NoError(t, err)
	assert.Equal(t, ContentTypePNG, out.ContentType)
	assert.Equal(t, 2, out.PageIndex)

	decoded, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), decoded.Bounds())

	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			assert.Equal(t,
				color.NRGBAModel.Convert(src.At(x, y)),
				color.NRGBAModel.Convert(decoded.At(x, y)))
		}
	}
}

func TestPNGEncoder_SameInputSameContent(t *testing.T) {
	enc := NewPNGEncoder()
	a, err := enc.Encode(bitmapOf(checkerboard(4, 4)))
	require.NoError(t, err)
	b, err := enc.Encode(bitmapOf(checkerboard(4, 4)))
	require.NoError(t, err)

	assert.Equal(t, a.Data, b.Data)
}

func TestPNGEncoder_Gray(t *testing.T) {
	bmp := domain.Bitmap{Width: 2, Height: 2, Pix: []byte{0, 255, 255, 0}, Format: domain.PixelFormatGray}

	out, err := NewPNGEncoder().Encode(bmp)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), decoded.Bounds())
}

func TestPNGEncoder_InvalidBitmaps(t *testing.T) {
	tests := []struct {
		name string
		bmp  domain.Bitmap
	}{
		{name: "zero width", bmp: domain.Bitmap{Width: 0, Height: 1, Format: domain.PixelFormatRGBA}},
		{name: "negative height", bmp: domain.Bitmap{Width: 1, Height: -1, Format: domain.PixelFormatRGBA}},
		{name: "unknown format", bmp: domain.Bitmap{Width: 1, Height: 1, Pix: make([]byte, 4), Format: "CMYK"}},
		{name: "short buffer", bmp: domain.Bitmap{Width: 2, Height: 2, Pix: make([]byte, 8), Format: domain.PixelFormatRGBA}},
		{name: "short stride", bmp: domain.Bitmap{Width: 2, Height: 1, Stride: 4, Pix: make([]byte, 8), Format: domain.PixelFormatRGBA}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPNGEncoder().Encode(tt.bmp)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeEncoding))
		})
	}
}
