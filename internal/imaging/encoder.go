// Package imaging encodes rendered pages for transport.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/spherical/pdf2emails/internal/domain"
)

// ContentTypePNG is the content type of every encoded page
const ContentTypePNG = "image/png"

// PNGEncoder produces lossless PNG images at maximum compression
type PNGEncoder struct {
	enc png.Encoder
}

// NewPNGEncoder creates a PNG encoder
func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{
		enc: png.Encoder{CompressionLevel: png.BestCompression},
	}
}

// Encode converts a bitmap into PNG bytes
func (e *PNGEncoder) Encode(bitmap domain.Bitmap) (domain.EncodedImage, error) {
	img, err := toImage(bitmap)
	if err != nil {
		return domain.EncodedImage{}, err
	}

	var buf bytes.Buffer
	if err := e.enc.Encode(&buf, img); err != nil {
		return domain.EncodedImage{}, domain.EncodingError("failed to encode PNG", err).OnPage(bitmap.PageIndex)
	}

	return domain.EncodedImage{
		PageIndex:   bitmap.PageIndex,
		Data:        buf.Bytes(),
		ContentType: ContentTypePNG,
	}, nil
}

// toImage wraps the bitmap's buffer without copying
func toImage(b domain.Bitmap) (image.Image, error) {
	if b.Width <= 0 || b.Height <= 0 {
		return nil, domain.EncodingError(
			fmt.Sprintf("invalid bitmap dimensions %dx%d", b.Width, b.Height), nil).OnPage(b.PageIndex)
	}

	bpp := b.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, domain.EncodingError(
			fmt.Sprintf("unsupported pixel format %q", b.Format), nil).OnPage(b.PageIndex)
	}

	stride := b.Stride
	if stride == 0 {
		stride = b.Width * bpp
	}
	if stride < b.Width*bpp {
		return nil, domain.EncodingError(
			fmt.Sprintf("stride %d too small for width %d", stride, b.Width), nil).OnPage(b.PageIndex)
	}

	// the last row only needs Width pixels, not a full stride
	need := stride*(b.Height-1) + b.Width*bpp
	if len(b.Pix) < need {
		return nil, domain.EncodingError(
			fmt.Sprintf("pixel buffer has %d bytes, need %d", len(b.Pix), need), nil).OnPage(b.PageIndex)
	}

	rect := image.Rect(0, 0, b.Width, b.Height)
	switch b.Format {
	case domain.PixelFormatGray:
		return &image.Gray{Pix: b.Pix, Stride: stride, Rect: rect}, nil
	default:
		return &image.RGBA{Pix: b.Pix, Stride: stride, Rect: rect}, nil
	}
}
