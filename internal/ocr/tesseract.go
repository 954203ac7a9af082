//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/spherical/pdf2emails/internal/domain"
)

func init() {
	Register("tesseract", func(ctx context.Context, opts Options) (domain.TextRecognizer, error) {
		return NewTesseractRecognizer(opts), nil
	})
}

// TesseractRecognizer runs a local Tesseract engine on the image bytes. The
// locator is ignored.
type TesseractRecognizer struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// NewTesseractRecognizer creates a local recognizer
func NewTesseractRecognizer(opts Options) *TesseractRecognizer {
	return &TesseractRecognizer{
		clientFactory: gosseract.NewClient,
		languages:     opts.Languages,
	}
}

// Name identifies the provider in cache keys and logs
func (t *TesseractRecognizer) Name() string { return "tesseract" }

// Recognize returns the whole page as a single annotation, matching the
// full-text-first convention of document text detection
func (t *TesseractRecognizer) Recognize(ctx context.Context, image domain.ImageRef) ([]domain.TextAnnotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.OcrServiceError("recognize canceled", err).OnPage(image.PageIndex)
	}
	if len(image.Data) == 0 {
		return nil, domain.OcrServiceError("tesseract needs image bytes", nil).OnPage(image.PageIndex)
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image.Data); err != nil {
		return nil, domain.OcrServiceError("set image", err).OnPage(image.PageIndex)
	}
	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return nil, domain.OcrServiceError(fmt.Sprintf("set languages %v", t.languages), err).OnPage(image.PageIndex)
		}
	}
	// fully automatic segmentation keeps line breaks between blocks
	if err := c.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, domain.OcrServiceError("set page segmentation", err).OnPage(image.PageIndex)
	}

	text, err := c.Text()
	if err != nil {
		return nil, domain.OcrServiceError("recognize text", err).OnPage(image.PageIndex)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []domain.TextAnnotation{{Text: text}}, nil
}
