package pdf

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/observability"
)

// DefaultDPI is the rasterization resolution used when none is configured
const DefaultDPI = 300

// Opener opens PDF files with MuPDF at a fixed resolution
type Opener struct {
	dpi       float64
	validator *Validator
	logger    *observability.Logger
}

// NewOpener creates an Opener rendering at dpi. A non-positive dpi selects
// DefaultDPI.
func NewOpener(dpi float64, logger *observability.Logger) *Opener {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Opener{
		dpi:       dpi,
		validator: NewValidator(logger),
		logger:    logger.WithOperation("rasterize"),
	}
}

// Open validates and opens the document at path
func (o *Opener) Open(ctx context.Context, path string) (domain.Document, error) {
	if err := o.validator.ValidatePDFPath(path); err != nil {
		return nil, err
	}
	if err := o.validator.ValidateDPI(o.dpi); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.DocumentOpenError("failed to open PDF", err)
	}

	r := &Rasterizer{
		doc:   doc,
		dpi:   o.dpi,
		pages: doc.NumPage(),
	}
	o.logger.Debug().Str("path", path).Int("pages", r.pages).Float64("dpi", o.dpi).Msg("Document opened")
	return r, nil
}

// Rasterizer renders the pages of one open document
type Rasterizer struct {
	// MuPDF contexts are not safe for concurrent use, renders are serialized
	mu    sync.Mutex
	doc   *fitz.Document
	dpi   float64
	pages int
}

// PageCount returns the number of pages in the document
func (r *Rasterizer) PageCount() int {
	return r.pages
}

// Render rasterizes a zero-based page index into an RGBA bitmap
func (r *Rasterizer) Render(ctx context.Context, index int) (domain.Bitmap, error) {
	if index < 0 || index >= r.pages {
		return domain.Bitmap{}, domain.RenderError(
			fmt.Sprintf("page index %d out of range [0, %d)", index, r.pages), nil).OnPage(index)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Bitmap{}, err
	}
	if r.doc == nil {
		return domain.Bitmap{}, domain.RenderError("document is closed", nil).OnPage(index)
	}

	img, err := r.doc.ImageDPI(index, r.dpi)
	if err != nil {
		return domain.Bitmap{}, domain.RenderError("failed to rasterize page", err).OnPage(index)
	}

	bounds := img.Bounds()
	return domain.Bitmap{
		PageIndex: index,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Stride:    img.Stride,
		Pix:       img.Pix,
		Format:    domain.PixelFormatRGBA,
	}, nil
}

// Close releases the document
func (r *Rasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc == nil {
		return nil
	}
	err := r.doc.Close()
	r.doc = nil
	return err
}
