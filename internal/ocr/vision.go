package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	vision "google.golang.org/api/vision/v1"

	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/gcloud"
	"github.com/spherical/pdf2emails/internal/observability"
)

// FeatureDocumentText groups recognized text into multi-line blocks, which
// plain TEXT_DETECTION does not
const FeatureDocumentText = "DOCUMENT_TEXT_DETECTION"

func init() {
	Register("vision", func(ctx context.Context, opts Options) (domain.TextRecognizer, error) {
		return NewVisionRecognizer(ctx, opts)
	})
}

// VisionRecognizer calls Cloud Vision images:annotate
type VisionRecognizer struct {
	svc       *vision.Service
	languages []string
	logger    *observability.Logger
}

// NewVisionRecognizer creates a Vision client with explicit credentials
func NewVisionRecognizer(ctx context.Context, opts Options) (*VisionRecognizer, error) {
	svc, err := vision.NewService(ctx, gcloud.ClientOptions(opts.Credentials)...)
	if err != nil {
		return nil, domain.ConfigError("failed to create vision client", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	return &VisionRecognizer{
		svc:       svc,
		languages: opts.Languages,
		logger:    logger.WithOperation("recognize"),
	}, nil
}

// Name identifies the provider in cache keys and logs
func (v *VisionRecognizer) Name() string { return "vision" }

// Recognize runs document text detection. gs:// locators are passed by
// reference; anything else is sent inline.
func (v *VisionRecognizer) Recognize(ctx context.Context, image domain.ImageRef) ([]domain.TextAnnotation, error) {
	req, err := v.buildRequest(image)
	if err != nil {
		return nil, err
	}

	resp, err := v.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		derr := domain.OcrServiceError("annotate request failed", err).OnPage(image.PageIndex)
		if gcloud.Temporary(err) {
			derr = derr.AsTemporary()
		}
		return nil, derr
	}

	if len(resp.Responses) != 1 {
		return nil, domain.OcrServiceError(
			fmt.Sprintf("expected 1 annotate response, got %d", len(resp.Responses)), nil).OnPage(image.PageIndex)
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		derr := domain.OcrServiceError("annotate returned an error status",
			fmt.Errorf("code %d: %s", r.Error.Code, r.Error.Message)).OnPage(image.PageIndex)
		if temporaryStatus(r.Error.Code) {
			derr = derr.AsTemporary()
		}
		return nil, derr
	}

	annotations := make([]domain.TextAnnotation, 0, len(r.TextAnnotations))
	for _, ea := range r.TextAnnotations {
		if ea == nil {
			continue
		}
		annotations = append(annotations, domain.TextAnnotation{
			Text:   ea.Description,
			Locale: ea.Locale,
			Bounds: boundsOf(ea.BoundingPoly),
		})
	}

	v.logger.Debug().
		Int("page", image.PageIndex+1).
		Int("annotations", len(annotations)).
		Msg("Text detected")

	return annotations, nil
}

func (v *VisionRecognizer) buildRequest(image domain.ImageRef) (*vision.AnnotateImageRequest, error) {
	img := &vision.Image{}
	switch {
	case strings.HasPrefix(image.Locator, "gs://"):
		img.Source = &vision.ImageSource{ImageUri: image.Locator}
	case len(image.Data) > 0:
		img.Content = base64.StdEncoding.EncodeToString(image.Data)
	default:
		return nil, domain.OcrServiceError(
			fmt.Sprintf("no readable image source (locator %q)", image.Locator), nil).OnPage(image.PageIndex)
	}

	req := &vision.AnnotateImageRequest{
		Image:    img,
		Features: []*vision.Feature{{Type: FeatureDocumentText}},
	}
	if len(v.languages) > 0 {
		req.ImageContext = &vision.ImageContext{LanguageHints: v.languages}
	}
	return req, nil
}

// temporaryStatus reports retryable google.rpc.Code values: DEADLINE_EXCEEDED,
// RESOURCE_EXHAUSTED, INTERNAL and UNAVAILABLE
func temporaryStatus(code int64) bool {
	switch code {
	case 4, 8, 13, 14:
		return true
	default:
		return false
	}
}

func boundsOf(poly *vision.BoundingPoly) *domain.Bounds {
	if poly == nil {
		return nil
	}
	var minX, minY, maxX, maxY int64
	seen := false
	for _, p := range poly.Vertices {
		if p == nil {
			continue
		}
		if !seen {
			minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
			seen = true
			continue
		}
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	if !seen {
		return nil
	}
	return &domain.Bounds{
		X:      int(minX),
		Y:      int(minY),
		Width:  int(maxX - minX),
		Height: int(maxY - minY),
	}
}
