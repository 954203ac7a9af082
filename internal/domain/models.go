package domain

import (
	"time"
)

// PixelFormat tags the layout of a Bitmap's pixel buffer
type PixelFormat string

const (
	// PixelFormatRGBA is 8 bits per channel, non-premultiplied order R, G, B, A.
	PixelFormatRGBA PixelFormat = "RGBA"
	PixelFormatGray PixelFormat = "GRAY"
)

// BytesPerPixel returns the pixel size for the format, or 0 if unknown
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGBA:
		return 4
	case PixelFormatGray:
		return 1
	default:
		return 0
	}
}

// Bitmap is a rendered page held in memory
type Bitmap struct {
	PageIndex int
	Width     int
	Height    int
	Stride    int
	Pix       []byte
	Format    PixelFormat
}

// EncodedImage is a compressed image ready for transport
type EncodedImage struct {
	PageIndex   int
	Data        []byte
	ContentType string
}

// ImageRef points a recognizer at an uploaded image. Data carries the same
// bytes for providers that read content directly instead of the locator.
type ImageRef struct {
	PageIndex   int
	Locator     string
	Data        []byte
	ContentType string
}

// Bounds is the axis-aligned box of a text annotation, in pixels
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextAnnotation is one block of recognized text. Providers return the full
// page text as the first annotation.
type TextAnnotation struct {
	Text   string  `json:"text"`
	Locale string  `json:"locale,omitempty"`
	Bounds *Bounds `json:"bounds,omitempty"`
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventPageComplete   EventType = "page_complete"
	EventPageSkipped    EventType = "page_skipped"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"` // one-based
	PageCount  int         `json:"page_count,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// PagePayload is attached to page_complete events
type PagePayload struct {
	Candidates int `json:"candidates"`
}

// RunResult is the outcome of a successful pipeline run
type RunResult struct {
	RunID          string        `json:"run_id"`
	DocumentPath   string        `json:"document_path"`
	Emails         []string      `json:"emails"`
	PagesTotal     int           `json:"pages_total"`
	PagesProcessed int           `json:"pages_processed"`
	SkippedPages   []int         `json:"skipped_pages,omitempty"` // zero-based
	Duration       time.Duration `json:"duration"`
}

// Count returns the number of unique emails found
func (r *RunResult) Count() int {
	return len(r.Emails)
}

// Complete reports whether every page of the document contributed
func (r *RunResult) Complete() bool {
	return len(r.SkippedPages) == 0 && r.PagesProcessed == r.PagesTotal
}
