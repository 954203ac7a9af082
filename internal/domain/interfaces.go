package domain

import "context"

// Document is an opened source file that can be rendered page by page
type Document interface {
	// PageCount returns the number of pages, zero or more
	PageCount() int

	// Render rasterizes the page at a zero-based index
	Render(ctx context.Context, index int) (Bitmap, error)

	// Close releases the backing file handle
	Close() error
}

// DocumentOpener opens a Document from a path
type DocumentOpener interface {
	Open(ctx context.Context, path string) (Document, error)
}

// Encoder turns a bitmap into a transport-ready image
type Encoder interface {
	Encode(bitmap Bitmap) (EncodedImage, error)
}

// Uploader hands image bytes to an object store and returns a locator the
// recognizer can read from
type Uploader interface {
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error)
}

// Deleter is implemented by uploaders that can remove uploaded objects
type Deleter interface {
	Delete(ctx context.Context, bucket, object string) error
}

// TextRecognizer runs document text detection on an uploaded image
type TextRecognizer interface {
	Recognize(ctx context.Context, image ImageRef) ([]TextAnnotation, error)
}

// CandidateFilter selects email candidates from a page's annotations
type CandidateFilter interface {
	Name() string
	Candidates(annotations []TextAnnotation) []string
}
