package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeDocumentOpen ErrorType = "document_open"
	ErrorTypeRender       ErrorType = "render"
	ErrorTypeEncoding     ErrorType = "encoding"
	ErrorTypeTransport    ErrorType = "transport"
	ErrorTypeOCR          ErrorType = "ocr"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeValidation   ErrorType = "validation"
)

// NoPage marks errors that are not attributable to a single page.
const NoPage = -1

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type      ErrorType
	Message   string
	PageIndex int
	// Temporary is set by adapters when the provider signalled a transient
	// condition (rate limit, 5xx, deadline) that a retry may clear.
	Temporary bool
	Err       error
}

func (e *DomainError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.PageIndex >= 0 {
		prefix = fmt.Sprintf("[%s] page %d:", e.Type, e.PageIndex+1)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:      errType,
		Message:   message,
		PageIndex: NoPage,
		Err:       err,
	}
}

// OnPage returns a copy of the error attributed to the given zero-based page.
func (e *DomainError) OnPage(index int) *DomainError {
	cp := *e
	cp.PageIndex = index
	return &cp
}

// AsTemporary returns a copy of the error flagged as retryable.
func (e *DomainError) AsTemporary() *DomainError {
	cp := *e
	cp.Temporary = true
	return &cp
}

// Common error constructors
func DocumentOpenError(message string, err error) *DomainError {
	return NewError(ErrorTypeDocumentOpen, message, err)
}

func RenderError(message string, err error) *DomainError {
	return NewError(ErrorTypeRender, message, err)
}

func EncodingError(message string, err error) *DomainError {
	return NewError(ErrorTypeEncoding, message, err)
}

func TransportError(message string, err error) *DomainError {
	return NewError(ErrorTypeTransport, message, err)
}

func OcrServiceError(message string, err error) *DomainError {
	return NewError(ErrorTypeOCR, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

// IsType reports whether any DomainError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == errType {
			return true
		}
		err = de.Err
	}
	return false
}

// IsTemporary reports whether err was flagged as retryable by an adapter.
func IsTemporary(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Temporary
	}
	return false
}

// Stage names a step of the per-page pipeline.
type Stage string

const (
	StageOpen      Stage = "open"
	StageRender    Stage = "render"
	StageEncode    Stage = "encode"
	StageUpload    Stage = "upload"
	StageRecognize Stage = "recognize"
	StageExtract   Stage = "extract"
)

// PipelineError is the whole-run failure returned by the driver. It names the
// stage and the page that failed.
type PipelineError struct {
	Stage     Stage
	PageIndex int
	Err       error
}

func (e *PipelineError) Error() string {
	if e.PageIndex >= 0 {
		return fmt.Sprintf("stage %s failed on page %d: %v", e.Stage, e.PageIndex+1, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError wraps a stage failure.
func NewPipelineError(stage Stage, pageIndex int, err error) *PipelineError {
	return &PipelineError{Stage: stage, PageIndex: pageIndex, Err: err}
}
