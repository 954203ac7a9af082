package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/observability"
)

// maxSize is the size above which a warning is logged; larger files are
// still accepted
const maxSize = 100 * 1024 * 1024

// Validator provides input validation for PDF files
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Validator{logger: logger}
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.DocumentOpenError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DocumentOpenError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.DocumentOpenError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.DocumentOpenError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.DocumentOpenError(fmt.Sprintf("file is not a PDF (has extension %q)", ext), nil)
	}

	if info.Size() > maxSize {
		v.logger.Warn().
			Int64("size_mb", info.Size()/(1024*1024)).
			Msg("PDF file is very large, processing may take a while")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.DocumentOpenError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateDPI validates the rasterization resolution
func (v *Validator) ValidateDPI(dpi float64) error {
	if dpi < 36 || dpi > 1200 {
		return domain.ValidationError(fmt.Sprintf("dpi must be between 36 and 1200, got %v", dpi), nil)
	}
	return nil
}
