package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{
			name: "no page no cause",
			err:  ValidationError("file path cannot be empty", nil),
			want: "[validation] file path cannot be empty",
		},
		{
			name: "with cause",
			err:  DocumentOpenError("failed to open PDF", errors.New("bad xref")),
			want: "[document_open] failed to open PDF: bad xref",
		},
		{
			name: "on page",
			err:  OcrServiceError("annotate failed", errors.New("quota")).OnPage(1),
			want: "[ocr] page 2: annotate failed: quota",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDomainError_OnPageDoesNotMutate(t *testing.T) {
	base := RenderError("render failed", nil)
	paged := base.OnPage(4)

	assert.Equal(t, NoPage, base.PageIndex)
	assert.Equal(t, 4, paged.PageIndex)
}

func TestIsTemporary(t *testing.T) {
	cause := context.DeadlineExceeded
	tmp := TransportError("upload failed", cause).AsTemporary()

	assert.True(t, IsTemporary(tmp))
	assert.True(t, IsTemporary(fmt.Errorf("wrapped: %w", tmp)))
	assert.False(t, IsTemporary(TransportError("upload failed", cause)))
	assert.False(t, IsTemporary(errors.New("plain")))
	assert.ErrorIs(t, tmp, context.DeadlineExceeded)
}

func TestIsType(t *testing.T) {
	err := NewPipelineError(StageRecognize, 1, OcrServiceError("annotate failed", nil).OnPage(1))

	assert.True(t, IsType(err, ErrorTypeOCR))
	assert.False(t, IsType(err, ErrorTypeTransport))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeOCR))
}

func TestPipelineError(t *testing.T) {
	cause := OcrServiceError("annotate failed", errors.New("permission denied")).OnPage(1)
	err := NewPipelineError(StageRecognize, 1, cause)

	assert.Contains(t, err.Error(), "stage recognize failed on page 2")

	var pe *PipelineError
	require.True(t, errors.As(fmt.Errorf("run: %w", err), &pe))
	assert.Equal(t, 1, pe.PageIndex)

	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ErrorTypeOCR, de.Type)

	docErr := NewPipelineError(StageOpen, NoPage, DocumentOpenError("missing", nil))
	assert.Equal(t, "stage open failed: [document_open] missing", docErr.Error())
}

func TestRunResult(t *testing.T) {
	r := &RunResult{Emails: []string{"a@b.c"}, PagesTotal: 2, PagesProcessed: 2}
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Complete())

	r.SkippedPages = []int{1}
	assert.False(t, r.Complete())
}

func TestPixelFormat_BytesPerPixel(t *testing.T) {
	assert.Equal(t, 4, PixelFormatRGBA.BytesPerPixel())
	assert.Equal(t, 1, PixelFormatGray.BytesPerPixel())
	assert.Equal(t, 0, PixelFormat("CMYK").BytesPerPixel())
}
