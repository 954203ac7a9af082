package extract

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/spherical/pdf2emails/internal/domain"
)

// Filter names accepted by NewFilter
const (
	FilterFirstAnnotation = "first-annotation"
	FilterDenseBlocks     = "dense-blocks"
)

// NewFilter returns the candidate filter registered under name
func NewFilter(name string) (domain.CandidateFilter, error) {
	switch name {
	case "", FilterFirstAnnotation:
		return FirstAnnotationFilter{}, nil
	case FilterDenseBlocks:
		return DenseBlockFilter{}, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown candidate filter %q", name), nil)
	}
}

// ExtractCandidates applies filter to a page's annotations. A nil filter
// means FirstAnnotationFilter.
func ExtractCandidates(filter domain.CandidateFilter, annotations []domain.TextAnnotation) []string {
	if filter == nil {
		filter = FirstAnnotationFilter{}
	}
	return filter.Candidates(annotations)
}

// FirstAnnotationFilter scans only the first annotation, which holds the
// whole page text. Further annotations are ignored even when they contain
// addresses.
type FirstAnnotationFilter struct{}

func (FirstAnnotationFilter) Name() string { return FilterFirstAnnotation }

func (FirstAnnotationFilter) Candidates(annotations []domain.TextAnnotation) []string {
	if len(annotations) == 0 {
		return nil
	}
	return CandidatesFromText(annotations[0].Text)
}

// DenseBlockFilter scans every annotation holding more than one '@'. Pages
// with a single address yield nothing under this filter.
type DenseBlockFilter struct{}

func (DenseBlockFilter) Name() string { return FilterDenseBlocks }

func (DenseBlockFilter) Candidates(annotations []domain.TextAnnotation) []string {
	var out []string
	for _, a := range annotations {
		if strings.Count(a.Text, "@") > 1 {
			out = append(out, CandidatesFromText(a.Text)...)
		}
	}
	return out
}

// CandidatesFromText emits one normalized candidate for every line that
// contains '@'. No address grammar is checked.
func CandidatesFromText(text string) []string {
	var out []string
	for _, line := range splitLines(text) {
		if !strings.Contains(line, "@") {
			continue
		}
		out = append(out, Normalize(line))
	}
	return out
}

// Normalize lowercases s and drops all whitespace, leading, trailing and
// internal
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitLines breaks on '\n' only. A trailing '\r' is dropped; a lone '\r'
// stays inside its line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
