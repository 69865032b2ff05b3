// Package extractor pulls analyzable text out of files. Source files pass
// through with binary sanitization; compliance evidence documents get their
// text extracted from the container format.
package extractor

import (
	"path/filepath"
	"strings"
)

// Factory picks the extractor matching a file.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// ForFile returns the extractor for the file's extension. Everything that
// is not a known document container reads as text.
func (f *Factory) ForFile(path string) ContentExtractor {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return &PDFExtractor{}
	case ".xlsx":
		return &ExcelExtractor{}
	default:
		return &TextExtractor{}
	}
}
