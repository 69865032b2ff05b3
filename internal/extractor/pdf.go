package extractor

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor pulls page text out of PDF evidence documents.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(r io.Reader) (string, error) {
	// ledongthuc/pdf wants an io.ReaderAt plus the total size. Files and
	// byte readers provide that directly; anything else gets buffered.
	var readerAt io.ReaderAt
	var size int64

	switch v := r.(type) {
	case *os.File:
		stat, err := v.Stat()
		if err != nil {
			return "", err
		}
		readerAt = v
		size = stat.Size()
	case *bytes.Reader:
		readerAt = v
		size = int64(v.Len())
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		readerAt = bytes.NewReader(data)
		size = int64(len(data))
	}

	doc, err := pdf.NewReader(readerAt, size)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Damaged pages are skipped, not fatal.
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
