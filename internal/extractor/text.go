package extractor

import "io"

// ContentExtractor turns one file's bytes into analyzable text.
type ContentExtractor interface {
	Extract(r io.Reader) (string, error)
}

// TextExtractor reads a file as text, replacing binary garbage with spaces
// so mixed or oddly encoded files survive as JSON string payloads.
type TextExtractor struct{}

func (e *TextExtractor) Extract(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(sanitizeBytes(data)), nil
}

// sanitizeBytes replaces non-printable characters with spaces. Bytes above
// 127 pass through untouched so UTF-8 sequences survive.
func sanitizeBytes(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		if (b >= 32 && b <= 126) || b == 9 || b == 10 || b == 13 || b > 127 {
			out[i] = b
		} else {
			out[i] = ' '
		}
	}
	return out
}
