package core

import "context"

// ExtractedText is the plain text recovered from an uploaded file.
// Pages is 0 when the format does not report a page count.
type ExtractedText struct {
	Text     string
	Pages    int
	Metadata map[string]string
}

// DocumentExtractor pulls plain text out of an uploaded file. fileName and
// contentType are both hints; either may be empty.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, fileName, contentType string) (ExtractedText, error)
}
