package ingestion_engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/models"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractText routes the upload by MIME type: plain text is decoded directly,
// RFC 822 mail is parsed with net/mail and everything else goes to docconv.
// A file with no extractable text yields an empty result, not an error.
func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, fileName, contentType string) (core.ExtractedText, error) {
	if err := ctx.Err(); err != nil {
		return core.ExtractedText{}, err
	}

	mimeType := ResolveMimeType(fileName, contentType)
	switch mimeType {
	case "text/plain", "text/markdown", "text/csv":
		if !utf8.Valid(data) {
			return core.ExtractedText{}, fmt.Errorf("%w: %s is not valid UTF-8 text", models.ErrInvalidInput, fileName)
		}
		return core.ExtractedText{Text: string(data)}, nil
	case "message/rfc822":
		return extractEmail(data)
	}

	res, err := docconv.Convert(bytes.NewReader(data), mimeType, e.useReadability)
	if err != nil {
		return core.ExtractedText{}, fmt.Errorf("docconv %s (%s): %w", fileName, mimeType, err)
	}
	if err := ctx.Err(); err != nil {
		return core.ExtractedText{}, err
	}

	out := core.ExtractedText{Text: res.Body, Metadata: res.Meta}
	if p, err := strconv.Atoi(strings.TrimSpace(res.Meta["Pages"])); err == nil && p > 0 {
		out.Pages = p
	}
	return out, nil
}

// ResolveMimeType prefers an explicit content type and falls back to the
// file extension when the client sent none or a generic one.
func ResolveMimeType(fileName, contentType string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".eml":
		return "message/rfc822"
	}
	return docconv.MimeTypeByExtension(fileName)
}

// extractEmail keeps the headers a reader would quote (subject, sender,
// date) followed by the decoded text body.
func extractEmail(data []byte) (core.ExtractedText, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return core.ExtractedText{}, fmt.Errorf("%w: parse email: %v", models.ErrInvalidInput, err)
	}
	body, err := emailBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return core.ExtractedText{}, fmt.Errorf("read email body: %w", err)
	}

	meta := map[string]string{}
	var b strings.Builder
	for _, h := range []string{"Subject", "From", "To", "Date"} {
		if v := decodeHeader(msg.Header.Get(h)); v != "" {
			meta[h] = v
			fmt.Fprintf(&b, "%s: %s\n", h, v)
		}
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(body))
	return core.ExtractedText{Text: b.String(), Metadata: meta}, nil
}

// decodeHeader decodes RFC 2047 words, returning the raw value on failure.
func decodeHeader(v string) string {
	if v == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// emailBody returns the text of a single-part body or walks a multipart one.
func emailBody(contentType, encoding string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}
	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartBody(r, params["boundary"])
	}

	raw, err := io.ReadAll(transferDecoder(encoding, r))
	if err != nil {
		return "", err
	}
	if mediaType == "text/html" {
		return htmlText(raw), nil
	}
	return string(raw), nil
}

// multipartBody prefers text/plain parts over HTML and recurses into nested
// multipart containers. Attachments are skipped.
func multipartBody(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", nil
	}
	var textParts, htmlParts []string

	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}
		if part.FileName() != "" {
			part.Close()
			continue
		}

		// NextPart already strips quoted-printable; base64 is left to us.
		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, err := multipartBody(part, params["boundary"])
			if err == nil && nested != "" {
				textParts = append(textParts, nested)
			}
		case mediaType == "text/plain" || mediaType == "text/html":
			content, err := io.ReadAll(transferDecoder(part.Header.Get("Content-Transfer-Encoding"), part))
			if err != nil {
				part.Close()
				continue
			}
			if mediaType == "text/plain" {
				textParts = append(textParts, string(content))
			} else {
				htmlParts = append(htmlParts, htmlText(content))
			}
		}
		part.Close()
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &lineStripper{r: r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

// lineStripper drops CR and LF so base64 bodies wrapped at 76 columns decode.
type lineStripper struct {
	r io.Reader
}

func (l *lineStripper) Read(p []byte) (int, error) {
	for {
		n, err := l.r.Read(p)
		j := 0
		for _, c := range p[:n] {
			if c != '\r' && c != '\n' {
				p[j] = c
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}

func htmlText(raw []byte) string {
	text, _, err := docconv.ConvertHTML(bytes.NewReader(raw), false)
	if err != nil {
		return string(raw)
	}
	return strings.TrimSpace(text)
}
