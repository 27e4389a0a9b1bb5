package parsing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
)

// docconvExtensions lists the formats handed to docconv.
var docconvExtensions = map[string]bool{
	".doc":   true,
	".docx":  true,
	".odt":   true,
	".pages": true,
	".rtf":   true,
	".htm":   true,
	".html":  true,
	".xml":   true,
	".pdf":   true,
}

// DocconvReader reads office, markup and PDF formats through docconv.
// Output has no page numbers.
type DocconvReader struct {
	readability bool
}

var _ Reader = (*DocconvReader)(nil)

// NewDocconvReader creates a docconv backed reader.
func NewDocconvReader() *DocconvReader {
	return &DocconvReader{}
}

func (r *DocconvReader) Name() string { return "docconv" }

func (r *DocconvReader) Supports(ext string) bool { return docconvExtensions[ext] }

func (r *DocconvReader) Read(ctx context.Context, fileName, path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mimeType := docconv.MimeTypeByExtension(strings.ToLower(fileName))
	res, err := docconv.Convert(f, mimeType, r.readability)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", mimeType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := SanitizeText(res.Body)
	if text == "" {
		return nil, nil
	}
	return []Page{{Text: text}}, nil
}
