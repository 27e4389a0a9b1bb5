package parsing

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"
)

// maxReplacementRatio is the share of invalid bytes above which a file is
// treated as binary rather than as damaged text.
const maxReplacementRatio = 0.3

// TextReader decodes any file as UTF-8 text, dropping invalid byte sequences.
// It is the last resort of the default chain.
type TextReader struct{}

var _ Reader = (*TextReader)(nil)

// NewTextReader creates a plain-text reader.
func NewTextReader() *TextReader {
	return &TextReader{}
}

func (r *TextReader) Name() string { return "text" }

func (r *TextReader) Supports(ext string) bool { return true }

func (r *TextReader) Read(ctx context.Context, fileName, path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if invalidRatio(data) > maxReplacementRatio {
		return nil, ErrNoText
	}
	text := SanitizeText(strings.ToValidUTF8(string(data), ""))
	if text == "" {
		return nil, nil
	}
	return []Page{{Text: text}}, nil
}

// invalidRatio returns the fraction of bytes in data that are not part of
// a valid UTF-8 sequence or are NUL.
func invalidRatio(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var bad int
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 || r == 0 {
			bad++
		}
		i += size
	}
	return float64(bad) / float64(len(data))
}

// SanitizeText removes NUL bytes and control characters other than common
// whitespace, which some PDF extractors emit.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.Map(func(ch rune) rune {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			return ch
		case ch < 0x20 || ch == utf8.RuneError:
			return -1
		}
		return ch
	}, s)
	return strings.TrimSpace(s)
}
