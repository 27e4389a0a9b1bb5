package parsing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/poiesic/docflow/core"
)

// PDFReader reads PDFs page by page so chunks keep their page number.
type PDFReader struct {
	logger *slog.Logger
}

var _ Reader = (*PDFReader)(nil)

// NewPDFReader creates a PDF reader.
func NewPDFReader() *PDFReader {
	return &PDFReader{logger: slog.Default().With("component", "pdf-reader")}
}

func (r *PDFReader) Name() string { return "pdf" }

func (r *PDFReader) Supports(ext string) bool { return ext == ".pdf" }

// Read extracts plain text from every page. Pages that fail to decode are
// skipped; the read fails only if the file can't be opened.
func (r *PDFReader) Read(ctx context.Context, fileName, path string) (pages []Page, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("open pdf: malformed file: %v", p)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			r.logger.Warn("failed to extract page text", "page", i, "err", err)
			continue
		}
		text = SanitizeText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: core.IntPtr(i), Text: text})
	}
	return pages, nil
}
