// Package pages cuts page selections out of stored PDF originals, the way a
// benefit summary is pulled out of a full plan booklet.
package pages

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var (
	// ErrNoPages is returned when no page is selected.
	ErrNoPages = errors.New("no pages selected")

	// ErrPageOutOfRange is returned for a page number outside the document.
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrNotPDF is returned when the source is not a PDF.
	ErrNotPDF = errors.New("not a pdf")
)

// SummarySuffix is appended to the stem of the source name.
const SummarySuffix = "_benefit_summary.pdf"

var disableConfig sync.Once

// SummaryName returns the name the benefit summary of fileName is saved as.
func SummaryName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + SummarySuffix
}

// Count returns the number of pages in the PDF at path.
func Count(path string) (int, error) {
	setup()
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrNotPDF, filepath.Base(path), err)
	}
	return n, nil
}

// Extract writes the 1-based pages of src to dst, in document order.
// Duplicates are dropped. dst is replaced atomically.
func Extract(src, dst string, pages []int) error {
	if !strings.EqualFold(filepath.Ext(src), ".pdf") {
		return fmt.Errorf("%w: %s", ErrNotPDF, filepath.Base(src))
	}
	if len(pages) == 0 {
		return ErrNoPages
	}

	total, err := Count(src)
	if err != nil {
		return err
	}
	selected := slices.Clone(pages)
	slices.Sort(selected)
	selected = slices.Compact(selected)
	if selected[0] < 1 || selected[len(selected)-1] > total {
		return fmt.Errorf("%w: %v of %d pages", ErrPageOutOfRange, pages, total)
	}

	spec := make([]string, len(selected))
	for i, p := range selected {
		spec[i] = strconv.Itoa(p)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(dst), ".tmp-"+filepath.Base(dst))
	if err := api.TrimFile(src, tmp, spec, nil); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("extract pages: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename extracted pages: %w", err)
	}
	return nil
}

// setup keeps pdfcpu from creating its config dir in the user's home.
func setup() {
	disableConfig.Do(api.DisableConfigDir)
}
