// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parsing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/poiesic/docflow/core"
)

// Parser turns a stored file into ordered chunks.
type Parser interface {
	// Parse reads the file at path. fileName is the original upload name and
	// decides which readers apply.
	Parse(ctx context.Context, fileName, path string) ([]core.Chunk, error)
}

// Page is a run of text read from a file. Number is nil when the format
// has no notion of pages.
type Page struct {
	Number *int
	Text   string
}

// Reader extracts text from one family of file formats.
type Reader interface {
	// Name identifies the reader in logs.
	Name() string

	// Supports reports whether the reader handles files with extension ext
	// (lower case, with the leading dot).
	Supports(ext string) bool

	// Read extracts the text of the file at path. fileName is the original
	// upload name, which may differ from the staged path.
	Read(ctx context.Context, fileName, path string) ([]Page, error)
}

// Chain tries its readers in order and chunks the first usable output.
type Chain struct {
	readers []Reader
	chunker Chunker
	logger  *slog.Logger
}

var _ Parser = (*Chain)(nil)

// Option configures a Chain.
type Option func(*Chain)

// WithReaders replaces the default reader sequence.
func WithReaders(readers ...Reader) Option {
	return func(c *Chain) {
		c.readers = readers
	}
}

// WithChunking sets the chunk size and overlap, both in runes.
func WithChunking(size, overlap int) Option {
	return func(c *Chain) {
		c.chunker = Chunker{Size: size, Overlap: overlap}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChain creates a parser that tries, in order, the per-page PDF reader,
// the docconv format reader and the tolerant plain-text reader.
func NewChain(opts ...Option) *Chain {
	c := &Chain{
		readers: []Reader{NewPDFReader(), NewDocconvReader(), NewTextReader()},
		chunker: DefaultChunker(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "parser")
	return c
}

// Parse runs the reader chain. A reader that fails or yields no text is
// logged and the next one is tried. ErrUnparseable is returned, joined with
// each reader's error, only when every applicable reader failed.
func (c *Chain) Parse(ctx context.Context, fileName, path string) ([]core.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	var errs []error
	for _, r := range c.readers {
		if !r.Supports(ext) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pages, err := r.Read(ctx, fileName, path)
		if err == nil {
			chunks := c.chunker.ChunkPages(pages)
			if len(chunks) > 0 {
				c.logger.Debug("parsed file", "file_name", fileName, "reader", r.Name(), "chunks", len(chunks))
				return chunks, nil
			}
			err = ErrNoText
		}

		c.logger.Warn("reader failed, trying next", "file_name", fileName, "reader", r.Name(), "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no reader for %q", ErrUnparseable, fileName)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrUnparseable, fileName, errors.Join(errs...))
}
