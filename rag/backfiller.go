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

package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/index"
	"github.com/poiesic/docflow/retry"
)

const (
	// DefaultWaitAttempts is how many times the backfiller checks for
	// indexed chunks before giving up.
	DefaultWaitAttempts = 5

	// DefaultWaitDelay is the pause between those checks.
	DefaultWaitDelay = 2 * time.Second
)

// Backfiller answers missing fields one query at a time.
type Backfiller struct {
	index        index.Adapter
	waitAttempts int
	waitDelay    time.Duration
	logger       *slog.Logger
}

// Option configures a Backfiller.
type Option func(*Backfiller) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backfiller) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// WithWait sets how long the backfiller waits for a document's chunks to
// be indexed: attempts checks, delay apart.
func WithWait(attempts int, delay time.Duration) Option {
	return func(b *Backfiller) error {
		if attempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		if delay < 0 {
			return fmt.Errorf("wait delay must not be negative, got %s", delay)
		}
		b.waitAttempts = attempts
		b.waitDelay = delay
		return nil
	}
}

// NewBackfiller creates a backfiller that queries idx.
func NewBackfiller(idx index.Adapter, opts ...Option) (*Backfiller, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}

	b := &Backfiller{
		index:        idx,
		waitAttempts: DefaultWaitAttempts,
		waitDelay:    DefaultWaitDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "rag")
	return b, nil
}

// Backfill queries each missing field of docID and returns the values that
// were found. Fields with no answer are absent from the map. A failed query
// only loses its own field.
//
// Returns ErrNotIndexed if the document has no chunks after waiting.
func (b *Backfiller) Backfill(ctx context.Context, docID string, missing []core.FieldPath, cfg *CompanyConfig) (map[core.FieldPath]*core.ExtractionField, error) {
	found := make(map[core.FieldPath]*core.ExtractionField)
	if len(missing) == 0 {
		return found, nil
	}

	if err := b.waitForChunks(ctx, docID); err != nil {
		return nil, err
	}

	groups := core.GroupBySection(missing)
	for _, section := range core.SectionNames() {
		for _, path := range groups[section] {
			if err := ctx.Err(); err != nil {
				return found, err
			}

			prompt := FieldPrompt(cfg, path.Section, path.Field)
			result, err := b.index.Query(ctx, []string{docID}, prompt, index.WithSystemPrompt(systemPrompt))
			if err != nil {
				b.logger.Error("backfill query failed", "doc_id", docID, "field", path.String(), "err", err)
				continue
			}

			field := ParseAnswer(result)
			if field == nil {
				b.logger.Debug("no value found", "doc_id", docID, "field", path.String())
				continue
			}
			found[path] = field
		}
	}

	b.logger.Info("backfill complete", "doc_id", docID, "missing", len(missing), "found", len(found))
	return found, nil
}

func (b *Backfiller) waitForChunks(ctx context.Context, docID string) error {
	err := retry.Fixed(ctx, func() error {
		n, err := b.index.CountChunks(ctx, docID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotIndexed
		}
		return nil
	}, b.waitAttempts, b.waitDelay)

	if errors.Is(err, ErrNotIndexed) {
		b.logger.Warn("chunks not indexed after waiting", "doc_id", docID, "attempts", b.waitAttempts)
	}
	return err
}
