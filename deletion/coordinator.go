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

package deletion

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/index"
	"github.com/poiesic/docflow/storage"
)

// Tombstoner is told about a deletion before any store is touched, so
// processing still running for the document can stop short of persisting.
// Forget is called once the document record is gone.
type Tombstoner interface {
	MarkDeleted(docID string)
	Forget(docID string)
}

// FileLocker serializes work on one original file name. The returned func
// releases the lock.
type FileLocker interface {
	LockFile(fileName string) func()
}

// Coordinator deletes documents across the index, the original file store,
// the artifact store and the phase store.
type Coordinator struct {
	phases     storage.PhaseStore
	originals  storage.OriginalFileStore
	artifacts  storage.ArtifactStore
	index      index.Adapter
	tombstoner Tombstoner
	files      FileLocker
	logger     *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// WithTombstoner registers the party running background work for documents.
func WithTombstoner(t Tombstoner) Option {
	return func(c *Coordinator) {
		c.tombstoner = t
	}
}

// WithFileLocker shares the lock uploads take while they register a file
// name, so an original is never removed under a document that still names it.
func WithFileLocker(l FileLocker) Option {
	return func(c *Coordinator) {
		c.files = l
	}
}

// NewCoordinator creates a coordinator. Every store and the index are required.
func NewCoordinator(phases storage.PhaseStore, originals storage.OriginalFileStore, artifacts storage.ArtifactStore, idx index.Adapter, opts ...Option) (*Coordinator, error) {
	if phases == nil {
		return nil, ErrPhaseStoreRequired
	}
	if originals == nil {
		return nil, ErrFileStoreRequired
	}
	if artifacts == nil {
		return nil, ErrArtifactStoreRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}

	c := &Coordinator{
		phases:    phases,
		originals: originals,
		artifacts: artifacts,
		index:     idx,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "deletion")
	return c, nil
}

// Delete removes docID from every store. The returned error is only set when
// docID is unusable; failures of individual steps are in the report.
func (c *Coordinator) Delete(ctx context.Context, docID string) (*Report, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, core.ErrEmptyDocID
	}
	if c.tombstoner != nil {
		c.tombstoner.MarkDeleted(docID)
	}

	report := &Report{DocID: docID, DeletedComponents: []Component{}}
	// the file name has to be read before the record goes away
	fileName := c.fileName(ctx, docID)

	c.deleteIndex(ctx, report)
	c.deleteOriginal(ctx, report, fileName)
	c.deleteArtifacts(ctx, report)
	if c.deleteRecord(ctx, report) && c.tombstoner != nil {
		c.tombstoner.Forget(docID)
	}
	report.finish()

	if report.Status == StatusSuccess {
		c.logger.Info("document deleted", "doc_id", docID, "components", len(report.DeletedComponents), "warnings", len(report.Warnings))
	} else {
		c.logger.Warn("document partially deleted", "doc_id", docID, "errors", len(report.Errors), "err", report.Err())
	}
	return report, nil
}

// fileName finds the upload name of docID from its record, or from the
// index when the record is already gone.
func (c *Coordinator) fileName(ctx context.Context, docID string) string {
	doc, _, err := c.phases.GetDocument(ctx, docID)
	if err == nil {
		return doc.FileName
	}
	if !errors.Is(err, storage.ErrNotFound) {
		c.logger.Warn("failed to read document record", "doc_id", docID, "err", err)
	}

	text, err := c.index.Document(ctx, docID)
	if err != nil {
		return ""
	}
	return text.Metadata["file_name"]
}

func (c *Coordinator) deleteIndex(ctx context.Context, report *Report) {
	n, err := c.index.Delete(ctx, report.DocID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		report.warn("document was not indexed")
	case err != nil:
		c.logger.Error("error deleting indexed nodes", "doc_id", report.DocID, "err", err)
		report.fail(ComponentIndex, err)
	default:
		c.logger.Debug("indexed nodes deleted", "doc_id", report.DocID, "nodes", n)
		report.deleted(ComponentIndex)
	}
}

func (c *Coordinator) deleteOriginal(ctx context.Context, report *Report, fileName string) {
	if fileName == "" {
		report.warn("file name unknown, original file kept")
		return
	}
	if c.files != nil {
		defer c.files.LockFile(fileName)()
	}

	refs, err := c.otherReferences(ctx, report.DocID, fileName)
	if err != nil {
		c.logger.Error("error counting file references", "doc_id", report.DocID, "file_name", fileName, "err", err)
		report.fail(ComponentOriginal, err)
		return
	}
	if refs > 0 {
		report.warn("original file %s kept, referenced by %d other document(s)", fileName, refs)
		return
	}

	detached, err := c.originals.Detach(ctx, fileName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		report.warn("original file %s was not stored", fileName)
		return
	case err != nil:
		c.logger.Error("error deleting original file", "doc_id", report.DocID, "file_name", fileName, "err", err)
		report.fail(ComponentOriginal, err)
		return
	}

	// a writer that does not share the lock may have registered the name
	// between the count and the detach
	refs, err = c.otherReferences(ctx, report.DocID, fileName)
	if err != nil || refs > 0 {
		if restoreErr := detached.Restore(); restoreErr != nil {
			c.logger.Error("error restoring original file", "doc_id", report.DocID, "file_name", fileName, "err", restoreErr)
			report.fail(ComponentOriginal, restoreErr)
			return
		}
		if err != nil {
			c.logger.Error("error counting file references", "doc_id", report.DocID, "file_name", fileName, "err", err)
			report.fail(ComponentOriginal, err)
			return
		}
		report.warn("original file %s kept, referenced by %d other document(s)", fileName, refs)
		return
	}

	if err := detached.Discard(); err != nil {
		c.logger.Error("error deleting original file", "doc_id", report.DocID, "file_name", fileName, "err", err)
		report.fail(ComponentOriginal, err)
		return
	}
	report.deleted(ComponentOriginal)
}

// otherReferences counts the surviving documents, other than docID, that
// carry fileName.
func (c *Coordinator) otherReferences(ctx context.Context, docID, fileName string) (int, error) {
	types, err := c.phases.DocumentTypes(ctx)
	if err != nil {
		return 0, err
	}
	refs := 0
	for _, t := range types {
		for _, doc := range t.Documents {
			if doc.ID != docID && doc.FileName == fileName {
				refs++
			}
		}
	}
	return refs, nil
}

func (c *Coordinator) deleteArtifacts(ctx context.Context, report *Report) {
	err := c.artifacts.Remove(ctx, report.DocID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		report.warn("document had no extraction results")
	case err != nil:
		c.logger.Error("error deleting extraction results", "doc_id", report.DocID, "err", err)
		report.fail(ComponentArtifacts, err)
	default:
		report.deleted(ComponentArtifacts)
	}
}

// deleteRecord reports whether the record is gone.
func (c *Coordinator) deleteRecord(ctx context.Context, report *Report) bool {
	err := c.phases.RemoveDocument(ctx, report.DocID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		report.warn("document record not found")
	case err != nil:
		c.logger.Error("error deleting document record", "doc_id", report.DocID, "err", err)
		report.fail(ComponentRecord, err)
		return false
	default:
		report.deleted(ComponentRecord)
	}
	return true
}
