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

package storage

import (
	"context"

	"github.com/poiesic/docflow/core"
)

// PhaseStore durably records document types, their documents, and each
// document's processing phase.
type PhaseStore interface {
	// CreateDocumentType adds a document type with the given title.
	// If a type with the same title (case-insensitive) exists, it is returned unchanged.
	CreateDocumentType(ctx context.Context, title string) (*core.DocumentType, error)

	// DocumentTypes returns every document type with its documents and counts.
	DocumentTypes(ctx context.Context) ([]core.DocumentType, error)

	// AppendDocument adds a document to a document type and recomputes counts.
	// Returns ErrNotFound if the type doesn't exist.
	// Returns ErrDuplicateKey if a document with the same ID already exists.
	AppendDocument(ctx context.Context, typeID int, doc core.Document) error

	// SetPhase moves a document to a new phase. A message may be recorded
	// alongside the error phase. The move must satisfy core.CanTransition.
	// Returns ErrNotFound if the document doesn't exist; records are never created here.
	SetPhase(ctx context.Context, docID string, phase core.Phase, message string) error

	// GetPhase returns a document's current phase.
	// Returns ErrNotFound if the document doesn't exist.
	GetPhase(ctx context.Context, docID string) (core.Phase, error)

	// GetDocument returns a document and the ID of the type that owns it.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, docID string) (*core.Document, int, error)

	// ListDocuments returns the documents of one type.
	// Returns ErrNotFound if the type doesn't exist.
	ListDocuments(ctx context.Context, typeID int) ([]core.Document, error)

	// SetApproval marks a document approved or not and recomputes counts.
	// Returns ErrNotFound if the document doesn't exist.
	SetApproval(ctx context.Context, docID string, approved bool) error

	// RemoveDocument deletes a document record and recomputes counts.
	// Returns ErrNotFound if the document doesn't exist.
	RemoveDocument(ctx context.Context, docID string) error
}

// OriginalFileStore keeps uploaded files in a flat directory keyed by file name.
type OriginalFileStore interface {
	// Store copies sourcePath into the store under fileName and returns the stored path.
	// If source and destination are the same file, nothing is copied.
	Store(ctx context.Context, fileName, sourcePath string) (string, error)

	// Path returns the stored path for fileName.
	// Returns ErrNotFound if no such file is stored.
	Path(ctx context.Context, fileName string) (string, error)

	// Remove deletes the stored file.
	// Returns ErrNotFound if no such file is stored.
	Remove(ctx context.Context, fileName string) error

	// Detach takes the stored file out from under fileName without deleting
	// it. The caller must either Restore or Discard the returned handle.
	// Returns ErrNotFound if no such file is stored.
	Detach(ctx context.Context, fileName string) (DetachedFile, error)
}

// DetachedFile is a stored original that no longer answers to its name.
type DetachedFile interface {
	// Restore puts the file back. A file stored under the same name since
	// the detach wins, and the detached copy is dropped.
	Restore() error

	// Discard deletes the detached copy.
	Discard() error
}

// ArtifactStore persists per-document extraction artifacts.
// Writes are atomic: readers see either the previous or the new content.
type ArtifactStore interface {
	// SaveChunks persists the raw parse output for a document.
	SaveChunks(ctx context.Context, set *core.ChunkSet) error

	// LoadChunks returns the persisted parse output.
	// Returns ErrNotFound if none was saved.
	LoadChunks(ctx context.Context, docID string) (*core.ChunkSet, error)

	// SaveResult persists the final extraction result for a document.
	SaveResult(ctx context.Context, rec *core.ExtractionRecord) error

	// LoadResult returns the persisted extraction result.
	// Returns ErrNotFound if none was saved.
	LoadResult(ctx context.Context, docID string) (*core.ExtractionRecord, error)

	// LatestResultByFile returns the most recent result recorded for a file name.
	// Returns ErrNotFound if there is none.
	LatestResultByFile(ctx context.Context, fileName string) (*core.ExtractionRecord, error)

	// Remove deletes every artifact of a document.
	// Returns ErrNotFound if the document has no artifacts.
	Remove(ctx context.Context, docID string) error
}

// NodeStore holds indexed nodes with their embeddings, plus per-document
// bookkeeping of which nodes belong to which document.
type NodeStore interface {
	// AddNodes stores nodes for one document and records them in the
	// document's RefDocInfo, replacing any previous nodes for that document.
	AddNodes(ctx context.Context, info *core.RefDocInfo, nodes ...*core.Node) error

	// DeleteDocument removes every node of a document and its RefDocInfo.
	// Returns the number of nodes removed.
	// Returns ErrNotFound if the document isn't indexed.
	DeleteDocument(ctx context.Context, docID string) (int, error)

	// GetRefDocInfo returns the bookkeeping record of one document.
	// Returns ErrNotFound if the document isn't indexed.
	GetRefDocInfo(ctx context.Context, docID string) (*core.RefDocInfo, error)

	// ListRefDocInfo returns the bookkeeping records of every indexed document.
	ListRefDocInfo(ctx context.Context) ([]*core.RefDocInfo, error)

	// GetNodes retrieves nodes by ID, in ordinal order.
	// Returns only the nodes that exist (no error for missing nodes).
	GetNodes(ctx context.Context, ids ...core.ID) ([]*core.Node, error)

	// CountNodes returns how many nodes are indexed for a document.
	CountNodes(ctx context.Context, docID string) (int, error)

	// FindSimilar returns nodes whose embedding has at least minSimilarity
	// with vector, restricted to docIDs when non-empty.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, docIDs []string, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// Close releases resources.
	Close() error
}
