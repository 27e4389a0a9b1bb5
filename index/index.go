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

package index

import (
	"context"
	"time"

	"github.com/poiesic/docflow/core"
)

// Adapter is what the pipeline needs from a chunk index.
type Adapter interface {
	// Index embeds and stores the chunks of one document, replacing any
	// previous version. Returns the number of nodes stored.
	Index(ctx context.Context, docID, fileName string, chunks []core.Chunk) (int, error)

	// Query answers prompt from the chunks of docIDs, or of every document
	// when docIDs is empty.
	Query(ctx context.Context, docIDs []string, prompt string, opts ...QueryOption) (*QueryResult, error)

	// Delete removes every node of a document. Returns the number removed.
	// Returns storage.ErrNotFound if the document isn't indexed.
	Delete(ctx context.Context, docID string) (int, error)

	// CountChunks returns how many nodes are indexed for a document.
	CountChunks(ctx context.Context, docID string) (int, error)

	// ListDocuments returns every indexed document.
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)

	// Document returns the full indexed text of a document.
	// Returns storage.ErrNotFound if the document isn't indexed.
	Document(ctx context.Context, docID string) (*DocumentText, error)
}

// QueryOption adjusts a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	system string
}

// WithSystemPrompt sends system as the system message of the completion.
func WithSystemPrompt(system string) QueryOption {
	return func(o *queryOptions) {
		o.system = system
	}
}

// Source is a node that contributed to an answer.
type Source struct {
	NodeID core.ID            `json:"node_id"`
	DocID  string             `json:"doc_id"`
	Text   string             `json:"text"`
	Page   *int               `json:"page,omitempty"`
	BBox   []core.BoundingBox `json:"bbox,omitempty"`
	Score  float32            `json:"score"`
}

// QueryResult is an answer with the nodes it was drawn from, best first.
// Text is empty when no node matched.
type QueryResult struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Best returns the highest scoring source, or nil if there is none.
func (r *QueryResult) Best() *Source {
	if r == nil || len(r.Sources) == 0 {
		return nil
	}
	return &r.Sources[0]
}

// DocumentInfo is the index's view of one document.
type DocumentInfo struct {
	DocID     string            `json:"doc_id"`
	FileName  string            `json:"file_name"`
	NodeCount int               `json:"node_count"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IndexedAt time.Time         `json:"indexed_at"`
}

// DocumentText is the concatenated node text of a document.
type DocumentText struct {
	DocID    string            `json:"doc_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
