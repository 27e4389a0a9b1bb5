package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID identifies an indexed node.
// It is derived from content so re-indexing the same chunk is idempotent.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// NodeIDFor derives the node ID of the ordinal'th chunk of a document.
// The document ID and ordinal are mixed in so identical text in two
// documents, or twice in one document, yields distinct nodes.
func NodeIDFor(docID string, ordinal int, text string) ID {
	return IDFromContent(docID + "\x00" + strconv.Itoa(ordinal) + "\x00" + text)
}

// BoundingBox locates a chunk on its page in normalized coordinates.
type BoundingBox struct {
	Left   float64 `json:"l"`
	Top    float64 `json:"t"`
	Right  float64 `json:"r"`
	Bottom float64 `json:"b"`
}

// Chunk is a parsed fragment of a document.
type Chunk struct {
	Text      string        `json:"text"`
	Page      *int          `json:"page,omitempty"`
	BBox      []BoundingBox `json:"bbox,omitempty"`
	ChunkType string        `json:"chunk_type,omitempty"`
}

// Document is the phase-store view of a unit of ingestion.
// Chunks and the extraction result are persisted as separate artifacts.
type Document struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Phase     Phase     `json:"phase"`
	Error     string    `json:"error,omitempty"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// FailedPhase is the phase the document was in when it moved to error.
	FailedPhase Phase `json:"failed_phase,omitempty"`
}

// DocumentType groups documents and carries counts derived from them.
type DocumentType struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Uploaded      int        `json:"uploaded"`
	ReviewPending int        `json:"review_pending"`
	Approved      int        `json:"approved"`
	SetupRequired bool       `json:"setup_required"`
	Documents     []Document `json:"documents"`
}

// Recount recomputes the aggregate counts from the document list.
// Counts are never adjusted incrementally.
func (t *DocumentType) Recount() {
	t.Uploaded = len(t.Documents)
	t.Approved = 0
	t.ReviewPending = 0
	for _, d := range t.Documents {
		switch {
		case d.Approved:
			t.Approved++
		case d.Phase == PhaseCompleted:
			t.ReviewPending++
		}
	}
}

// Node is a chunk as stored in the index.
type Node struct {
	ID        ID            `json:"id"`
	DocID     string        `json:"doc_id"`
	Ordinal   int           `json:"ordinal"`
	FileName  string        `json:"file_name"`
	Text      string        `json:"text"`
	Page      *int          `json:"page,omitempty"`
	BBox      []BoundingBox `json:"bbox,omitempty"`
	ChunkType string        `json:"chunk_type,omitempty"`
	Vector    []float32     `json:"vector,omitempty"`
}

// RefDocInfo is the index's own bookkeeping for one document.
type RefDocInfo struct {
	DocID     string            `json:"doc_id"`
	NodeIDs   []ID              `json:"node_ids"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IndexedAt time.Time         `json:"indexed_at"`
}

// SearchResult represents a node match with its relevance score.
type SearchResult struct {
	Node  *Node
	Score float32
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// ExtractionStatus is the outcome recorded in an extraction artifact.
type ExtractionStatus string

const (
	ExtractionCompleted ExtractionStatus = "completed"
	ExtractionFailed    ExtractionStatus = "error"
)

// ChunkSet is the raw parse output persisted for a document.
type ChunkSet struct {
	DocID        string  `json:"doc_id"`
	DocumentType string  `json:"document_type,omitempty"`
	FileName     string  `json:"file_name"`
	Chunks       []Chunk `json:"chunks"`
}

// ExtractionRecord is the final persisted extraction result for a document.
type ExtractionRecord struct {
	ExtractionID string            `json:"extraction_id"`
	DocID        string            `json:"doc_id"`
	DocumentType string            `json:"document_type,omitempty"`
	FileName     string            `json:"file_name"`
	Status       ExtractionStatus  `json:"status"`
	Result       *InsuranceSummary `json:"result"`
	Backfilled   []string          `json:"backfilled,omitempty"`
	Error        string            `json:"error,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}
