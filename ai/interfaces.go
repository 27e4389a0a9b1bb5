package ai

import (
	"context"

	"github.com/poiesic/docflow/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ExtractionAgent turns document chunks into a structured insurance summary.
// Implementations must be thread-safe for concurrent use.
type ExtractionAgent interface {
	// Extract reads the chunks of one document and returns the fields it
	// could determine. Fields the agent could not find are left nil inside
	// their section. Sections that don't apply to the document are nil.
	Extract(ctx context.Context, req ExtractionRequest) (*core.InsuranceSummary, error)
}

// Completer answers a single prompt with free text.
// Used to synthesize answers from retrieved context.
type Completer interface {
	// Complete sends an optional system prompt and a user prompt and
	// returns the model's reply.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ExtractionAgent returns the structured extraction service.
	ExtractionAgent() ExtractionAgent

	// Completer returns the free text completion service.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
