package index

import "errors"

var (
	// ErrNodeStoreRequired is returned when no node store is provided.
	ErrNodeStoreRequired = errors.New("node store is required")

	// ErrAIProviderRequired is returned when no AI provider is provided.
	ErrAIProviderRequired = errors.New("AI provider is required")

	// ErrEmbedderRequired is returned when the provider has no embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrCompleterRequired is returned by Query when no completer is configured.
	ErrCompleterRequired = errors.New("completer is required for queries")

	// ErrNoChunks is returned when a document with no chunks is indexed.
	ErrNoChunks = errors.New("no chunks to index")

	// ErrEmbeddingMismatch is returned when the embedder returns the wrong
	// number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding count does not match chunk count")
)
