package reembed

import "errors"

var (
	// ErrNodeStoreRequired is returned when a node store is not provided.
	ErrNodeStoreRequired = errors.New("node store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingMismatch is returned when the embedder answers with a
	// different number of vectors than texts sent.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
