package search

import "errors"

var (
	// ErrNodeStoreRequired is returned when a node store is not provided.
	ErrNodeStoreRequired = errors.New("node store required")

	// ErrEmbedderRequired is returned when no embedder is available.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmptyQuery is returned for a query with no text.
	ErrEmptyQuery = errors.New("query is empty")
)
