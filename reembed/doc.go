// Package reembed rebuilds the embeddings of indexed nodes after the
// embedding model changes.
//
// Documents are processed one at a time: their nodes are embedded in
// batches with retry and exponential backoff, normalized for the node
// store's dot-product similarity, and written back in a single replace so
// a document is never left with a mix of old and new vectors.
package reembed
