// Package ingestion drives documents through the processing lifecycle.
//
// The Orchestrator moves each document through
//
//	uploading → parsing → embedding → extraction → rag → completed
//
// recording every phase in the phase store. Parsing and indexing run in the
// caller's goroutine, so a document is searchable once Ingest returns.
// Extraction and RAG backfill run afterwards as a supervised Task. At most
// one such task runs per document; a second trigger returns the first.
//
// Any failure moves the document to the error phase with a message.
// Adapter errors never escape a background task or a bulk worker.
package ingestion
