package ingestion

import "errors"

var (
	// ErrPhaseStoreRequired is returned when a phase store is not provided.
	ErrPhaseStoreRequired = errors.New("phase store required")

	// ErrFileStoreRequired is returned when an original file store is not provided.
	ErrFileStoreRequired = errors.New("original file store required")

	// ErrArtifactStoreRequired is returned when an artifact store is not provided.
	ErrArtifactStoreRequired = errors.New("artifact store required")

	// ErrParserRequired is returned when a parser is not provided.
	ErrParserRequired = errors.New("parser required")

	// ErrIndexRequired is returned when an index adapter is not provided.
	ErrIndexRequired = errors.New("index adapter required")

	// ErrNotResumable is returned when extraction is requested for a
	// document that isn't waiting in the extraction phase.
	ErrNotResumable = errors.New("document is not awaiting extraction")

	// ErrDocumentDeleted is returned when a document disappears while it is
	// being processed.
	ErrDocumentDeleted = errors.New("document was deleted during processing")

	// ErrStillProcessing is returned by Result while a document has not
	// reached a terminal phase.
	ErrStillProcessing = errors.New("document is still processing")

	// ErrClosed is returned when the orchestrator has been closed.
	ErrClosed = errors.New("orchestrator is closed")
)
