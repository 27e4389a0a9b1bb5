package deletion

import "errors"

var (
	// ErrPhaseStoreRequired indicates a coordinator was built without a phase store.
	ErrPhaseStoreRequired = errors.New("phase store is required")

	// ErrFileStoreRequired indicates a coordinator was built without an original file store.
	ErrFileStoreRequired = errors.New("original file store is required")

	// ErrArtifactStoreRequired indicates a coordinator was built without an artifact store.
	ErrArtifactStoreRequired = errors.New("artifact store is required")

	// ErrIndexRequired indicates a coordinator was built without an index.
	ErrIndexRequired = errors.New("index is required")
)
