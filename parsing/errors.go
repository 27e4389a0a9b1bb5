package parsing

import "errors"

var (
	// ErrUnparseable indicates that every applicable reader failed.
	ErrUnparseable = errors.New("file could not be parsed")

	// ErrNoText indicates a reader succeeded but produced no usable text.
	ErrNoText = errors.New("no extractable text")
)
