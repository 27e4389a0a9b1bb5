package rag

import "errors"

var (
	// ErrIndexRequired is returned when no index adapter is provided.
	ErrIndexRequired = errors.New("index adapter is required")

	// ErrNotIndexed is returned when a document still has no indexed chunks
	// after every wait attempt.
	ErrNotIndexed = errors.New("document has no indexed chunks")

	// ErrConfigNotFound is returned when a company has no prompt config.
	ErrConfigNotFound = errors.New("company config not found")

	// ErrInvalidCompany is returned for company names that can't name a file.
	ErrInvalidCompany = errors.New("invalid company name")
)
