package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - FileName must be a bare, non-empty file name
//   - Phase must be a known phase
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocID)
	}

	if err := ValidateFileName(doc.FileName); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !doc.Phase.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidDocument, ErrInvalidPhase, doc.Phase)
	}

	return nil
}

// ValidateFileName checks that name can be used as a key in a flat directory.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyFileName
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}

// ValidateChunk validates a parsed Chunk.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Page != nil && *chunk.Page < 0 {
		return fmt.Errorf("%w: negative page %d", ErrInvalidChunk, *chunk.Page)
	}

	return nil
}
