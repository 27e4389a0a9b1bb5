// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyDocID indicates the document ID is empty.
	ErrEmptyDocID = errors.New("document id cannot be empty")

	// ErrEmptyFileName indicates the file name is empty.
	ErrEmptyFileName = errors.New("file name cannot be empty")

	// ErrInvalidFileName indicates the file name contains path separators.
	ErrInvalidFileName = errors.New("file name must not contain path separators")

	// ErrEmptyContent indicates the chunk text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidPhase indicates an unknown Phase value.
	ErrInvalidPhase = errors.New("invalid phase")

	// ErrInvalidTransition indicates a phase change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// Extraction schema errors
var (
	// ErrInvalidSchema indicates an extraction payload does not match the schema.
	ErrInvalidSchema = errors.New("invalid extraction schema")

	// ErrUnknownSection indicates a section name not in the schema.
	ErrUnknownSection = errors.New("unknown section")

	// ErrUnknownField indicates a field name not in its section.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidField indicates inconsistent provenance on an extracted field.
	ErrInvalidField = errors.New("invalid extraction field")
)
