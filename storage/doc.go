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

// Package storage provides the storage abstraction layer for docflow.
//
// This package defines the interfaces every pipeline component persists
// through, decoupling the orchestrator from the concrete backends:
//
//   - PhaseStore: document types, documents and their processing phase
//   - OriginalFileStore: uploaded files, keyed by file name
//   - ArtifactStore: per-document parse output and extraction results
//   - NodeStore: indexed nodes, their embeddings and per-document bookkeeping
//
// # Implementations
//
//   - storage/jsonfile: PhaseStore over a single atomically rewritten JSON file
//   - storage/files: OriginalFileStore and ArtifactStore on the local filesystem
//   - storage/badger: NodeStore on BadgerDB
//
// # Errors
//
// Implementations report missing records with ErrNotFound and duplicate
// inserts with ErrDuplicateKey so callers can use errors.Is regardless of
// backend.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use from multiple
// goroutines. The PhaseStore implementation is additionally safe across
// processes sharing the same data directory.
package storage
