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

package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
	"github.com/poiesic/docflow/storage/files"
)

const (
	// DefaultFileName is the name of the backing file inside the data directory.
	DefaultFileName = "document_types.json"

	// firstTypeID - 1; new types get max(existing IDs, baseTypeID) + 1.
	baseTypeID = 100
)

// PhaseStore implements storage.PhaseStore over a single JSON file holding
// every document type and its documents.
//
// Every mutation is a read-modify-write of the whole collection. It runs
// under a process-wide mutex and an advisory lock on a sidecar lock file,
// and the new content is written to a locked temporary file that is renamed
// over the primary file.
type PhaseStore struct {
	path     string
	lockPath string
	mu       sync.Mutex
	logger   *slog.Logger
	now      func() time.Time
}

var _ storage.PhaseStore = (*PhaseStore)(nil)

// Option configures a PhaseStore.
type Option func(*PhaseStore)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *PhaseStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *PhaseStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPhaseStore opens the store backed by path, initializing it if missing.
func NewPhaseStore(path string, opts ...Option) (*PhaseStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create phase store dir: %w", err)
	}
	s := &PhaseStore{
		path:     path,
		lockPath: path + ".lock",
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "phase-store")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.loadOrInitialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *PhaseStore) Path() string {
	return s.path
}

// load reads the collection. A missing or zero-length file reads as an
// empty collection and is reported as missing. Must be called with mu held.
func (s *PhaseStore) load() ([]core.DocumentType, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("read phase store: %w", err)
	}
	if len(data) == 0 {
		return []core.DocumentType{}, true, nil
	}

	var types []core.DocumentType
	if err := json.Unmarshal(data, &types); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", storage.ErrCorrupted, s.path, err)
	}
	if types == nil {
		types = []core.DocumentType{}
	}
	return types, false, nil
}

// loadOrInitialize is load that also writes an empty collection in place
// of a missing file. Must be called with mu held.
func (s *PhaseStore) loadOrInitialize() ([]core.DocumentType, error) {
	types, missing, err := s.load()
	if err != nil || !missing {
		return types, err
	}

	unlock, err := files.LockPath(s.lockPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn("failed to release phase store lock", "err", err)
		}
	}()

	// another process may have written while we waited for the lock
	types, missing, err = s.load()
	if err != nil || !missing {
		return types, err
	}
	s.logger.Warn("phase store missing or empty, initializing", "path", s.path)
	if err := files.WriteJSONAtomicLocked(s.path, types); err != nil {
		return nil, fmt.Errorf("initialize phase store: %w", err)
	}
	return types, nil
}

// view runs fn against a snapshot of the collection.
func (s *PhaseStore) view(fn func(types []core.DocumentType) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	types, err := s.loadOrInitialize()
	if err != nil {
		return err
	}
	return fn(types)
}

// update runs fn under both locks and persists the modified collection
// if fn succeeds. Counts are recomputed for every type before writing.
func (s *PhaseStore) update(fn func(types []core.DocumentType) ([]core.DocumentType, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := files.LockPath(s.lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn("failed to release phase store lock", "err", err)
		}
	}()

	types, _, err := s.load()
	if err != nil {
		return err
	}
	types, err = fn(types)
	if err != nil {
		return err
	}
	for i := range types {
		types[i].Recount()
	}
	if err := files.WriteJSONAtomicLocked(s.path, types); err != nil {
		return fmt.Errorf("write phase store: %w", err)
	}
	return nil
}

// findDocument returns the type index and document index of docID.
func findDocument(types []core.DocumentType, docID string) (int, int, bool) {
	for ti := range types {
		for di := range types[ti].Documents {
			if types[ti].Documents[di].ID == docID {
				return ti, di, true
			}
		}
	}
	return -1, -1, false
}

func findType(types []core.DocumentType, typeID int) (int, bool) {
	for i := range types {
		if types[i].ID == typeID {
			return i, true
		}
	}
	return -1, false
}

// CreateDocumentType adds a type or returns the existing one with the same title.
func (s *PhaseStore) CreateDocumentType(ctx context.Context, title string) (*core.DocumentType, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: empty document type title", storage.ErrInvalidQuery)
	}

	var result core.DocumentType
	err := s.update(func(types []core.DocumentType) ([]core.DocumentType, error) {
		maxID := baseTypeID
		for _, t := range types {
			if strings.EqualFold(t.Title, title) {
				result = t
				return types, nil
			}
			if t.ID > maxID {
				maxID = t.ID
			}
		}
		created := core.DocumentType{
			ID:            maxID + 1,
			Title:         title,
			SetupRequired: true,
			Documents:     []core.Document{},
		}
		result = created
		s.logger.Info("created document type", "type_id", created.ID, "title", title)
		return append(types, created), nil
	})
	if err != nil {
		return nil, err
	}
	result.Recount()
	return &result, nil
}

// DocumentTypes returns the full collection.
func (s *PhaseStore) DocumentTypes(ctx context.Context) ([]core.DocumentType, error) {
	var out []core.DocumentType
	err := s.view(func(types []core.DocumentType) error {
		out = types
		return nil
	})
	return out, err
}

// AppendDocument adds doc to the type identified by typeID.
func (s *PhaseStore) AppendDocument(ctx context.Context, typeID int, doc core.Document) error {
	if err := core.ValidateDocument(&doc); err != nil {
		return err
	}
	now := s.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	return s.update(func(types []core.DocumentType) ([]core.DocumentType, error) {
		ti, ok := findType(types, typeID)
		if !ok {
			return nil, fmt.Errorf("document type %d: %w", typeID, storage.ErrNotFound)
		}
		if _, _, exists := findDocument(types, doc.ID); exists {
			return nil, fmt.Errorf("document %s: %w", doc.ID, storage.ErrDuplicateKey)
		}
		types[ti].Documents = append(types[ti].Documents, doc)
		return types, nil
	})
}

// SetPhase moves an existing document to phase.
func (s *PhaseStore) SetPhase(ctx context.Context, docID string, phase core.Phase, message string) error {
	return s.update(func(types []core.DocumentType) ([]core.DocumentType, error) {
		ti, di, ok := findDocument(types, docID)
		if !ok {
			return nil, fmt.Errorf("document %s: %w", docID, storage.ErrNotFound)
		}
		doc := &types[ti].Documents[di]
		if err := core.ValidateTransition(doc.Phase, phase); err != nil {
			return nil, err
		}
		if phase == core.PhaseError {
			doc.FailedPhase = doc.Phase
		}
		doc.Phase = phase
		doc.UpdatedAt = s.now()
		if phase == core.PhaseError {
			doc.Error = message
		} else {
			doc.Error = ""
		}
		s.logger.Debug("phase updated", "doc_id", docID, "phase", phase)
		return types, nil
	})
}

// GetPhase returns the current phase of docID.
func (s *PhaseStore) GetPhase(ctx context.Context, docID string) (core.Phase, error) {
	doc, _, err := s.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	return doc.Phase, nil
}

// GetDocument returns a copy of the document and its type ID.
func (s *PhaseStore) GetDocument(ctx context.Context, docID string) (*core.Document, int, error) {
	var (
		doc    core.Document
		typeID int
	)
	err := s.view(func(types []core.DocumentType) error {
		ti, di, ok := findDocument(types, docID)
		if !ok {
			return fmt.Errorf("document %s: %w", docID, storage.ErrNotFound)
		}
		doc = types[ti].Documents[di]
		typeID = types[ti].ID
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &doc, typeID, nil
}

// ListDocuments returns the documents of one type.
func (s *PhaseStore) ListDocuments(ctx context.Context, typeID int) ([]core.Document, error) {
	var docs []core.Document
	err := s.view(func(types []core.DocumentType) error {
		ti, ok := findType(types, typeID)
		if !ok {
			return fmt.Errorf("document type %d: %w", typeID, storage.ErrNotFound)
		}
		docs = append([]core.Document(nil), types[ti].Documents...)
		return nil
	})
	return docs, err
}

// SetApproval records the review decision for a document.
func (s *PhaseStore) SetApproval(ctx context.Context, docID string, approved bool) error {
	return s.update(func(types []core.DocumentType) ([]core.DocumentType, error) {
		ti, di, ok := findDocument(types, docID)
		if !ok {
			return nil, fmt.Errorf("document %s: %w", docID, storage.ErrNotFound)
		}
		types[ti].Documents[di].Approved = approved
		types[ti].Documents[di].UpdatedAt = s.now()
		return types, nil
	})
}

// RemoveDocument deletes the document record.
func (s *PhaseStore) RemoveDocument(ctx context.Context, docID string) error {
	return s.update(func(types []core.DocumentType) ([]core.DocumentType, error) {
		ti, di, ok := findDocument(types, docID)
		if !ok {
			return nil, fmt.Errorf("document %s: %w", docID, storage.ErrNotFound)
		}
		docs := types[ti].Documents
		types[ti].Documents = append(docs[:di:di], docs[di+1:]...)
		return types, nil
	})
}
