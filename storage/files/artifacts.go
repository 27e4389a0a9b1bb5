package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

const (
	chunksFileName = "chunks.json"
	resultFileName = "result.json"
)

// Artifacts implements storage.ArtifactStore with one directory per document
// under a root directory.
type Artifacts struct {
	root   string
	logger *slog.Logger
}

var _ storage.ArtifactStore = (*Artifacts)(nil)

// NewArtifacts creates the store, creating root if needed.
func NewArtifacts(root string, logger *slog.Logger) (*Artifacts, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Artifacts{
		root:   root,
		logger: logger.With("component", "artifacts"),
	}, nil
}

// Dir returns the artifact directory of a document.
func (a *Artifacts) Dir(docID string) (string, error) {
	if strings.TrimSpace(docID) == "" {
		return "", core.ErrEmptyDocID
	}
	if strings.ContainsAny(docID, `/\`) || docID == "." || docID == ".." {
		return "", fmt.Errorf("%w: invalid document id %q", storage.ErrInvalidQuery, docID)
	}
	return filepath.Join(a.root, docID), nil
}

// SaveChunks writes chunks.json for the document.
func (a *Artifacts) SaveChunks(ctx context.Context, set *core.ChunkSet) error {
	dir, err := a.Dir(set.DocID)
	if err != nil {
		return err
	}
	if err := WriteJSONAtomic(filepath.Join(dir, chunksFileName), set); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

// LoadChunks reads chunks.json for the document.
func (a *Artifacts) LoadChunks(ctx context.Context, docID string) (*core.ChunkSet, error) {
	dir, err := a.Dir(docID)
	if err != nil {
		return nil, err
	}
	var set core.ChunkSet
	if err := readArtifact(filepath.Join(dir, chunksFileName), &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// SaveResult writes result.json for the document.
func (a *Artifacts) SaveResult(ctx context.Context, rec *core.ExtractionRecord) error {
	dir, err := a.Dir(rec.DocID)
	if err != nil {
		return err
	}
	if err := WriteJSONAtomic(filepath.Join(dir, resultFileName), rec); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// LoadResult reads result.json for the document.
func (a *Artifacts) LoadResult(ctx context.Context, docID string) (*core.ExtractionRecord, error) {
	dir, err := a.Dir(docID)
	if err != nil {
		return nil, err
	}
	var rec core.ExtractionRecord
	if err := readArtifact(filepath.Join(dir, resultFileName), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestResultByFile scans every document's result and returns the newest
// one recorded for fileName. Unreadable results are skipped.
func (a *Artifacts) LatestResultByFile(ctx context.Context, fileName string) (*core.ExtractionRecord, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, err
	}

	var latest *core.ExtractionRecord
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		rec, err := a.LoadResult(ctx, entry.Name())
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				a.logger.Warn("skipping unreadable result", "doc_id", entry.Name(), "err", err)
			}
			continue
		}
		if rec.FileName != fileName {
			continue
		}
		if latest == nil || rec.Timestamp.After(latest.Timestamp) {
			latest = rec
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// Remove deletes the document's artifact directory.
func (a *Artifacts) Remove(ctx context.Context, docID string) error {
	dir, err := a.Dir(docID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove artifacts: %w", err)
	}
	a.logger.Info("removed artifacts", "doc_id", docID)
	return nil
}

func readArtifact(path string, v any) error {
	if err := ReadJSON(path, v); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("%w: %s: %w", storage.ErrCorrupted, filepath.Base(path), err)
	}
	return nil
}
