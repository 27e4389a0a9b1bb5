package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

// OriginalFiles implements storage.OriginalFileStore over a flat directory.
type OriginalFiles struct {
	dir    string
	logger *slog.Logger
}

var _ storage.OriginalFileStore = (*OriginalFiles)(nil)

// NewOriginalFiles creates the store, creating dir if needed.
func NewOriginalFiles(dir string, logger *slog.Logger) (*OriginalFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create original files dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OriginalFiles{
		dir:    dir,
		logger: logger.With("component", "original-files"),
	}, nil
}

// Dir returns the directory files are stored in.
func (o *OriginalFiles) Dir() string {
	return o.dir
}

func (o *OriginalFiles) pathFor(fileName string) (string, error) {
	name := filepath.Base(fileName)
	if err := core.ValidateFileName(name); err != nil {
		return "", err
	}
	return filepath.Join(o.dir, name), nil
}

// Store copies sourcePath to the store. Only file contents are copied, no
// metadata, so the copy behaves on network filesystems that reject chmod or
// chtimes. The copy lands under a temporary name and is renamed into place.
func (o *OriginalFiles) Store(ctx context.Context, fileName, sourcePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := o.pathFor(fileName)
	if err != nil {
		return "", err
	}

	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	if destInfo, err := os.Stat(dest); err == nil && os.SameFile(srcInfo, destInfo) {
		o.logger.Info("source and destination are the same file, skipping copy", "path", dest)
		return dest, nil
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(o.dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("copy file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	o.logger.Info("stored original file", "file_name", fileName, "path", dest)
	return dest, nil
}

// Path returns the stored location of fileName.
func (o *OriginalFiles) Path(ctx context.Context, fileName string) (string, error) {
	p, err := o.pathFor(fileName)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return p, nil
}

// Remove deletes the stored copy of fileName.
func (o *OriginalFiles) Remove(ctx context.Context, fileName string) error {
	p, err := o.pathFor(fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return err
	}
	o.logger.Info("removed original file", "file_name", fileName)
	return nil
}

// Detach renames the stored copy of fileName to a hidden name in the same
// directory.
func (o *OriginalFiles) Detach(ctx context.Context, fileName string) (storage.DetachedFile, error) {
	p, err := o.pathFor(fileName)
	if err != nil {
		return nil, err
	}
	hidden := filepath.Join(o.dir, "."+filepath.Base(p)+".detached-"+uuid.NewString())
	if err := os.Rename(p, hidden); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("detach original file: %w", err)
	}
	return &detachedFile{store: o, fileName: fileName, path: p, hidden: hidden}, nil
}

type detachedFile struct {
	store    *OriginalFiles
	fileName string
	path     string
	hidden   string
}

func (d *detachedFile) Restore() error {
	// a hard link never replaces an existing file
	err := os.Link(d.hidden, d.path)
	switch {
	case errors.Is(err, fs.ErrExist):
		d.store.logger.Info("original file stored again while detached, keeping the newer copy", "file_name", d.fileName)
	case err != nil:
		if _, statErr := os.Lstat(d.path); !errors.Is(statErr, fs.ErrNotExist) {
			return fmt.Errorf("restore original file: %w", err)
		}
		if err := os.Rename(d.hidden, d.path); err != nil {
			return fmt.Errorf("restore original file: %w", err)
		}
		return nil
	}
	if err := os.Remove(d.hidden); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("drop detached copy: %w", err)
	}
	return nil
}

func (d *detachedFile) Discard() error {
	if err := os.Remove(d.hidden); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discard original file: %w", err)
	}
	d.store.logger.Info("removed original file", "file_name", d.fileName)
	return nil
}
