package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSONAtomic encodes v as indented JSON into a temporary file next to
// path and renames it over path. Readers observe either the old or the new
// content, never a partial write.
func WriteJSONAtomic(path string, v any) error {
	return writeJSONAtomic(path, v, false)
}

// WriteJSONAtomicLocked is WriteJSONAtomic with an exclusive advisory lock
// held on the temporary file for the duration of the write.
func WriteJSONAtomicLocked(path string, v any) error {
	return writeJSONAtomic(path, v, true)
}

func writeJSONAtomic(path string, v any, locked bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp json: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if locked {
		if err := lockFile(tmp); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("lock temp json: %w", err)
		}
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp json: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("rename temp json: %w", err)
	}
	committed = true
	// Closing releases the lock, after the rename is visible.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp json: %w", err)
	}
	return nil
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
