package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginalFiles_StoreAndPath(t *testing.T) {
	ctx := context.Background()
	store, err := NewOriginalFiles(filepath.Join(t.TempDir(), "original_files"), nil)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "upload-123")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	stored, err := store.Store(ctx, "plan.pdf", src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "plan.pdf"), stored)

	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	p, err := store.Path(ctx, "plan.pdf")
	require.NoError(t, err)
	assert.Equal(t, stored, p)
}

func TestOriginalFiles_SameFileIsNoop(t *testing.T) {
	ctx := context.Background()
	store, err := NewOriginalFiles(t.TempDir(), nil)
	require.NoError(t, err)

	canonical := filepath.Join(store.Dir(), "plan.pdf")
	require.NoError(t, os.WriteFile(canonical, []byte("in place"), 0o600))
	before, err := os.Stat(canonical)
	require.NoError(t, err)

	stored, err := store.Store(ctx, "plan.pdf", canonical)
	require.NoError(t, err)
	assert.Equal(t, canonical, stored)

	after, err := os.Stat(canonical)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "file must not be replaced")
}

func TestOriginalFiles_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := NewOriginalFiles(t.TempDir(), nil)
	require.NoError(t, err)

	t.Run("missing source", func(t *testing.T) {
		_, err := store.Store(ctx, "plan.pdf", filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("path of unknown file", func(t *testing.T) {
		_, err := store.Path(ctx, "nope.pdf")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("remove unknown file", func(t *testing.T) {
		assert.ErrorIs(t, store.Remove(ctx, "nope.pdf"), storage.ErrNotFound)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := store.Path(ctx, "")
		assert.ErrorIs(t, err, core.ErrInvalidFileName)
	})
}

func TestOriginalFiles_DirectoryComponentsStripped(t *testing.T) {
	ctx := context.Background()
	store, err := NewOriginalFiles(t.TempDir(), nil)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "x")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	stored, err := store.Store(ctx, "../../escape.txt", src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "escape.txt"), stored)

	require.NoError(t, store.Remove(ctx, "escape.txt"))
	_, err = store.Path(ctx, "escape.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOriginalFiles_Detach(t *testing.T) {
	ctx := context.Background()
	store, err := NewOriginalFiles(t.TempDir(), nil)
	require.NoError(t, err)

	write := func(content string) string {
		src := filepath.Join(t.TempDir(), "upload")
		require.NoError(t, os.WriteFile(src, []byte(content), 0o600))
		return src
	}

	t.Run("discard", func(t *testing.T) {
		_, err := store.Store(ctx, "plan.pdf", write("v1"))
		require.NoError(t, err)

		detached, err := store.Detach(ctx, "plan.pdf")
		require.NoError(t, err)
		_, err = store.Path(ctx, "plan.pdf")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, detached.Discard())
		entries, err := os.ReadDir(store.Dir())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("restore", func(t *testing.T) {
		_, err := store.Store(ctx, "plan.pdf", write("v1"))
		require.NoError(t, err)

		detached, err := store.Detach(ctx, "plan.pdf")
		require.NoError(t, err)
		require.NoError(t, detached.Restore())

		p, err := store.Path(ctx, "plan.pdf")
		require.NoError(t, err)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "v1", string(data))

		entries, err := os.ReadDir(store.Dir())
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		require.NoError(t, store.Remove(ctx, "plan.pdf"))
	})

	t.Run("restore keeps a newer copy", func(t *testing.T) {
		_, err := store.Store(ctx, "plan.pdf", write("v1"))
		require.NoError(t, err)

		detached, err := store.Detach(ctx, "plan.pdf")
		require.NoError(t, err)
		_, err = store.Store(ctx, "plan.pdf", write("v2"))
		require.NoError(t, err)
		require.NoError(t, detached.Restore())

		p, err := store.Path(ctx, "plan.pdf")
		require.NoError(t, err)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))

		entries, err := os.ReadDir(store.Dir())
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		require.NoError(t, store.Remove(ctx, "plan.pdf"))
	})

	t.Run("unknown file", func(t *testing.T) {
		_, err := store.Detach(ctx, "nope.pdf")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
