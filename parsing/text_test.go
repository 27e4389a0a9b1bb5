package parsing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "", SanitizeText(""))
	assert.Equal(t, "ab\ncd\te", SanitizeText("  a\x00b\ncd\te\x07  "))
	assert.Equal(t, "plain", SanitizeText("plain"))
}

func TestTextReader_Read(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("hello\x00 world\n"))

	pages, err := NewTextReader().Read(context.Background(), "notes.txt", path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "hello world", pages[0].Text)
	assert.Nil(t, pages[0].Number)
}

func TestTextReader_DropsInvalidUTF8(t *testing.T) {
	path := writeFile(t, "mixed.txt", []byte("caf\xff\xfe is open every day of the week"))

	pages, err := NewTextReader().Read(context.Background(), "mixed.txt", path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "caf is open every day of the week", pages[0].Text)
}

func TestTextReader_RejectsBinary(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0xff
	}
	path := writeFile(t, "blob.bin", data)

	_, err := NewTextReader().Read(context.Background(), "blob.bin", path)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestTextReader_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.txt", nil)

	pages, err := NewTextReader().Read(context.Background(), "empty.txt", path)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestTextReader_MissingFile(t *testing.T) {
	_, err := NewTextReader().Read(context.Background(), "gone.txt", filepath.Join(t.TempDir(), "gone.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
