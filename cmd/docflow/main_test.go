package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/pages"
)

// run executes the CLI against a temp data dir and returns stdout.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	full := append([]string{"docflow", "--log-level", "error", "--data-dir", dataDir}, args...)
	err := app.Run(full)
	return out.String(), err
}

func findCommand(t *testing.T, name string) *cli.Command {
	t.Helper()
	for _, cmd := range newApp().Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %s not found", name)
	return nil
}

func TestCommandFlags(t *testing.T) {
	t.Run("log-level has default value", func(t *testing.T) {
		var levelFlag *cli.StringFlag
		for _, flag := range newApp().Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "log-level" {
				levelFlag = f
				break
			}
		}
		require.NotNil(t, levelFlag)
		assert.Equal(t, "info", levelFlag.Value)
	})

	t.Run("report-interval has default value of 1", func(t *testing.T) {
		var reportFlag *cli.IntFlag
		for _, flag := range findCommand(t, "bulk-ingest").Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "report-interval" {
				reportFlag = f
				break
			}
		}
		require.NotNil(t, reportFlag)
		assert.Equal(t, 1, reportFlag.Value)
	})

	t.Run("ingest-text accepts a company", func(t *testing.T) {
		var companyFlag *cli.StringFlag
		for _, flag := range findCommand(t, "ingest-text").Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "company" {
				companyFlag = f
				break
			}
		}
		require.NotNil(t, companyFlag)
		assert.Empty(t, companyFlag.Value, "falls back to DOCFLOW_DEFAULT_COMPANY")
	})

	t.Run("data-dir has no default value", func(t *testing.T) {
		var dirFlag *cli.StringFlag
		for _, flag := range newApp().Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "data-dir" {
				dirFlag = f
				break
			}
		}
		require.NotNil(t, dirFlag)
		assert.Empty(t, dirFlag.Value, "falls back to DOCFLOW_DATA_DIR")
	})
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"docflow", "--log-level", "loud", "list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestCommandValidation(t *testing.T) {
	dataDir := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"status needs an id", []string{"status"}, "document id is required"},
		{"result needs an id", []string{"result"}, "document id is required"},
		{"delete needs an id", []string{"delete"}, "document id is required"},
		{"approve needs an id", []string{"approve"}, "document id is required"},
		{"ingest needs files", []string{"ingest"}, "at least one file"},
		{"ingest-text needs a name", []string{"ingest-text"}, "file name is required"},
		{"bulk-ingest needs a dir", []string{"bulk-ingest"}, "directory is required"},
		{"bulk-ingest report interval", []string{"bulk-ingest", "--report-interval", "0", "."}, "report-interval"},
		{"bulk-ingest missing dir", []string{"bulk-ingest", filepath.Join(dataDir, "nope")}, "nope"},
		{"extract-pages needs a name", []string{"extract-pages", "--page", "1"}, "file name is required"},
		{"extract-pages needs pages", []string{"extract-pages", "booklet.pdf"}, `"page"`},
		{"search needs a query", []string{"search"}, "query is required"},
		{"search max hits", []string{"search", "--max-hits", "0", "reduction"}, "max-hits"},
		{"reembed report interval", []string{"reembed", "--report-interval", "0"}, "report-interval"},
		{"invalid worker count", []string{"bulk-ingest", "--count-workers", "-1", "."}, "count workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dataDir, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTypesCommand(t *testing.T) {
	dataDir := t.TempDir()

	out, err := run(t, dataDir, "types", "--create", "Benefit Booklets")
	require.NoError(t, err)
	var created core.DocumentType
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "Benefit Booklets", created.Title)
	assert.Positive(t, created.ID)

	out, err = run(t, dataDir, "types")
	require.NoError(t, err)
	var types []core.DocumentType
	require.NoError(t, json.Unmarshal([]byte(out), &types))
	require.Len(t, types, 1)
	assert.Equal(t, created.ID, types[0].ID)
}

func TestStatusCommand_UnknownDocument(t *testing.T) {
	out, err := run(t, t.TempDir(), "status", "no-such-doc")
	require.NoError(t, err)
	assert.Equal(t, "uploading", strings.TrimSpace(out))
}

func TestListCommand_Empty(t *testing.T) {
	out, err := run(t, t.TempDir(), "list")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestDeleteCommand_UnknownDocument(t *testing.T) {
	out, err := run(t, t.TempDir(), "delete", "ghost")
	require.NoError(t, err, "missing pieces are warnings, not failures")
	assert.Contains(t, out, `"status": "success"`)
}

func TestReembedCommand_Empty(t *testing.T) {
	out, err := run(t, t.TempDir(), "reembed")
	require.NoError(t, err, "nothing indexed means nothing to embed")
	assert.Contains(t, out, `"nodes": 0`)
}

func TestExtractPagesCommand(t *testing.T) {
	dataDir := t.TempDir()
	originals := filepath.Join(dataDir, "original_files")
	require.NoError(t, os.MkdirAll(originals, 0o755))
	require.NoError(t, pages.WriteTestPDF(filepath.Join(originals, "booklet.pdf"), 3))

	out, err := run(t, dataDir, "extract-pages", "--page", "2", "--page", "3", "booklet.pdf")
	require.NoError(t, err)

	var resp extractPagesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, filepath.Join(dataDir, "extracted_pages", "booklet_benefit_summary.pdf"), resp.OutputPath)
	assert.Equal(t, []int{2, 3}, resp.Pages)
	n, err := pages.Count(resp.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = run(t, dataDir, "extract-pages", "--page", "1", "missing.pdf")
	assert.Error(t, err)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.txt", ".hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	paths, err := listFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.pdf")}, paths)
}
