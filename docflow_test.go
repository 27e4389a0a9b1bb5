package docflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/ai/mock"
	"github.com/poiesic/docflow/config"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/ingestion"
	"github.com/poiesic/docflow/pages"
	"github.com/poiesic/docflow/storage"
)

const bookletText = `Dental Care
Annual deductible: $50 single, $100 family.
Basic services reimbursed at 80%.`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.ConfigsDir = filepath.Join(cfg.DataDir, "configs")
	cfg.RAGAttempts = 1
	cfg.RAGDelay = time.Millisecond
	return cfg
}

func openTestService(t *testing.T) (*Service, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider()
	svc, err := Open(testConfig(t), WithProvider(provider), WithInMemoryIndex())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, provider
}

func TestOpen(t *testing.T) {
	t.Run("opens over a fresh data dir", func(t *testing.T) {
		cfg := testConfig(t)
		svc, err := Open(cfg, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, svc.Orchestrator())
		require.NoError(t, svc.Close())

		_, err = os.Stat(cfg.NodeStoreDir())
		assert.NoError(t, err, "node store is on disk")
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.CountWorkers = 0
		svc, err := Open(cfg, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("error with data dir that is a file", func(t *testing.T) {
		cfg := testConfig(t)
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))
		cfg.DataDir = tmpFile

		svc, err := Open(cfg, WithProvider(mock.NewMockProvider()), WithInMemoryIndex())
		assert.Error(t, err)
		assert.Nil(t, svc)
	})
}

func TestService_Lifecycle(t *testing.T) {
	svc, provider := openTestService(t)
	ctx := context.Background()

	resp, err := svc.Upload(ctx, "dental.txt", strings.NewReader(bookletText), 0)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, resp.Status)
	require.Len(t, resp.DocIDs, 1)
	docID := resp.DocIDs[0]

	phase, err := svc.Status(ctx, docID)
	require.NoError(t, err)
	assert.NotEqual(t, core.PhaseUploading, phase, "searchable once upload returns")

	svc.Orchestrator().Wait()
	phase, err = svc.Status(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCompleted, phase)
	assert.Equal(t, 1, provider.GetMockAgent().CallCount())

	rec, err := svc.Result(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, core.ExtractionCompleted, rec.Status)

	latest, err := svc.LatestResult(ctx, "dental.txt")
	require.NoError(t, err)
	assert.Equal(t, rec.ExtractionID, latest.ExtractionID)

	docs, err := svc.ListIngested(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, docID, docs[0].DocID)
	assert.Equal(t, "dental.txt", docs[0].FileName)

	text, err := svc.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Contains(t, text.Text, "Annual deductible")

	types, err := svc.DocumentTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, ingestion.DefaultDocumentType, types[0].Title)
	assert.Equal(t, 1, types[0].Uploaded)
	assert.Equal(t, 1, types[0].ReviewPending)

	require.NoError(t, svc.SetApproval(ctx, docID, true))
	types, err = svc.DocumentTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, types[0].Approved)
	assert.Equal(t, 0, types[0].ReviewPending)

	require.NoError(t, svc.Delete(ctx, docID))

	phase, err = svc.Status(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseUploading, phase, "unknown ids read as uploading")
	docs, err = svc.ListIngested(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	_, err = svc.Result(ctx, docID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestService_Upload_InvalidName(t *testing.T) {
	svc, _ := openTestService(t)
	_, err := svc.Upload(context.Background(), "", strings.NewReader("x"), 0)
	assert.Error(t, err)
}

func TestService_BulkIngest(t *testing.T) {
	svc, _ := openTestService(t)
	dir := t.TempDir()

	var paths []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(bookletText), 0o644))
		paths = append(paths, p)
	}

	report, err := svc.BulkIngest(context.Background(), paths, ingestion.BulkOptions{})
	require.NoError(t, err)
	assert.Len(t, report.Documents, 3)
	assert.Empty(t, report.Failures)
}

func TestService_ResumePending(t *testing.T) {
	svc, provider := openTestService(t)
	ctx := context.Background()

	typ, err := svc.CreateDocumentType(ctx, "Booklets")
	require.NoError(t, err)

	// a document left in extraction by a crash: indexed, recorded, never extracted
	doc := core.Document{ID: "doc-crashed", FileName: "crashed.txt", Phase: core.PhaseUploading}
	require.NoError(t, svc.phases.AppendDocument(ctx, typ.ID, doc))
	for _, p := range []core.Phase{core.PhaseParsing, core.PhaseEmbedding, core.PhaseExtraction} {
		require.NoError(t, svc.phases.SetPhase(ctx, doc.ID, p, ""))
	}
	_, err = svc.index.Index(ctx, doc.ID, doc.FileName, []core.Chunk{{Text: bookletText}})
	require.NoError(t, err)

	tasks, err := svc.ResumePending(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NoError(t, tasks[0].Wait(ctx))

	phase, err := svc.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCompleted, phase)

	reqs := provider.GetMockAgent().Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Booklets", reqs[0].DocumentType)
	assert.Contains(t, reqs[0].Text(), "Annual deductible", "chunks rebuilt from the index")
}

func TestService_SearchAndReembed(t *testing.T) {
	svc, provider := openTestService(t)
	ctx := context.Background()

	res, err := svc.IngestText(ctx, ingestion.Upload{FileName: "dental.txt"}, bookletText)
	require.NoError(t, err)
	svc.Orchestrator().Wait()

	passages, err := svc.Search(ctx, "annual deductible", nil, 3)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, res.DocID, passages[0].DocID)
	assert.True(t, passages[0].Verbatim)

	before := provider.GetMockEmbedder().CallCount()
	var last [2]int
	summary, err := svc.Reembed(ctx, func(done, total int) { last = [2]int{done, total} })
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, [2]int{summary.Nodes, summary.Nodes}, last)
	assert.Greater(t, provider.GetMockEmbedder().CallCount(), before)

	passages, err = svc.Search(ctx, "annual deductible", []string{res.DocID}, 3)
	require.NoError(t, err)
	assert.Len(t, passages, 1, "still searchable after reembedding")
}

func TestService_ExtractPages(t *testing.T) {
	svc, _ := openTestService(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(svc.cfg.OriginalFilesDir(), 0o755))
	require.NoError(t, pages.WriteTestPDF(filepath.Join(svc.cfg.OriginalFilesDir(), "booklet.pdf"), 4))

	out, err := svc.ExtractPages(ctx, "booklet.pdf", []int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.cfg.ExtractedPagesDir(), "booklet_benefit_summary.pdf"), out)
	n, err := pages.Count(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.ExtractPages(ctx, "missing.pdf", []int{1})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.ExtractPages(ctx, "booklet.pdf", []int{9})
	assert.ErrorIs(t, err, pages.ErrPageOutOfRange)
}
