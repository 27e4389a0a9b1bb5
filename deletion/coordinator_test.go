package deletion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/ai/mock"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/index"
	"github.com/poiesic/docflow/storage"
	badgerstore "github.com/poiesic/docflow/storage/badger"
	"github.com/poiesic/docflow/storage/files"
	"github.com/poiesic/docflow/storage/jsonfile"
)

type fixture struct {
	dir       string
	phases    *jsonfile.PhaseStore
	originals *files.OriginalFiles
	artifacts storage.ArtifactStore
	index     *index.Local
	typeID    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	phases, err := jsonfile.NewPhaseStore(filepath.Join(dir, jsonfile.DefaultFileName))
	require.NoError(t, err)
	originals, err := files.NewOriginalFiles(filepath.Join(dir, "original_files"), nil)
	require.NoError(t, err)
	artifacts, err := files.NewArtifacts(filepath.Join(dir, "extraction_results"), nil)
	require.NoError(t, err)

	nodes, err := badgerstore.NewMemoryNodeStore()
	require.NoError(t, err)
	t.Cleanup(func() { nodes.Close() })
	idx, err := index.NewLocal(nodes, mock.NewMockProvider())
	require.NoError(t, err)

	typ, err := phases.CreateDocumentType(context.Background(), "Uncategorized")
	require.NoError(t, err)

	return &fixture{dir: dir, phases: phases, originals: originals, artifacts: artifacts, index: idx, typeID: typ.ID}
}

func (f *fixture) coordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(f.phases, f.originals, f.artifacts, f.index, opts...)
	require.NoError(t, err)
	return c
}

// seed writes every piece of a fully ingested document.
func (f *fixture) seed(t *testing.T, docID, fileName string) {
	t.Helper()
	ctx := context.Background()

	src := filepath.Join(f.dir, "upload-"+docID)
	require.NoError(t, os.WriteFile(src, []byte("policy text"), 0o644))
	_, err := f.originals.Store(ctx, fileName, src)
	require.NoError(t, err)

	require.NoError(t, f.phases.AppendDocument(ctx, f.typeID, core.Document{ID: docID, FileName: fileName, Phase: core.PhaseUploading}))

	_, err = f.index.Index(ctx, docID, fileName, []core.Chunk{{Text: "Basic life schedule is flat $25,000"}})
	require.NoError(t, err)

	require.NoError(t, f.artifacts.SaveResult(ctx, &core.ExtractionRecord{
		ExtractionID: "ex-" + docID,
		DocID:        docID,
		FileName:     fileName,
		Status:       core.ExtractionCompleted,
		Result:       &core.InsuranceSummary{},
	}))
}

func (f *fixture) originalExists(t *testing.T, fileName string) bool {
	t.Helper()
	_, err := f.originals.Path(context.Background(), fileName)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

type recordingTombstoner struct {
	ids       []string
	forgotten []string
}

func (r *recordingTombstoner) MarkDeleted(docID string) {
	r.ids = append(r.ids, docID)
}

func (r *recordingTombstoner) Forget(docID string) {
	r.forgotten = append(r.forgotten, docID)
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	released int
}

func (r *recordingLocker) LockFile(fileName string) func() {
	r.mu.Lock()
	r.locked = append(r.locked, fileName)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.released++
		r.mu.Unlock()
	}
}

// reuploadingPhases registers another document under the same file name
// right after the first full listing, the way a concurrent upload would.
type reuploadingPhases struct {
	*jsonfile.PhaseStore
	once   sync.Once
	reload func()
}

func (r *reuploadingPhases) DocumentTypes(ctx context.Context) ([]core.DocumentType, error) {
	types, err := r.PhaseStore.DocumentTypes(ctx)
	r.once.Do(r.reload)
	return types, err
}

// failingArtifacts fails Remove and delegates everything else.
type failingArtifacts struct {
	storage.ArtifactStore
}

func (failingArtifacts) Remove(ctx context.Context, docID string) error {
	return errors.New("permission denied")
}

func TestNewCoordinator_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := NewCoordinator(nil, f.originals, f.artifacts, f.index)
	assert.ErrorIs(t, err, ErrPhaseStoreRequired)
	_, err = NewCoordinator(f.phases, nil, f.artifacts, f.index)
	assert.ErrorIs(t, err, ErrFileStoreRequired)
	_, err = NewCoordinator(f.phases, f.originals, nil, f.index)
	assert.ErrorIs(t, err, ErrArtifactStoreRequired)
	_, err = NewCoordinator(f.phases, f.originals, f.artifacts, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)
}

func TestDelete_RemovesEverything(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-1", "booklet.pdf")
	tomb := &recordingTombstoner{}
	c := f.coordinator(t, WithTombstoner(tomb))
	ctx := context.Background()

	report, err := c.Delete(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Status)
	assert.NoError(t, report.Err())
	assert.Empty(t, report.Errors)
	assert.Equal(t, []Component{ComponentIndex, ComponentOriginal, ComponentArtifacts, ComponentRecord}, report.DeletedComponents)
	assert.Equal(t, []string{"doc-1"}, tomb.ids)
	assert.Equal(t, []string{"doc-1"}, tomb.forgotten)

	n, err := f.index.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, f.originalExists(t, "booklet.pdf"))
	_, err = f.artifacts.LoadResult(ctx, "doc-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, _, err = f.phases.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	types, err := f.phases.DocumentTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Zero(t, types[0].Uploaded, "counts are recomputed")
}

func TestDelete_SharedOriginalIsKept(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-1", "renewal.pdf")
	f.seed(t, "doc-2", "renewal.pdf")
	c := f.coordinator(t)
	ctx := context.Background()

	report, err := c.Delete(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Status)
	assert.NotContains(t, report.DeletedComponents, ComponentOriginal)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "referenced by 1 other")
	assert.True(t, f.originalExists(t, "renewal.pdf"))

	report, err = c.Delete(ctx, "doc-2")
	require.NoError(t, err)
	assert.Contains(t, report.DeletedComponents, ComponentOriginal, "last reference removes the file")
	assert.False(t, f.originalExists(t, "renewal.pdf"))
}

func TestDelete_UnknownDocument(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(t)

	report, err := c.Delete(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Status, "missing pieces are warnings")
	assert.Empty(t, report.DeletedComponents)
	assert.Len(t, report.Warnings, 4)
}

func TestDelete_FileNameFromIndex(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-1", "orphan.pdf")
	ctx := context.Background()
	require.NoError(t, f.phases.RemoveDocument(ctx, "doc-1"))

	report, err := f.coordinator(t).Delete(ctx, "doc-1")
	require.NoError(t, err)
	assert.Contains(t, report.DeletedComponents, ComponentOriginal)
	assert.False(t, f.originalExists(t, "orphan.pdf"))
}

func TestDelete_PartialSuccess(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-1", "booklet.pdf")
	f.artifacts = failingArtifacts{f.artifacts}
	c := f.coordinator(t)
	ctx := context.Background()

	report, err := c.Delete(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPartialSuccess, report.Status)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, ComponentArtifacts, report.Errors[0].Component)
	assert.Contains(t, report.Errors[0].Error, "permission denied")
	assert.ErrorContains(t, report.Err(), "permission denied")

	// later steps still ran
	assert.Contains(t, report.DeletedComponents, ComponentRecord)
	assert.Contains(t, report.DeletedComponents, ComponentIndex)
	_, _, err = f.phases.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete_EmptyID(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator(t).Delete(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrEmptyDocID)
}

func TestDelete_ReuploadDuringDeleteKeepsOriginal(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-a", "booklet.pdf")
	ctx := context.Background()

	phases := &reuploadingPhases{PhaseStore: f.phases}
	phases.reload = func() {
		src := filepath.Join(f.dir, "upload-doc-b")
		require.NoError(t, os.WriteFile(src, []byte("second upload"), 0o644))
		_, err := f.originals.Store(ctx, "booklet.pdf", src)
		require.NoError(t, err)
		require.NoError(t, f.phases.AppendDocument(ctx, f.typeID, core.Document{ID: "doc-b", FileName: "booklet.pdf", Phase: core.PhaseUploading}))
	}
	c, err := NewCoordinator(phases, f.originals, f.artifacts, f.index)
	require.NoError(t, err)

	report, err := c.Delete(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Status)
	assert.NotContains(t, report.DeletedComponents, ComponentOriginal)
	assert.Contains(t, report.Warnings, "original file booklet.pdf kept, referenced by 1 other document(s)")

	require.True(t, f.originalExists(t, "booklet.pdf"))
	p, err := f.originals.Path(ctx, "booklet.pdf")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "second upload", string(data))

	doc, _, err := f.phases.GetDocument(ctx, "doc-b")
	require.NoError(t, err)
	assert.Equal(t, "booklet.pdf", doc.FileName)
}

func TestDelete_HoldsFileLock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-1", "booklet.pdf")
	locker := &recordingLocker{}

	report, err := f.coordinator(t, WithFileLocker(locker)).Delete(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Contains(t, report.DeletedComponents, ComponentOriginal)
	assert.Equal(t, []string{"booklet.pdf"}, locker.locked)
	assert.Equal(t, 1, locker.released)
}

func TestDelete_RecordFailureKeepsTombstone(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-1", "booklet.pdf")
	tomb := &recordingTombstoner{}
	c, err := NewCoordinator(failingRecords{f.phases}, f.originals, f.artifacts, f.index, WithTombstoner(tomb))
	require.NoError(t, err)

	report, err := c.Delete(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPartialSuccess, report.Status)
	assert.Equal(t, []string{"doc-1"}, tomb.ids)
	assert.Empty(t, tomb.forgotten)
}

// failingRecords fails RemoveDocument and delegates everything else.
type failingRecords struct {
	storage.PhaseStore
}

func (failingRecords) RemoveDocument(ctx context.Context, docID string) error {
	return errors.New("disk full")
}
