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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/index"
	"github.com/poiesic/docflow/parsing"
	"github.com/poiesic/docflow/rag"
	"github.com/poiesic/docflow/storage"
)

const (
	// DefaultDocumentType is the type uploads land in when none is given.
	DefaultDocumentType = "Uncategorized"

	// DefaultCountWorkers bounds bulk ingestion concurrency.
	DefaultCountWorkers = 2
)

// Stores groups the persistence the orchestrator writes to.
type Stores struct {
	Phases    storage.PhaseStore
	Originals storage.OriginalFileStore
	Artifacts storage.ArtifactStore
}

// Orchestrator runs documents through parsing, indexing, extraction and
// backfill.
type Orchestrator struct {
	phases      storage.PhaseStore
	originals   storage.OriginalFileStore
	artifacts   storage.ArtifactStore
	parser      parsing.Parser
	index       index.Adapter
	agent       ai.ExtractionAgent
	backfiller  *rag.Backfiller
	configs     *rag.ConfigLoader
	company     string
	defaultType string
	workers     int
	logger      *slog.Logger
	now         func() time.Time

	flights *flights
	files   *fileLocks

	deletedMu sync.Mutex
	deleted   map[string]struct{}

	// background tasks run under baseCtx, which Close cancels
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithExtractionAgent enables structured extraction. Without an agent,
// documents complete with an empty result after indexing.
func WithExtractionAgent(agent ai.ExtractionAgent) Option {
	return func(o *Orchestrator) error {
		o.agent = agent
		return nil
	}
}

// WithBackfiller enables RAG backfill of fields the agent left empty.
func WithBackfiller(b *rag.Backfiller) Option {
	return func(o *Orchestrator) error {
		o.backfiller = b
		return nil
	}
}

// WithCompanyConfigs sets where per-company prompt configs are loaded from
// and the company used when a request names none.
func WithCompanyConfigs(loader *rag.ConfigLoader, defaultCompany string) Option {
	return func(o *Orchestrator) error {
		o.configs = loader
		o.company = defaultCompany
		return nil
	}
}

// WithDefaultDocumentType sets the document type used when an upload names none.
func WithDefaultDocumentType(title string) Option {
	return func(o *Orchestrator) error {
		if title == "" {
			return fmt.Errorf("default document type must not be empty")
		}
		o.defaultType = title
		return nil
	}
}

// WithCountWorkers sets how many files bulk ingestion processes at once.
// Default is DefaultCountWorkers.
func WithCountWorkers(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			n = 1
		}
		o.workers = n
		return nil
	}
}

// NewOrchestrator creates an orchestrator. Every store, the parser and the
// index are required.
func NewOrchestrator(stores Stores, parser parsing.Parser, idx index.Adapter, opts ...Option) (*Orchestrator, error) {
	if stores.Phases == nil {
		return nil, ErrPhaseStoreRequired
	}
	if stores.Originals == nil {
		return nil, ErrFileStoreRequired
	}
	if stores.Artifacts == nil {
		return nil, ErrArtifactStoreRequired
	}
	if parser == nil {
		return nil, ErrParserRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}

	o := &Orchestrator{
		phases:      stores.Phases,
		originals:   stores.Originals,
		artifacts:   stores.Artifacts,
		parser:      parser,
		index:       idx,
		defaultType: DefaultDocumentType,
		workers:     DefaultCountWorkers,
		logger:      slog.Default(),
		now:         time.Now,
		flights:     newFlights(),
		files:       newFileLocks(),
		deleted:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")
	o.baseCtx, o.cancel = context.WithCancel(context.Background())
	return o, nil
}

// Upload describes a file to ingest.
type Upload struct {
	// FileName is the name the document is known by.
	FileName string

	// Path is where the uploaded bytes are staged.
	Path string

	// TypeID is the document type to file the document under. Zero means
	// the default type.
	TypeID int

	// Company selects the prompt config for backfill. Empty means the
	// orchestrator's default company.
	Company string
}

// Ingested is the outcome of the synchronous part of ingestion.
type Ingested struct {
	DocID    string     `json:"doc_id"`
	FileName string     `json:"file_name"`
	Phase    core.Phase `json:"phase"`
	Error    string     `json:"error,omitempty"`

	// Task is the background extraction pass. Nil if the document failed
	// before indexing completed.
	Task *Task `json:"-"`
}

// Failed reports whether the document ended in the error phase.
func (i *Ingested) Failed() bool {
	return i.Phase == core.PhaseError
}

// pending carries one document through the synchronous stages.
type pending struct {
	docID     string
	fileName  string
	path      string
	typeTitle string
	company   string
	chunks    []core.Chunk
}

// Ingest records the document, stores the original, parses and indexes it,
// and starts the background extraction pass. It returns once the document
// is searchable or has failed. Pipeline failures are reported through
// Ingested.Phase; the error return is reserved for requests that could not
// be recorded at all.
func (o *Orchestrator) Ingest(ctx context.Context, up Upload) (*Ingested, error) {
	p, err := o.register(ctx, up)
	if err != nil {
		return nil, err
	}

	if err := o.parse(ctx, p); err != nil {
		return o.failed(ctx, p, err), nil
	}
	if err := o.embed(ctx, p); err != nil {
		return o.failed(ctx, p, err), nil
	}

	task, err := o.launch(p)
	if err != nil {
		return o.failed(ctx, p, err), nil
	}
	return &Ingested{DocID: p.docID, FileName: p.fileName, Phase: core.PhaseExtraction, Task: task}, nil
}

// IngestText ingests body as a text document. The body is staged in place
// of up.Path; the file name, type and company are used as given.
func (o *Orchestrator) IngestText(ctx context.Context, up Upload, body string) (*Ingested, error) {
	if err := core.ValidateFileName(up.FileName); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "docflow-text-*")
	if err != nil {
		return nil, fmt.Errorf("stage text: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(body); err != nil {
		f.Close()
		return nil, fmt.Errorf("stage text: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("stage text: %w", err)
	}

	up.Path = f.Name()
	return o.Ingest(ctx, up)
}

// register creates the phase record and stages the original file.
func (o *Orchestrator) register(ctx context.Context, up Upload) (*pending, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	if err := core.ValidateFileName(up.FileName); err != nil {
		return nil, err
	}
	if up.Path == "" {
		return nil, fmt.Errorf("%w: no staged path for %q", core.ErrInvalidDocument, up.FileName)
	}

	typeID, title, err := o.resolveType(ctx, up.TypeID)
	if err != nil {
		return nil, err
	}

	// a deletion of another document with this name must not remove the
	// original between the record and the copy
	unlock := o.LockFile(up.FileName)
	defer unlock()

	docID := uuid.NewString()
	doc := core.Document{ID: docID, FileName: up.FileName, Phase: core.PhaseUploading}
	if err := o.phases.AppendDocument(ctx, typeID, doc); err != nil {
		o.logger.Error("error recording document", "file_name", up.FileName, "err", err)
		return nil, fmt.Errorf("record document: %w", err)
	}

	company := up.Company
	if company == "" {
		company = o.company
	}
	p := &pending{docID: docID, fileName: up.FileName, path: up.Path, typeTitle: title, company: company}

	// a document can still be parsed from the staged upload if this fails
	stored, err := o.originals.Store(ctx, up.FileName, up.Path)
	if err != nil {
		o.logger.Warn("failed to store original file, continuing from upload", "doc_id", docID, "file_name", up.FileName, "err", err)
	} else {
		p.path = stored
	}

	o.logger.Info("document received", "doc_id", docID, "file_name", up.FileName, "document_type", title)
	return p, nil
}

func (o *Orchestrator) resolveType(ctx context.Context, typeID int) (int, string, error) {
	if typeID == 0 {
		t, err := o.phases.CreateDocumentType(ctx, o.defaultType)
		if err != nil {
			return 0, "", fmt.Errorf("default document type: %w", err)
		}
		return t.ID, t.Title, nil
	}

	types, err := o.phases.DocumentTypes(ctx)
	if err != nil {
		return 0, "", err
	}
	for _, t := range types {
		if t.ID == typeID {
			return t.ID, t.Title, nil
		}
	}
	return 0, "", fmt.Errorf("document type %d: %w", typeID, storage.ErrNotFound)
}

func (o *Orchestrator) parse(ctx context.Context, p *pending) error {
	if err := o.advance(ctx, p.docID, core.PhaseParsing); err != nil {
		return err
	}

	chunks, err := o.parser.Parse(ctx, p.fileName, p.path)
	if err != nil {
		return err
	}
	p.chunks = chunks

	set := &core.ChunkSet{DocID: p.docID, DocumentType: p.typeTitle, FileName: p.fileName, Chunks: chunks}
	if err := o.artifacts.SaveChunks(ctx, set); err != nil {
		o.logger.Warn("failed to save chunks", "doc_id", p.docID, "err", err)
	}
	return nil
}

func (o *Orchestrator) embed(ctx context.Context, p *pending) error {
	if err := o.advance(ctx, p.docID, core.PhaseEmbedding); err != nil {
		return err
	}

	n, err := o.index.Index(ctx, p.docID, p.fileName, p.chunks)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	o.logger.Debug("document indexed", "doc_id", p.docID, "nodes", n)
	return o.advance(ctx, p.docID, core.PhaseExtraction)
}

// launch starts the extraction pass of a document that just finished
// indexing.
func (o *Orchestrator) launch(p *pending) (*Task, error) {
	o.closeMu.RLock()
	defer o.closeMu.RUnlock()
	if o.closed {
		return nil, ErrClosed
	}

	task, started := o.flights.acquire(p.docID)
	if !started {
		return task, nil
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		var err error
		defer func() {
			o.land(p.docID)
			task.finish(err)
		}()
		err = o.extract(o.baseCtx, p)
	}()
	return task, nil
}

// Extract resumes the extraction pass of a document left in the
// extraction phase, for example by a restart. If a pass is already
// running for the document, that task is returned.
func (o *Orchestrator) Extract(ctx context.Context, docID string) (*Task, error) {
	if task := o.flights.running(docID); task != nil {
		return task, nil
	}

	doc, typeID, err := o.phases.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Phase != core.PhaseExtraction {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotResumable, docID, doc.Phase)
	}

	_, title, err := o.resolveType(ctx, typeID)
	if err != nil {
		return nil, err
	}
	chunks, err := o.loadChunks(ctx, docID)
	if err != nil {
		return nil, err
	}

	p := &pending{docID: docID, fileName: doc.FileName, typeTitle: title, company: o.company, chunks: chunks}
	return o.launch(p)
}

// loadChunks reads the saved parse output, falling back to the indexed
// text as a single chunk.
func (o *Orchestrator) loadChunks(ctx context.Context, docID string) ([]core.Chunk, error) {
	set, err := o.artifacts.LoadChunks(ctx, docID)
	if err == nil {
		return set.Chunks, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	text, err := o.index.Document(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("no chunks for %s: %w", docID, err)
	}
	return []core.Chunk{{Text: text.Text}}, nil
}

// Status returns a document's phase. Unknown documents are reported as
// uploading, since their record may not be visible yet.
func (o *Orchestrator) Status(ctx context.Context, docID string) (core.Phase, error) {
	phase, err := o.phases.GetPhase(ctx, docID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.PhaseUploading, nil
	}
	return phase, err
}

// Result returns the persisted extraction result of a document.
// Returns ErrStillProcessing if the document exists but hasn't finished,
// or storage.ErrNotFound if there is no result and none is coming.
func (o *Orchestrator) Result(ctx context.Context, docID string) (*core.ExtractionRecord, error) {
	rec, err := o.artifacts.LoadResult(ctx, docID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	phase, perr := o.phases.GetPhase(ctx, docID)
	if perr == nil && !phase.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrStillProcessing, docID, phase)
	}
	return nil, err
}

// MarkDeleted records that a document is being deleted so in-flight work
// stops before persisting anything for it.
func (o *Orchestrator) MarkDeleted(docID string) {
	o.deletedMu.Lock()
	o.deleted[docID] = struct{}{}
	o.deletedMu.Unlock()
}

// Forget drops the deletion mark of a document whose record is gone. While
// an extraction pass is running the mark stays, and the pass drops it when
// it ends.
func (o *Orchestrator) Forget(docID string) {
	if o.flights.running(docID) != nil {
		return
	}
	o.unmark(docID)
}

// LockFile serializes work on one original file name. Uploads hold it
// while they register a document, deletions while they decide whether the
// original is still referenced.
func (o *Orchestrator) LockFile(fileName string) func() {
	return o.files.lock(filepath.Base(fileName))
}

func (o *Orchestrator) unmark(docID string) {
	o.deletedMu.Lock()
	delete(o.deleted, docID)
	o.deletedMu.Unlock()
}

// land releases the flight of docID. A deletion that finished while the
// pass ran left its mark for the pass to drop.
func (o *Orchestrator) land(docID string) {
	o.flights.release(docID)
	if !o.isDeleted(docID) {
		return
	}
	if _, _, err := o.phases.GetDocument(context.Background(), docID); errors.Is(err, storage.ErrNotFound) {
		o.unmark(docID)
	}
}

func (o *Orchestrator) isDeleted(docID string) bool {
	o.deletedMu.Lock()
	defer o.deletedMu.Unlock()
	_, ok := o.deleted[docID]
	return ok
}

// advance moves a document to phase unless it has been deleted.
func (o *Orchestrator) advance(ctx context.Context, docID string, phase core.Phase) error {
	if o.isDeleted(docID) {
		return ErrDocumentDeleted
	}
	err := o.phases.SetPhase(ctx, docID, phase, "")
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrDocumentDeleted, docID)
	}
	if err != nil {
		return err
	}
	o.logger.Debug("phase changed", "doc_id", docID, "phase", phase)
	return nil
}

// fail records the error phase. It uses a context detached from
// cancellation so the failure is recorded even when ctx ended it.
func (o *Orchestrator) fail(ctx context.Context, docID string, cause error) {
	if errors.Is(cause, ErrDocumentDeleted) || o.isDeleted(docID) {
		o.logger.Info("document deleted during processing", "doc_id", docID)
		return
	}
	o.logger.Error("document failed", "doc_id", docID, "err", cause)
	if err := o.phases.SetPhase(context.WithoutCancel(ctx), docID, core.PhaseError, cause.Error()); err != nil {
		o.logger.Error("error recording failure", "doc_id", docID, "err", err)
	}
}

func (o *Orchestrator) failed(ctx context.Context, p *pending, cause error) *Ingested {
	if errors.Is(cause, ErrDocumentDeleted) || o.isDeleted(p.docID) {
		// chunks or nodes written before the stage noticed are orphans
		o.dropIndex(p.docID)
		o.dropArtifacts(p.docID)
	}
	o.fail(ctx, p.docID, cause)
	return &Ingested{DocID: p.docID, FileName: p.fileName, Phase: core.PhaseError, Error: cause.Error()}
}

// dropIndex removes nodes written for a document deleted meanwhile.
func (o *Orchestrator) dropIndex(docID string) {
	if _, err := o.index.Delete(context.Background(), docID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		o.logger.Warn("failed to drop index of deleted document", "doc_id", docID, "err", err)
	}
}

func (o *Orchestrator) checkOpen() error {
	o.closeMu.RLock()
	defer o.closeMu.RUnlock()
	if o.closed {
		return ErrClosed
	}
	return nil
}

// Wait blocks until every background task has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels background tasks and waits for them to exit. Documents
// interrupted this way stay in their phase and can be resumed with Extract.
func (o *Orchestrator) Close() error {
	o.closeMu.Lock()
	if o.closed {
		o.closeMu.Unlock()
		return nil
	}
	o.closed = true
	o.closeMu.Unlock()

	o.cancel()
	o.wg.Wait()
	return nil
}
