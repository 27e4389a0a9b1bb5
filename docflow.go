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

package docflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/ai/openai"
	"github.com/poiesic/docflow/config"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/deletion"
	"github.com/poiesic/docflow/index"
	"github.com/poiesic/docflow/ingestion"
	"github.com/poiesic/docflow/pages"
	"github.com/poiesic/docflow/parsing"
	"github.com/poiesic/docflow/rag"
	"github.com/poiesic/docflow/reembed"
	"github.com/poiesic/docflow/search"
	"github.com/poiesic/docflow/storage/badger"
	"github.com/poiesic/docflow/storage/files"
	"github.com/poiesic/docflow/storage/jsonfile"
)

// StatusProcessing is the upload response status; extraction continues in
// the background.
const StatusProcessing = "processing"

// Service wires every docflow component over one data directory.
type Service struct {
	cfg          *config.Config
	nodes        *badger.NodeRepository
	provider     ai.Provider
	ownsProvider bool
	phases       *jsonfile.PhaseStore
	originals    *files.OriginalFiles
	artifacts    *files.Artifacts
	index        *index.Local
	orchestrator *ingestion.Orchestrator
	deleter      *deletion.Coordinator
	searcher     *search.Searcher
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	provider ai.Provider
	parser   parsing.Parser
	inMemory bool
	logger   *slog.Logger
}

// WithProvider supplies the AI provider instead of building an
// OpenAI-compatible one from the config. The caller keeps ownership.
func WithProvider(p ai.Provider) Option {
	return func(o *serviceOptions) {
		o.provider = p
	}
}

// WithParser replaces the default reader chain.
func WithParser(p parsing.Parser) Option {
	return func(o *serviceOptions) {
		o.parser = p
	}
}

// WithInMemoryIndex keeps indexed nodes in memory. Useful for tests.
func WithInMemoryIndex() Option {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// Open builds a Service from cfg.
func Open(cfg *config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	backend, err := badger.OpenBackend(cfg.NodeStoreDir(), options.inMemory, badger.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open node store: %w", err)
	}
	nodes, err := badger.NewNodeRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	s := &Service{cfg: cfg, nodes: nodes, provider: options.provider, logger: logger.With("component", "service")}
	if s.provider == nil {
		s.provider, err = openai.NewProvider(cfg.AI)
		if err != nil {
			nodes.Close()
			return nil, fmt.Errorf("create ai provider: %w", err)
		}
		s.ownsProvider = true
	}

	if err := s.build(options.parser, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(parser parsing.Parser, logger *slog.Logger) error {
	cfg := s.cfg
	var err error

	s.phases, err = jsonfile.NewPhaseStore(cfg.PhaseStorePath(), jsonfile.WithLogger(logger))
	if err != nil {
		return err
	}
	s.originals, err = files.NewOriginalFiles(cfg.OriginalFilesDir(), logger)
	if err != nil {
		return err
	}
	s.artifacts, err = files.NewArtifacts(cfg.ArtifactsDir(), logger)
	if err != nil {
		return err
	}

	s.index, err = index.NewLocal(s.nodes, s.provider, index.WithLogger(logger))
	if err != nil {
		return err
	}

	if parser == nil {
		parser = parsing.NewChain(
			parsing.WithReaders(parsing.NewPDFReader(), parsing.NewDocconvReader(), parsing.NewTextReader()),
			parsing.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap),
			parsing.WithLogger(logger),
		)
	}

	opts := []ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithCountWorkers(cfg.CountWorkers),
		ingestion.WithCompanyConfigs(rag.NewConfigLoader(cfg.ConfigsDir), cfg.DefaultCompany),
	}
	if cfg.ExtractionEnabled && s.provider.ExtractionAgent() != nil {
		opts = append(opts, ingestion.WithExtractionAgent(s.provider.ExtractionAgent()))
	}
	if cfg.RAGEnabled && s.provider.Completer() != nil {
		backfiller, err := rag.NewBackfiller(s.index, rag.WithLogger(logger), rag.WithWait(cfg.RAGAttempts, cfg.RAGDelay))
		if err != nil {
			return err
		}
		opts = append(opts, ingestion.WithBackfiller(backfiller))
	}

	stores := ingestion.Stores{Phases: s.phases, Originals: s.originals, Artifacts: s.artifacts}
	s.orchestrator, err = ingestion.NewOrchestrator(stores, parser, s.index, opts...)
	if err != nil {
		return err
	}

	s.deleter, err = deletion.NewCoordinator(s.phases, s.originals, s.artifacts, s.index,
		deletion.WithLogger(logger),
		deletion.WithTombstoner(s.orchestrator),
		deletion.WithFileLocker(s.orchestrator))
	if err != nil {
		return err
	}

	s.searcher, err = search.NewSearcher(s.nodes, s.provider, search.WithLogger(logger))
	return err
}

// Close stops background extraction and releases every store.
func (s *Service) Close() error {
	if s.orchestrator != nil {
		if err := s.orchestrator.Close(); err != nil {
			s.logger.Error("error closing orchestrator", "err", err)
		}
	}
	if s.ownsProvider {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
		}
	}
	if err := s.nodes.Close(); err != nil {
		s.logger.Error("error closing node store", "err", err)
		return err
	}
	return nil
}

// Orchestrator exposes the ingestion orchestrator.
func (s *Service) Orchestrator() *ingestion.Orchestrator {
	return s.orchestrator
}

// UploadResponse acknowledges an upload. Extraction is still running when
// it is returned.
type UploadResponse struct {
	Status string   `json:"status"`
	DocIDs []string `json:"doc_ids"`
}

// Upload ingests body under fileName and returns once the document is
// searchable. A document that failed to parse or index is still listed;
// its Status reports the error phase.
func (s *Service) Upload(ctx context.Context, fileName string, body io.Reader, typeID int) (*UploadResponse, error) {
	if err := core.ValidateFileName(fileName); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "docflow-upload-*"+filepath.Ext(fileName))
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer os.Remove(f.Name())

	_, err = io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	res, err := s.orchestrator.Ingest(ctx, ingestion.Upload{FileName: fileName, Path: f.Name(), TypeID: typeID})
	if err != nil {
		return nil, err
	}
	return &UploadResponse{Status: StatusProcessing, DocIDs: []string{res.DocID}}, nil
}

// IngestFile ingests the file at path under its base name.
func (s *Service) IngestFile(ctx context.Context, path string, typeID int) (*ingestion.Ingested, error) {
	return s.orchestrator.Ingest(ctx, ingestion.Upload{FileName: filepath.Base(path), Path: path, TypeID: typeID})
}

// IngestText ingests a raw text body under up.FileName.
func (s *Service) IngestText(ctx context.Context, up ingestion.Upload, body string) (*ingestion.Ingested, error) {
	return s.orchestrator.IngestText(ctx, up, body)
}

// ExtractPages saves the 1-based pages of the stored original fileName as
// <stem>_benefit_summary.pdf under the extracted pages dir and returns its
// path. Returns storage.ErrNotFound if no such original is stored.
func (s *Service) ExtractPages(ctx context.Context, fileName string, pageNumbers []int) (string, error) {
	src, err := s.originals.Path(ctx, fileName)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.cfg.ExtractedPagesDir(), pages.SummaryName(fileName))
	if err := pages.Extract(src, dst, pageNumbers); err != nil {
		return "", err
	}
	s.logger.Info("extracted pages", "file_name", fileName, "pages", len(pageNumbers), "path", dst)
	return dst, nil
}

// BulkIngest ingests the files at paths, bounded by the configured worker count.
func (s *Service) BulkIngest(ctx context.Context, paths []string, opts ingestion.BulkOptions) (*ingestion.BulkReport, error) {
	uploads := make([]ingestion.Upload, 0, len(paths))
	for _, p := range paths {
		uploads = append(uploads, ingestion.Upload{FileName: filepath.Base(p), Path: p})
	}
	return s.orchestrator.BulkIngest(ctx, uploads, opts)
}

// Status returns the phase of a document.
func (s *Service) Status(ctx context.Context, docID string) (core.Phase, error) {
	return s.orchestrator.Status(ctx, docID)
}

// Result returns the extraction result of a document.
func (s *Service) Result(ctx context.Context, docID string) (*core.ExtractionRecord, error) {
	return s.orchestrator.Result(ctx, docID)
}

// LatestResult returns the newest extraction result recorded for fileName.
func (s *Service) LatestResult(ctx context.Context, fileName string) (*core.ExtractionRecord, error) {
	return s.artifacts.LatestResultByFile(ctx, fileName)
}

// ListIngested lists every indexed document.
func (s *Service) ListIngested(ctx context.Context) ([]index.DocumentInfo, error) {
	return s.index.ListDocuments(ctx)
}

// GetDocument returns the indexed text of a document.
func (s *Service) GetDocument(ctx context.Context, docID string) (*index.DocumentText, error) {
	return s.index.Document(ctx, docID)
}

// Delete removes a document everywhere. It returns the first failed step,
// if any; DeleteWithReport has the details.
func (s *Service) Delete(ctx context.Context, docID string) error {
	report, err := s.deleter.Delete(ctx, docID)
	if err != nil {
		return err
	}
	return report.Err()
}

// DeleteWithReport removes a document and reports every step.
func (s *Service) DeleteWithReport(ctx context.Context, docID string) (*deletion.Report, error) {
	return s.deleter.Delete(ctx, docID)
}

// Search retrieves the passages most relevant to query, restricted to
// docIDs when non-empty. No answer is synthesized.
func (s *Service) Search(ctx context.Context, query string, docIDs []string, maxHits int) ([]*search.Passage, error) {
	return s.searcher.FindWithMonitor(ctx, query, docIDs, maxHits, &search.LogMonitor{Logger: s.logger})
}

// Reembed rebuilds the stored embeddings of docIDs, or of every indexed
// document, with the current embedder. Progress, if set, receives node counts.
func (s *Service) Reembed(ctx context.Context, progress func(done, total int), docIDs ...string) (*reembed.Summary, error) {
	r, err := reembed.NewReembedder(s.nodes, s.provider.Embedder(), reembed.DefaultConfig(),
		reembed.WithLogger(s.logger), reembed.WithProgress(progress))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, docIDs...)
}

// DocumentTypes lists the document types with their documents and counts.
func (s *Service) DocumentTypes(ctx context.Context) ([]core.DocumentType, error) {
	return s.phases.DocumentTypes(ctx)
}

// CreateDocumentType adds a document type, or returns the one with the same title.
func (s *Service) CreateDocumentType(ctx context.Context, title string) (*core.DocumentType, error) {
	return s.phases.CreateDocumentType(ctx, title)
}

// SetApproval marks a document reviewed or not.
func (s *Service) SetApproval(ctx context.Context, docID string, approved bool) error {
	return s.phases.SetApproval(ctx, docID, approved)
}

// ResumePending restarts extraction for every document left in the
// extraction phase, for example by a crash. It returns the started tasks.
func (s *Service) ResumePending(ctx context.Context) ([]*ingestion.Task, error) {
	types, err := s.phases.DocumentTypes(ctx)
	if err != nil {
		return nil, err
	}

	var tasks []*ingestion.Task
	for _, t := range types {
		for _, doc := range t.Documents {
			if doc.Phase != core.PhaseExtraction {
				continue
			}
			task, err := s.orchestrator.Extract(ctx, doc.ID)
			if err != nil {
				s.logger.Warn("failed to resume extraction", "doc_id", doc.ID, "err", err)
				continue
			}
			tasks = append(tasks, task)
		}
	}
	if len(tasks) > 0 {
		s.logger.Info("resumed pending extractions", "documents", len(tasks))
	}
	return tasks, nil
}
