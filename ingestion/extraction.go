package ingestion

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/rag"
	"github.com/poiesic/docflow/storage"
)

// extract runs the background pass: direct extraction, backfill of the
// fields left empty, then persistence of the result.
func (o *Orchestrator) extract(ctx context.Context, p *pending) error {
	logger := o.logger.With("doc_id", p.docID)

	summary, err := o.directExtract(ctx, p)
	if err != nil {
		return o.abort(ctx, p, err)
	}

	var backfilled []string
	missing := summary.MissingFields()
	if len(missing) > 0 && o.backfiller != nil {
		if err := o.advance(ctx, p.docID, core.PhaseRAG); err != nil {
			return o.abort(ctx, p, err)
		}

		found, err := o.backfiller.Backfill(ctx, p.docID, missing, o.companyConfig(p.company))
		switch {
		case ctx.Err() != nil:
			return o.abort(ctx, p, ctx.Err())
		case err != nil:
			// fields stay null; the extraction itself still stands
			logger.Warn("backfill failed, keeping direct extraction", "missing", len(missing), "err", err)
		}
		for path, field := range found {
			if field != nil && summary.Merge(map[core.FieldPath]*core.ExtractionField{path: field}) == 1 {
				backfilled = append(backfilled, path.String())
			}
		}
		slices.Sort(backfilled)
		logger.Info("backfill merged", "missing", len(missing), "filled", len(backfilled))
	}

	rec := o.newRecord(p, core.ExtractionCompleted)
	rec.Result = summary
	rec.Backfilled = backfilled
	if err := o.persist(ctx, rec); err != nil {
		return o.abort(ctx, p, err)
	}
	if err := o.advance(ctx, p.docID, core.PhaseCompleted); err != nil {
		if errors.Is(err, ErrDocumentDeleted) {
			o.dropArtifacts(p.docID)
		}
		return o.abort(ctx, p, err)
	}

	logger.Info("document completed", "backfilled", len(backfilled))
	return nil
}

// directExtract asks the agent for the summary. Without an agent the
// summary is empty, with every section absent.
func (o *Orchestrator) directExtract(ctx context.Context, p *pending) (*core.InsuranceSummary, error) {
	if o.agent == nil {
		return &core.InsuranceSummary{}, nil
	}

	summary, err := o.agent.Extract(ctx, ai.ExtractionRequest{
		DocID:        p.docID,
		FileName:     p.fileName,
		DocumentType: p.typeTitle,
		Chunks:       p.chunks,
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if summary == nil {
		summary = &core.InsuranceSummary{}
	}
	return summary, nil
}

func (o *Orchestrator) companyConfig(company string) *rag.CompanyConfig {
	if o.configs == nil || company == "" {
		return nil
	}
	cfg, err := o.configs.Load(company)
	if err != nil {
		if !errors.Is(err, rag.ErrConfigNotFound) {
			o.logger.Warn("failed to load company config, using default prompts", "company", company, "err", err)
		}
		return nil
	}
	return cfg
}

func (o *Orchestrator) newRecord(p *pending, status core.ExtractionStatus) *core.ExtractionRecord {
	return &core.ExtractionRecord{
		ExtractionID: uuid.NewString(),
		DocID:        p.docID,
		DocumentType: p.typeTitle,
		FileName:     p.fileName,
		Status:       status,
		Timestamp:    o.now().UTC(),
	}
}

// persist writes the result unless the document has been deleted. A
// deletion that lands during the write removes the artifact again.
func (o *Orchestrator) persist(ctx context.Context, rec *core.ExtractionRecord) error {
	if err := o.ensureExists(ctx, rec.DocID); err != nil {
		return err
	}
	if err := o.artifacts.SaveResult(ctx, rec); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if o.isDeleted(rec.DocID) {
		o.dropArtifacts(rec.DocID)
		return ErrDocumentDeleted
	}
	return nil
}

func (o *Orchestrator) ensureExists(ctx context.Context, docID string) error {
	if o.isDeleted(docID) {
		return ErrDocumentDeleted
	}
	_, _, err := o.phases.GetDocument(ctx, docID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrDocumentDeleted, docID)
	}
	return err
}

// abort ends a pass. Deletion and shutdown leave the phase record alone;
// any other failure is recorded as the error phase with a failed result.
func (o *Orchestrator) abort(ctx context.Context, p *pending, cause error) error {
	switch {
	case errors.Is(cause, ErrDocumentDeleted) || o.isDeleted(p.docID):
		o.logger.Info("document deleted during extraction", "doc_id", p.docID)
		return ErrDocumentDeleted
	case ctx.Err() != nil:
		o.logger.Info("extraction interrupted", "doc_id", p.docID, "err", ctx.Err())
		return ctx.Err()
	}

	o.fail(ctx, p.docID, cause)

	rec := o.newRecord(p, core.ExtractionFailed)
	rec.Error = cause.Error()
	if err := o.persist(context.WithoutCancel(ctx), rec); err != nil && !errors.Is(err, ErrDocumentDeleted) {
		o.logger.Warn("failed to save failed result", "doc_id", p.docID, "err", err)
	}
	return cause
}

func (o *Orchestrator) dropArtifacts(docID string) {
	if err := o.artifacts.Remove(context.Background(), docID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		o.logger.Warn("failed to drop artifacts of deleted document", "doc_id", docID, "err", err)
	}
}
