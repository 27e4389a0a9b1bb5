package ingestion

import (
	"context"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/docflow/core"
)

// BulkOptions adjusts a bulk ingestion.
type BulkOptions struct {
	// TypeID and Company apply to every file; see Upload.
	TypeID  int
	Company string

	// Progress, if set, is called after each file reaches its final phase.
	// Calls may come from several goroutines.
	Progress func(done, total int)
}

// BulkFailure is a file that ended in the error phase.
type BulkFailure struct {
	FileName string `json:"file_name"`
	DocID    string `json:"doc_id,omitempty"`
	Error    string `json:"error"`
}

// BulkReport lists the documents that completed and the files that failed.
// Interrupted documents were still being extracted when the caller stopped
// waiting; they keep their phase and finish or resume on their own.
type BulkReport struct {
	Documents   []Ingested    `json:"documents"`
	Failures    []BulkFailure `json:"failures"`
	Interrupted []Ingested    `json:"interrupted,omitempty"`
}

// bulkCollector gathers per-file outcomes from concurrent workers.
type bulkCollector struct {
	mu       sync.Mutex
	report   BulkReport
	done     int
	total    int
	progress func(done, total int)
}

func (c *bulkCollector) add(res *Ingested, fileName string, err error) {
	c.mu.Lock()
	switch {
	case err != nil:
		c.report.Failures = append(c.report.Failures, BulkFailure{FileName: fileName, Error: err.Error()})
	case res.Failed():
		c.report.Failures = append(c.report.Failures, BulkFailure{FileName: fileName, DocID: res.DocID, Error: res.Error})
	case !res.Phase.IsTerminal():
		c.report.Interrupted = append(c.report.Interrupted, *res)
	default:
		c.report.Documents = append(c.report.Documents, *res)
	}
	c.done++
	done, total, progress := c.done, c.total, c.progress
	c.mu.Unlock()

	if progress != nil {
		progress(done, total)
	}
}

// BulkIngest ingests files concurrently, at most the configured count of
// workers at a time. One file failing never stops the others.
//
// With an extraction agent each worker carries its file through the whole
// pipeline, extraction included. Without one, all files are parsed first
// and then indexed, each stage bounded by the worker count.
func (o *Orchestrator) BulkIngest(ctx context.Context, files []Upload, opts BulkOptions) (*BulkReport, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	c := &bulkCollector{total: len(files), progress: opts.Progress}
	if len(files) == 0 {
		return &c.report, nil
	}
	files = slices.Clone(files)
	for i := range files {
		if files[i].TypeID == 0 {
			files[i].TypeID = opts.TypeID
		}
		if files[i].Company == "" {
			files[i].Company = opts.Company
		}
	}

	var err error
	if o.agent != nil {
		err = o.bulkPipelined(ctx, files, c)
	} else {
		err = o.bulkStaged(ctx, files, c)
	}
	if err != nil {
		return nil, err
	}

	o.logger.Info("bulk ingestion finished", "files", len(files), "completed", len(c.report.Documents), "failed", len(c.report.Failures), "interrupted", len(c.report.Interrupted))
	return &c.report, nil
}

// bulkPipelined runs the full per-document pipeline in a bounded pool.
func (o *Orchestrator) bulkPipelined(ctx context.Context, files []Upload, c *bulkCollector) error {
	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, up := range files {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			c.add(o.ingestAndWait(ctx, up))
		})
		if submitErr != nil {
			wg.Done()
			c.add(nil, up.FileName, submitErr)
		}
	}
	wg.Wait()
	return nil
}

// ingestAndWait ingests one file and waits for its extraction pass. When
// ctx ends first, the document is reported in whatever phase it has reached.
func (o *Orchestrator) ingestAndWait(ctx context.Context, up Upload) (*Ingested, string, error) {
	res, err := o.Ingest(ctx, up)
	if err != nil {
		return nil, up.FileName, err
	}
	if res.Task == nil {
		return res, up.FileName, nil
	}

	waitErr := res.Task.Wait(ctx)
	if waitErr == nil {
		res.Phase = core.PhaseCompleted
		return res, up.FileName, nil
	}
	res.Error = waitErr.Error()
	if ctx.Err() == nil {
		res.Phase = core.PhaseError
		return res, up.FileName, nil
	}

	phase, err := o.Status(context.WithoutCancel(ctx), res.DocID)
	if err != nil {
		return nil, up.FileName, err
	}
	res.Phase = phase
	if phase == core.PhaseCompleted {
		res.Error = ""
	}
	return res, up.FileName, nil
}

// bulkStaged parses every file, then indexes every parsed file. Documents
// complete right after indexing since there is no agent to wait for.
func (o *Orchestrator) bulkStaged(ctx context.Context, files []Upload, c *bulkCollector) error {
	parsed := make([]*pending, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, up := range files {
		g.Go(func() error {
			p, err := o.register(gctx, up)
			if err != nil {
				c.add(nil, up.FileName, err)
				return nil
			}
			if err := o.parse(gctx, p); err != nil {
				c.add(o.failed(gctx, p, err), up.FileName, nil)
				return nil
			}
			parsed[i] = p
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, p := range parsed {
		if p == nil {
			continue
		}
		g.Go(func() error {
			if err := o.embed(gctx, p); err != nil {
				c.add(o.failed(gctx, p, err), p.fileName, nil)
				return nil
			}
			res := &Ingested{DocID: p.docID, FileName: p.fileName, Phase: core.PhaseCompleted}
			if err := o.extractNow(gctx, p); err != nil {
				res.Phase = core.PhaseError
				res.Error = err.Error()
			}
			c.add(res, p.fileName, nil)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// extractNow runs the extraction pass in the calling goroutine, still
// holding the document's flight so a concurrent resume can't start another.
func (o *Orchestrator) extractNow(ctx context.Context, p *pending) error {
	task, started := o.flights.acquire(p.docID)
	if !started {
		return task.Wait(ctx)
	}
	var err error
	defer func() {
		o.land(p.docID)
		task.finish(err)
	}()
	err = o.extract(ctx, p)
	return err
}
