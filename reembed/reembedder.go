package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

const (
	// DefaultBatchSize is the default number of node texts per embedding call.
	DefaultBatchSize = 32

	// DefaultMaxRetries is the default number of attempts per batch.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default base delay for exponential backoff.
	DefaultRetryDelay = time.Second
)

// Config holds reembedding settings.
type Config struct {
	// BatchSize is the number of node texts sent per embedding call
	BatchSize int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns the default reembedding settings.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:  DefaultBatchSize,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// Summary counts what a run rewrote.
type Summary struct {
	Documents int           `json:"documents"`
	Nodes     int           `json:"nodes"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Reembedder rebuilds node embeddings document by document.
type Reembedder struct {
	iterator  *DocumentIterator
	processor *BatchProcessor
	progress  func(done, total int)
	logger    *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress reports the count of nodes done after each document.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Reembedder) {
		r.progress = fn
	}
}

// NewReembedder creates a reembedder. A nil config uses DefaultConfig.
func NewReembedder(nodes storage.NodeStore, embedder ai.Embedder, config *Config, opts ...Option) (*Reembedder, error) {
	if nodes == nil {
		return nil, ErrNodeStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	r := &Reembedder{
		iterator:  NewDocumentIterator(nodes),
		processor: NewBatchProcessor(nodes, embedder, config.BatchSize, config.MaxRetries, config.RetryDelay),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reembed")
	return r, nil
}

// Run re-embeds docIDs, or every indexed document when none are given.
// Documents finished before an error keep their new vectors.
func (r *Reembedder) Run(ctx context.Context, docIDs ...string) (*Summary, error) {
	start := time.Now()
	infos, err := r.iterator.Documents(ctx, docIDs...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	total := 0
	for _, info := range infos {
		total += len(info.NodeIDs)
	}
	summary := &Summary{}
	if total == 0 {
		r.logger.Info("no indexed nodes to reembed")
		return summary, nil
	}
	r.logger.Info("starting reembedding", "documents", len(infos), "nodes", total)

	err = r.iterator.ForEach(ctx, infos, func(info *core.RefDocInfo, nodes []*core.Node) error {
		if err := r.processor.Process(ctx, info, nodes); err != nil {
			return err
		}
		summary.Documents++
		summary.Nodes += len(nodes)
		r.logger.Debug("reembedded document", "doc_id", info.DocID, "nodes", len(nodes))
		if r.progress != nil {
			r.progress(summary.Nodes, total)
		}
		return nil
	})
	summary.Elapsed = time.Since(start)
	if err != nil {
		r.logger.Error("reembedding stopped", "documents", summary.Documents, "err", err)
		return summary, err
	}

	r.logger.Info("reembedding complete", "documents", summary.Documents, "nodes", summary.Nodes,
		"elapsed", summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}
