package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/retry"
	"github.com/poiesic/docflow/storage"
)

// BatchProcessor re-embeds the nodes of one document.
type BatchProcessor struct {
	nodes          storage.NodeStore
	embedder       ai.Embedder
	batchSize      int
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a processor embedding batchSize texts per call.
func NewBatchProcessor(nodes storage.NodeStore, embedder ai.Embedder, batchSize, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchProcessor{
		nodes:          nodes,
		embedder:       embedder,
		batchSize:      batchSize,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds every node of info and replaces the stored nodes. Nothing
// is written unless every batch succeeded.
func (bp *BatchProcessor) Process(ctx context.Context, info *core.RefDocInfo, nodes []*core.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	vectors := make([][]float32, 0, len(nodes))
	for start := 0; start < len(nodes); start += bp.batchSize {
		end := min(start+bp.batchSize, len(nodes))
		texts := make([]string, 0, end-start)
		for _, n := range nodes[start:end] {
			texts = append(texts, n.Text)
		}

		var batch [][]float32
		err := retry.WithBackoff(ctx, func() error {
			var err error
			batch, err = bp.embedder.EmbedTexts(ctx, texts)
			return err
		}, bp.maxRetries, bp.retryBaseDelay)
		if err != nil {
			return fmt.Errorf("embed %s after %d attempts: %w", info.DocID, bp.maxRetries, err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("%w: %s got %d, want %d", ErrEmbeddingMismatch, info.DocID, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}

	updated := make([]*core.Node, len(nodes))
	for i, n := range nodes {
		cp := *n
		cp.Vector = NormalizeVector(vectors[i])
		updated[i] = &cp
	}

	if err := bp.nodes.AddNodes(ctx, info, updated...); err != nil {
		return fmt.Errorf("store nodes of %s: %w", info.DocID, err)
	}
	return nil
}
