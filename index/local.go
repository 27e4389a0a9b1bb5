package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

const (
	defaultTopK          = 4
	defaultMinSimilarity = 0.2
	defaultBatchSize     = 32

	metaFileName   = "file_name"
	metaChunkCount = "chunk_count"
	metaPages      = "pages"
)

const qaPromptTemplate = `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer: `

// Local indexes chunks into a NodeStore using the provider's embedder and
// answers queries with its completer.
type Local struct {
	nodes         storage.NodeStore
	embedder      ai.Embedder
	completer     ai.Completer
	topK          int
	minSimilarity float32
	batchSize     int
	logger        *slog.Logger
	now           func() time.Time
}

var _ Adapter = (*Local)(nil)

// Option configures a Local index.
type Option func(*Local) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// WithTopK sets how many nodes are retrieved per query.
func WithTopK(k int) Option {
	return func(l *Local) error {
		if k <= 0 {
			return fmt.Errorf("top k must be positive, got %d", k)
		}
		l.topK = k
		return nil
	}
}

// WithMinSimilarity sets the similarity a node needs to be retrieved.
func WithMinSimilarity(threshold float32) Option {
	return func(l *Local) error {
		l.minSimilarity = threshold
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) Option {
	return func(l *Local) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		l.batchSize = n
		return nil
	}
}

// NewLocal creates an index over nodes. The provider must supply an
// embedder; a completer is only needed for Query.
func NewLocal(nodes storage.NodeStore, provider ai.Provider, opts ...Option) (*Local, error) {
	if nodes == nil {
		return nil, ErrNodeStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if provider.Embedder() == nil {
		return nil, ErrEmbedderRequired
	}

	l := &Local{
		nodes:         nodes,
		embedder:      provider.Embedder(),
		completer:     provider.Completer(),
		topK:          defaultTopK,
		minSimilarity: defaultMinSimilarity,
		batchSize:     defaultBatchSize,
		logger:        slog.Default(),
		now:           time.Now,
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "index")
	return l, nil
}

func (l *Local) Index(ctx context.Context, docID, fileName string, chunks []core.Chunk) (int, error) {
	if docID == "" {
		return 0, core.ErrEmptyDocID
	}
	var kept []core.Chunk
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return 0, ErrNoChunks
	}

	vectors, err := l.embed(ctx, kept)
	if err != nil {
		l.logger.Error("error embedding chunks", "doc_id", docID, "chunks", len(kept), "err", err)
		return 0, err
	}

	nodes := make([]*core.Node, len(kept))
	ids := make([]core.ID, len(kept))
	pages := make(map[int]bool)
	for i, c := range kept {
		nodes[i] = &core.Node{
			ID:        core.NodeIDFor(docID, i, c.Text),
			DocID:     docID,
			Ordinal:   i,
			FileName:  fileName,
			Text:      c.Text,
			Page:      c.Page,
			BBox:      c.BBox,
			ChunkType: c.ChunkType,
			Vector:    vectors[i],
		}
		ids[i] = nodes[i].ID
		if c.Page != nil {
			pages[*c.Page] = true
		}
	}

	info := &core.RefDocInfo{
		DocID:   docID,
		NodeIDs: ids,
		Metadata: map[string]string{
			metaFileName:   fileName,
			metaChunkCount: strconv.Itoa(len(nodes)),
		},
		IndexedAt: l.now().UTC(),
	}
	if len(pages) > 0 {
		info.Metadata[metaPages] = strconv.Itoa(len(pages))
	}

	if err := l.nodes.AddNodes(ctx, info, nodes...); err != nil {
		l.logger.Error("error storing nodes", "doc_id", docID, "err", err)
		return 0, err
	}
	l.logger.Debug("indexed document", "doc_id", docID, "file_name", fileName, "nodes", len(nodes))
	return len(nodes), nil
}

// embed vectorizes chunks in batches, preserving order.
func (l *Local) embed(ctx context.Context, chunks []core.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += l.batchSize {
		end := min(start+l.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := l.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingMismatch, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (l *Local) Query(ctx context.Context, docIDs []string, prompt string, opts ...QueryOption) (*QueryResult, error) {
	if l.completer == nil {
		return nil, ErrCompleterRequired
	}
	var qo queryOptions
	for _, opt := range opts {
		opt(&qo)
	}

	vector, err := l.embedder.EmbedText(ctx, prompt)
	if err != nil {
		l.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	matches, err := l.nodes.FindSimilar(ctx, vector, docIDs, l.minSimilarity, l.topK)
	if err != nil {
		l.logger.Error("error querying for similar nodes", "err", err)
		return nil, err
	}
	if len(matches) == 0 {
		return &QueryResult{}, nil
	}

	result := &QueryResult{Sources: make([]Source, 0, len(matches))}
	var sources strings.Builder
	for i, m := range matches {
		if i > 0 {
			sources.WriteString("\n\n")
		}
		if m.Node.Page != nil {
			fmt.Fprintf(&sources, "page_label: %d\n", *m.Node.Page)
		}
		sources.WriteString(m.Node.Text)

		result.Sources = append(result.Sources, Source{
			NodeID: m.Node.ID,
			DocID:  m.Node.DocID,
			Text:   m.Node.Text,
			Page:   m.Node.Page,
			BBox:   m.Node.BBox,
			Score:  m.Score,
		})
	}

	answer, err := l.completer.Complete(ctx, qo.system, fmt.Sprintf(qaPromptTemplate, sources.String(), prompt))
	if err != nil {
		l.logger.Error("error completing query", "err", err)
		return nil, err
	}
	result.Text = answer
	return result, nil
}

func (l *Local) Delete(ctx context.Context, docID string) (int, error) {
	return l.nodes.DeleteDocument(ctx, docID)
}

func (l *Local) CountChunks(ctx context.Context, docID string) (int, error) {
	return l.nodes.CountNodes(ctx, docID)
}

func (l *Local) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	infos, err := l.nodes.ListRefDocInfo(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]DocumentInfo, 0, len(infos))
	for _, info := range infos {
		docs = append(docs, DocumentInfo{
			DocID:     info.DocID,
			FileName:  info.Metadata[metaFileName],
			NodeCount: len(info.NodeIDs),
			Metadata:  info.Metadata,
			IndexedAt: info.IndexedAt,
		})
	}
	return docs, nil
}

func (l *Local) Document(ctx context.Context, docID string) (*DocumentText, error) {
	info, err := l.nodes.GetRefDocInfo(ctx, docID)
	if err != nil {
		return nil, err
	}
	nodes, err := l.nodes.GetNodes(ctx, info.NodeIDs...)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		texts = append(texts, n.Text)
	}
	return &DocumentText{
		DocID:    docID,
		Text:     strings.Join(texts, "\n\n"),
		Metadata: info.Metadata,
	}, nil
}
