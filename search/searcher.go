package search

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

const (
	// DefaultMinSimilarity is the similarity a node needs to be a candidate.
	DefaultMinSimilarity = 0.2

	// VerbatimBoost is added to the score of a passage containing every
	// significant query word.
	VerbatimBoost = 0.3

	// candidates fetched per requested hit, so boosted passages ranked
	// just below the cut can still surface
	oversample = 3
)

// Passage is one retrieved node with its final score.
type Passage struct {
	NodeID   core.ID            `json:"node_id"`
	DocID    string             `json:"doc_id"`
	FileName string             `json:"file_name"`
	Ordinal  int                `json:"ordinal"`
	Text     string             `json:"text"`
	Page     *int               `json:"page,omitempty"`
	BBox     []core.BoundingBox `json:"bbox,omitempty"`
	Score    float32            `json:"score"`
	Verbatim bool               `json:"verbatim"`
}

// Searcher retrieves passages from indexed documents.
type Searcher struct {
	nodes         storage.NodeStore
	embedder      ai.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the similarity a node needs to be a candidate.
func WithMinSimilarity(threshold float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = threshold
		return nil
	}
}

// NewSearcher creates a searcher over nodes, embedding queries with the
// provider's embedder.
func NewSearcher(nodes storage.NodeStore, provider ai.Provider, opts ...Option) (*Searcher, error) {
	if nodes == nil {
		return nil, ErrNodeStoreRequired
	}
	if provider == nil || provider.Embedder() == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		nodes:         nodes,
		embedder:      provider.Embedder(),
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")
	return s, nil
}

// Find returns up to maxHits passages relevant to query, restricted to
// docIDs when non-empty, best first.
func (s *Searcher) Find(ctx context.Context, query string, docIDs []string, maxHits int) ([]*Passage, error) {
	return s.FindWithMonitor(ctx, query, docIDs, maxHits, nil)
}

// FindWithMonitor is Find with callbacks at each stage.
func (s *Searcher) FindWithMonitor(ctx context.Context, query string, docIDs []string, maxHits int, monitor Monitor) ([]*Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		return []*Passage{}, nil
	}
	if monitor == nil {
		monitor = noopMonitor{}
	}
	monitor.Start(query, docIDs)

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	matches, err := s.nodes.FindSimilar(ctx, vector, docIDs, s.minSimilarity, maxHits*oversample)
	if err != nil {
		s.logger.Error("error querying for similar nodes", "err", err)
		return nil, err
	}

	ids := make([]core.ID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Node.ID)
	}
	monitor.AfterSemanticSearch(ids)

	results := make([]*Passage, 0, len(matches))
	for _, m := range matches {
		p := &Passage{
			NodeID:   m.Node.ID,
			DocID:    m.Node.DocID,
			FileName: m.Node.FileName,
			Ordinal:  m.Node.Ordinal,
			Text:     m.Node.Text,
			Page:     m.Node.Page,
			BBox:     m.Node.BBox,
			Score:    m.Score,
		}
		if containsAllWords(m.Node.Text, query) {
			p.Score += VerbatimBoost
			p.Verbatim = true
			monitor.VerbatimHit(m.Node)
		} else {
			monitor.SemanticHit(m.Node)
		}
		results = append(results, p)
	}

	slices.SortStableFunc(results, func(a, b *Passage) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	s.logger.Debug("search complete", "candidates", len(matches), "results", len(results))
	return results, nil
}
