package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/ai/mock"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage/badger"
)

type recordingMonitor struct {
	started  string
	semantic []core.ID
	verbatim int
	semHits  int
	finished int
}

func (m *recordingMonitor) Start(query string, _ []string)    { m.started = query }
func (m *recordingMonitor) AfterSemanticSearch(ids []core.ID) { m.semantic = ids }
func (m *recordingMonitor) VerbatimHit(_ *core.Node)          { m.verbatim++ }
func (m *recordingMonitor) SemanticHit(_ *core.Node)          { m.semHits++ }
func (m *recordingMonitor) Finish(results []*Passage)         { m.finished = len(results) }

func node(docID string, ordinal int, text string, vector ...float32) *core.Node {
	return &core.Node{
		ID:       core.NodeIDFor(docID, ordinal, text),
		DocID:    docID,
		Ordinal:  ordinal,
		FileName: docID + ".pdf",
		Text:     text,
		Page:     core.IntPtr(ordinal + 1),
		Vector:   vector,
	}
}

// setup indexes two documents with hand-made vectors; every query embeds to [1, 0].
func setup(t *testing.T) (*Searcher, *mock.MockProvider) {
	t.Helper()
	nodes, err := badger.NewMemoryNodeStore()
	require.NoError(t, err)
	t.Cleanup(func() { nodes.Close() })

	ctx := context.Background()
	require.NoError(t, nodes.AddNodes(ctx, &core.RefDocInfo{DocID: "booklet"},
		node("booklet", 0, "Benefits decrease later in life.", 0.9, 0.436),
		node("booklet", 1, "Reduction of benefits: 35% at age 70.", 0.7, 0.714),
		node("booklet", 2, "Claims must be filed within 90 days.", 0.1, 0.995),
	))
	require.NoError(t, nodes.AddNodes(ctx, &core.RefDocInfo{DocID: "certificate"},
		node("certificate", 0, "Coverage ends at retirement.", 0.8, 0.6),
	))

	provider := mock.NewMockProvider()
	provider.GetMockEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	s, err := NewSearcher(nodes, provider)
	require.NoError(t, err)
	return s, provider
}

func TestNewSearcher(t *testing.T) {
	nodes, err := badger.NewMemoryNodeStore()
	require.NoError(t, err)
	defer nodes.Close()
	provider := mock.NewMockProvider()

	t.Run("valid configuration", func(t *testing.T) {
		s, err := NewSearcher(nodes, provider, WithLogger(nil), WithMinSimilarity(0.5))
		require.NoError(t, err)
		assert.Equal(t, float32(0.5), s.minSimilarity)
	})

	t.Run("nil node store", func(t *testing.T) {
		_, err := NewSearcher(nil, provider)
		assert.Equal(t, ErrNodeStoreRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewSearcher(nodes, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestFind_VerbatimBoostReorders(t *testing.T) {
	s, _ := setup(t)

	results, err := s.Find(context.Background(), "reduction at age 70", []string{"booklet"}, 5)
	require.NoError(t, err)

	require.Len(t, results, 2, "the claims passage is below the similarity threshold")
	assert.Equal(t, 1, results[0].Ordinal)
	assert.True(t, results[0].Verbatim)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Equal(t, "booklet.pdf", results[0].FileName)
	require.NotNil(t, results[0].Page)
	assert.Equal(t, 2, *results[0].Page)

	assert.Equal(t, 0, results[1].Ordinal)
	assert.False(t, results[1].Verbatim)
	assert.InDelta(t, 0.9, results[1].Score, 0.001)
}

func TestFind_AllDocuments(t *testing.T) {
	s, _ := setup(t)

	results, err := s.Find(context.Background(), "when does coverage stop", nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "booklet", results[0].DocID)
	assert.Equal(t, "certificate", results[1].DocID)
}

func TestFind_Monitor(t *testing.T) {
	s, _ := setup(t)
	m := &recordingMonitor{}

	results, err := s.FindWithMonitor(context.Background(), "reduction at age 70", nil, 1, m)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "reduction at age 70", m.started)
	assert.Len(t, m.semantic, 3)
	assert.Equal(t, 1, m.verbatim)
	assert.Equal(t, 2, m.semHits)
	assert.Equal(t, 1, m.finished)
}

func TestFind_EdgeCases(t *testing.T) {
	s, provider := setup(t)
	ctx := context.Background()

	_, err := s.Find(ctx, "   ", nil, 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	results, err := s.Find(ctx, "reduction", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Find(ctx, "reduction", []string{"unknown"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	provider.GetMockEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}
	_, err = s.Find(ctx, "reduction", nil, 5)
	assert.ErrorContains(t, err, "embedding service down")
}

func TestLogMonitor_NilLogger(t *testing.T) {
	s, _ := setup(t)
	_, err := s.FindWithMonitor(context.Background(), "reduction", nil, 3, &LogMonitor{})
	assert.NoError(t, err)
}
