package search

import (
	"log/slog"

	"github.com/poiesic/docflow/core"
)

// Monitor provides hooks to observe a search.
type Monitor interface {
	Start(query string, docIDs []string)
	AfterSemanticSearch(ids []core.ID)
	VerbatimHit(node *core.Node)
	SemanticHit(node *core.Node)
	Finish(results []*Passage)
}

type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (noopMonitor) Start(_ string, _ []string)      {}
func (noopMonitor) AfterSemanticSearch(_ []core.ID) {}
func (noopMonitor) VerbatimHit(_ *core.Node)        {}
func (noopMonitor) SemanticHit(_ *core.Node)        {}
func (noopMonitor) Finish(_ []*Passage)             {}

// LogMonitor writes each search stage to a logger at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

func (m *LogMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *LogMonitor) Start(query string, docIDs []string) {
	m.logger().Debug("search started", "query", query, "documents", len(docIDs))
}

func (m *LogMonitor) AfterSemanticSearch(ids []core.ID) {
	m.logger().Debug("semantic candidates", "count", len(ids))
}

func (m *LogMonitor) VerbatimHit(node *core.Node) {
	m.logger().Debug("verbatim hit", "doc_id", node.DocID, "ordinal", node.Ordinal)
}

func (m *LogMonitor) SemanticHit(node *core.Node) {
	m.logger().Debug("semantic hit", "doc_id", node.DocID, "ordinal", node.Ordinal)
}

func (m *LogMonitor) Finish(results []*Passage) {
	m.logger().Debug("search finished", "results", len(results))
}
