package reembed

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

// DocumentIterator walks indexed documents with their nodes.
type DocumentIterator struct {
	nodes storage.NodeStore
}

// NewDocumentIterator creates an iterator over nodes.
func NewDocumentIterator(nodes storage.NodeStore) *DocumentIterator {
	return &DocumentIterator{nodes: nodes}
}

// Documents returns the bookkeeping records to walk: every indexed
// document, or just docIDs when given. Unknown IDs are skipped.
func (it *DocumentIterator) Documents(ctx context.Context, docIDs ...string) ([]*core.RefDocInfo, error) {
	if len(docIDs) == 0 {
		return it.nodes.ListRefDocInfo(ctx)
	}

	infos := make([]*core.RefDocInfo, 0, len(docIDs))
	for _, id := range docIDs {
		info, err := it.nodes.GetRefDocInfo(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", id, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ForEach calls fn with each document and its nodes in ordinal order,
// stopping at the first error or when ctx is done.
func (it *DocumentIterator) ForEach(ctx context.Context, infos []*core.RefDocInfo, fn func(*core.RefDocInfo, []*core.Node) error) error {
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}

		nodes, err := it.nodes.GetNodes(ctx, info.NodeIDs...)
		if err != nil {
			return fmt.Errorf("load nodes of %s: %w", info.DocID, err)
		}
		if len(nodes) == 0 {
			continue
		}
		if err := fn(info, nodes); err != nil {
			return err
		}
	}
	return nil
}
