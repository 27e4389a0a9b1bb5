package badger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/storage"
)

// NodeRepository implements storage.NodeStore for BadgerDB.
// Nodes and RefDocInfo records are stored as JSON values.
type NodeRepository struct {
	backend *Backend
}

var _ storage.NodeStore = (*NodeRepository)(nil)

// NewNodeRepository creates a NodeRepository that owns backend.
func NewNodeRepository(backend *Backend) (*NodeRepository, error) {
	if backend == nil {
		return nil, errors.New("badger: backend is required")
	}
	return &NodeRepository{backend: backend}, nil
}

// Close closes the underlying backend.
func (r *NodeRepository) Close() error {
	if r.backend.IsClosed() {
		return nil
	}
	return r.backend.Close()
}

// AddNodes stores nodes for info.DocID, replacing any nodes indexed for it before.
func (r *NodeRepository) AddNodes(ctx context.Context, info *core.RefDocInfo, nodes ...*core.Node) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if info == nil || info.DocID == "" {
		return fmt.Errorf("%w: missing document id", storage.ErrInvalidQuery)
	}

	ref := &core.RefDocInfo{
		DocID:     info.DocID,
		Metadata:  info.Metadata,
		IndexedAt: info.IndexedAt,
		NodeIDs:   make([]core.ID, 0, len(nodes)),
	}
	if ref.IndexedAt.IsZero() {
		ref.IndexedAt = time.Now().UTC()
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Drop whatever a previous indexing pass left behind
		old, err := readRefDocInfo(tx, info.DocID)
		if err != nil {
			return err
		}
		if old != nil {
			for _, id := range old.NodeIDs {
				if err := tx.Delete(makeNodeKey(id)); err != nil {
					return err
				}
			}
		}

		for _, node := range nodes {
			if node.DocID != info.DocID {
				return fmt.Errorf("%w: node %d belongs to %q, not %q",
					storage.ErrInvalidQuery, node.ID, node.DocID, info.DocID)
			}
			if err := setJSON(tx, makeNodeKey(node.ID), node); err != nil {
				return err
			}
			ref.NodeIDs = append(ref.NodeIDs, node.ID)
		}

		if err := setJSON(tx, makeDocRefKey(info.DocID), ref); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	r.backend.logger.Debug("nodes added", "doc_id", info.DocID, "count", len(nodes))
	return nil
}

// DeleteDocument removes every node of docID and its RefDocInfo.
func (r *NodeRepository) DeleteDocument(ctx context.Context, docID string) (int, error) {
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	var removed int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ref, err := readRefDocInfo(tx, docID)
		if err != nil {
			return err
		}
		if ref == nil {
			return fmt.Errorf("document %s: %w", docID, storage.ErrNotFound)
		}
		for _, id := range ref.NodeIDs {
			if err := tx.Delete(makeNodeKey(id)); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeDocRefKey(docID)); err != nil {
			return err
		}
		removed = len(ref.NodeIDs)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// GetRefDocInfo returns the bookkeeping record of docID.
func (r *NodeRepository) GetRefDocInfo(ctx context.Context, docID string) (*core.RefDocInfo, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var ref *core.RefDocInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		ref, err = readRefDocInfo(tx, docID)
		if err != nil {
			return err
		}
		if ref == nil {
			return fmt.Errorf("document %s: %w", docID, storage.ErrNotFound)
		}
		return nil
	}, false)
	return ref, err
}

// ListRefDocInfo returns every bookkeeping record, ordered by document ID.
func (r *NodeRepository) ListRefDocInfo(ctx context.Context) ([]*core.RefDocInfo, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var refs []*core.RefDocInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docRefPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var ref core.RefDocInfo
			if err := iter.Item().Value(func(val []byte) error {
				return unmarshal(val, &ref)
			}); err != nil {
				return err
			}
			refs = append(refs, &ref)
		}
		return nil
	}, false)
	return refs, err
}

// GetNodes retrieves nodes by ID, skipping IDs that don't exist.
// The result is ordered by document ID and then ordinal.
func (r *NodeRepository) GetNodes(ctx context.Context, ids ...core.ID) ([]*core.Node, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var nodes []*core.Node
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			node, err := readNode(tx, makeNodeKey(id))
			if err != nil {
				return err
			}
			if node != nil {
				nodes = append(nodes, node)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(nodes, func(a, b *core.Node) int {
		if c := cmp.Compare(a.DocID, b.DocID); c != 0 {
			return c
		}
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	return nodes, nil
}

// CountNodes returns the number of nodes indexed for docID, zero if none.
func (r *NodeRepository) CountNodes(ctx context.Context, docID string) (int, error) {
	ref, err := r.GetRefDocInfo(ctx, docID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(ref.NodeIDs), nil
}

// FindSimilar scores nodes against vector by dot product.
// When docIDs is non-empty only those documents' nodes are visited.
func (r *NodeRepository) FindSimilar(ctx context.Context, vector []float32, docIDs []string, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var results []*core.SearchResult
	consider := func(node *core.Node) {
		// Skip nodes without embeddings
		if node == nil || len(node.Vector) == 0 {
			return
		}
		similarity := dotProduct(vector, node.Vector)
		if similarity >= minSimilarity {
			results = append(results, &core.SearchResult{Node: node, Score: similarity})
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if len(docIDs) > 0 {
			for _, docID := range docIDs {
				ref, err := readRefDocInfo(tx, docID)
				if err != nil {
					return err
				}
				if ref == nil {
					continue
				}
				for _, id := range ref.NodeIDs {
					node, err := readNode(tx, makeNodeKey(id))
					if err != nil {
						return err
					}
					consider(node)
				}
			}
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(nodePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var node core.Node
			if err := iter.Item().Value(func(val []byte) error {
				return unmarshal(val, &node)
			}); err != nil {
				return err
			}
			consider(&node)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Helper functions

func setJSON(tx *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return tx.Set(key, data)
}

func unmarshal(val []byte, v any) error {
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCorrupted, err)
	}
	return nil
}

// readNode reads a node from the transaction, nil if absent.
func readNode(tx *badger.Txn, key []byte) (*core.Node, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var node core.Node
	if err := item.Value(func(val []byte) error {
		return unmarshal(val, &node)
	}); err != nil {
		return nil, err
	}
	return &node, nil
}

// readRefDocInfo reads a bookkeeping record, nil if absent.
func readRefDocInfo(tx *badger.Txn, docID string) (*core.RefDocInfo, error) {
	item, err := tx.Get(makeDocRefKey(docID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var ref core.RefDocInfo
	if err := item.Value(func(val []byte) error {
		return unmarshal(val, &ref)
	}); err != nil {
		return nil, err
	}
	return &ref, nil
}
