package badger

import (
	"encoding/binary"

	"github.com/poiesic/docflow/core"
)

// Key prefixes for different data types
const (
	nodePrefix   = "node:"
	docRefPrefix = "docref:"
)

// makeNodeKey generates a key for a node by ID.
// Format: prefix + 8 byte big-endian ID
func makeNodeKey(id core.ID) []byte {
	buf := make([]byte, len(nodePrefix)+8)
	offset := copy(buf, nodePrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeDocRefKey generates a key for a document's bookkeeping record.
func makeDocRefKey(docID string) []byte {
	return []byte(docRefPrefix + docID)
}
