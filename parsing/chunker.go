package parsing

import (
	"strings"

	"github.com/poiesic/docflow/core"
)

const (
	// DefaultChunkSize is the chunk length in runes.
	DefaultChunkSize = 1200

	// DefaultChunkOverlap is how many runes consecutive chunks share.
	DefaultChunkOverlap = 200

	chunkTypeText = "text"
)

// Chunker splits text into overlapping fixed-size windows.
type Chunker struct {
	Size    int
	Overlap int
}

// DefaultChunker returns a Chunker with the default size and overlap.
func DefaultChunker() Chunker {
	return Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// ChunkText splits text into windows of c.Size runes, each starting
// c.Size-c.Overlap runes after the previous one. Blank windows are dropped.
// A non-positive size falls back to the default; an overlap outside
// [0, size) is treated as zero.
func (c Chunker) ChunkText(text string) []string {
	size, overlap := c.Size, c.Overlap
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	runes := []rune(text)
	out := make([]string, 0, len(runes)/step+1)
	for i := 0; i < len(runes); i += step {
		end := min(i+size, len(runes))
		if part := strings.TrimSpace(string(runes[i:end])); part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// ChunkPages chunks every page separately so no chunk spans a page break.
func (c Chunker) ChunkPages(pages []Page) []core.Chunk {
	var chunks []core.Chunk
	for _, p := range pages {
		for _, part := range c.ChunkText(p.Text) {
			chunk := core.Chunk{Text: part, ChunkType: chunkTypeText}
			if p.Number != nil {
				chunk.Page = core.IntPtr(*p.Number)
			}
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
