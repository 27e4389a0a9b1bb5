package ai

import (
	"strconv"
	"strings"

	"github.com/poiesic/docflow/core"
)

// ExtractionRequest is the input of one extraction pass.
type ExtractionRequest struct {
	DocID        string
	FileName     string
	DocumentType string
	Chunks       []core.Chunk
}

// Text returns the chunk texts joined in order.
// A page marker precedes the first chunk of each page so the agent can
// report provenance.
func (r ExtractionRequest) Text() string {
	var sb strings.Builder
	lastPage := -1
	for i, c := range r.Chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if c.Page != nil && *c.Page != lastPage {
			sb.WriteString("[page ")
			sb.WriteString(strconv.Itoa(*c.Page))
			sb.WriteString("]\n")
			lastPage = *c.Page
		}
		sb.WriteString(c.Text)
	}
	return sb.String()
}
