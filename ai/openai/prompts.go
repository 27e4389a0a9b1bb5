package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
)

const fieldShape = `{"value": string, "page": integer or null, "bbox": {"l": number, "t": number, "r": number, "b": number} or null, "source_snippet": string or null}`

const extractionPromptTemplate = `You extract benefit plan details from insurance booklets and return them as JSON.

Output ONLY valid JSON with exactly the structure below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the
closing brace }.

%s

Each field is either null or an object of this shape:
%s

Rules:
- Set a whole section to null when the booklet has no such coverage.
- Inside a section that exists, set a field to null when the booklet does not state it. Do not guess.
- "value" is the wording of the booklet, shortened only when it is longer than a sentence.
- "page" is the number from the nearest preceding [page N] marker.
- "source_snippet" is the exact text the value was read from.
- Use no keys other than the ones listed.
- The JSON must parse without errors; no trailing commas and no extraneous text outside the object.`

// renderSchema lists every section and its fields in schema order.
func renderSchema() string {
	var sb strings.Builder
	sb.WriteString("{\n")
	sections := core.SectionNames()
	for i, section := range sections {
		fields, _ := core.SectionFields(section)
		fmt.Fprintf(&sb, "  %q: {", section)
		for j, field := range fields {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q: field", field)
		}
		sb.WriteString("} or null")
		if i < len(sections)-1 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("}")
	return sb.String()
}

// buildExtractionPrompt creates the system prompt with the schema embedded.
func buildExtractionPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate, renderSchema(), fieldShape)
}

// buildDocumentMessage wraps the document text with its identifying details.
func buildDocumentMessage(req ai.ExtractionRequest) string {
	var sb strings.Builder
	if req.FileName != "" {
		fmt.Fprintf(&sb, "File: %s\n", req.FileName)
	}
	if req.DocumentType != "" {
		fmt.Fprintf(&sb, "Document type: %s\n", req.DocumentType)
	}
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	sb.WriteString(req.Text())
	return sb.String()
}
