package rag

import (
	"fmt"
	"strings"
)

const systemPrompt = `You extract values from insurance benefit documents.
Only report information stated explicitly in the context; do not infer.
Reply with a single JSON object of the form
{"value": "extracted value", "page": page_number, "bbox": {"l": left, "t": top, "r": right, "b": bottom}, "source_snippet": "surrounding text"}
Use null for any part you can't determine. If the value isn't in the document, reply with null and nothing else.`

// FieldPrompt builds the query for one missing field.
func FieldPrompt(cfg *CompanyConfig, section, field string) string {
	fc, _ := cfg.Field(section, field)

	prompt := fc.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("Find the %s in the %s section", field, section)
	}
	if fc.Format != "" {
		prompt += fmt.Sprintf(" (format: %s)", fc.Format)
	}
	if len(fc.Examples) > 0 {
		var b strings.Builder
		b.WriteString(prompt)
		b.WriteString("\nExample values:")
		for _, ex := range fc.Examples {
			b.WriteString("\n- ")
			b.WriteString(ex)
		}
		prompt = b.String()
	}
	return prompt
}
