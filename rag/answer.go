package rag

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/index"
)

var nullAnswers = map[string]bool{
	"null":           true,
	"none":           true,
	"not found":      true,
	"not specified":  true,
	"not stated":     true,
	"empty response": true,
}

type answerJSON struct {
	Value         json.RawMessage `json:"value"`
	Page          *int            `json:"page"`
	BBox          json.RawMessage `json:"bbox"`
	SourceSnippet *string         `json:"source_snippet"`
}

// ParseAnswer interprets a completion as a field value. It returns nil
// when the answer says the value wasn't found.
func ParseAnswer(result *index.QueryResult) *core.ExtractionField {
	if result == nil {
		return nil
	}
	text := strings.ReplaceAll(result.Text, "```json", "")
	text = strings.TrimSpace(strings.ReplaceAll(text, "```", ""))
	text = strings.TrimSuffix(strings.TrimPrefix(text, "'"), "'")
	if text == "" || nullAnswers[strings.ToLower(strings.TrimSuffix(text, "."))] {
		return nil
	}

	if strings.HasPrefix(text, "{") {
		var raw answerJSON
		if err := json.Unmarshal([]byte(text), &raw); err == nil {
			return fromAnswerJSON(raw)
		}
	}

	// bare JSON scalars such as "\"$500\"" or 25000
	var scalar any
	if err := json.Unmarshal([]byte(text), &scalar); err == nil {
		if v, ok := scalarString(scalar); ok {
			return valueField(v)
		}
	}

	field := &core.ExtractionField{Value: text}
	if best := result.Best(); best != nil && best.Text != "" {
		field.SourceSnippet = core.StringPtr(best.Text)
	}
	return field
}

func fromAnswerJSON(raw answerJSON) *core.ExtractionField {
	var value any
	if len(raw.Value) > 0 {
		if err := json.Unmarshal(raw.Value, &value); err != nil {
			return nil
		}
	}
	v, ok := scalarString(value)
	if !ok {
		return nil
	}
	field := valueField(v)
	if field == nil {
		return nil
	}

	if raw.Page != nil && *raw.Page >= 0 {
		field.Page = core.IntPtr(*raw.Page)
	}
	if box := parseBBox(raw.BBox); box != nil && box.Left <= box.Right && box.Top <= box.Bottom {
		field.BBox = box
	}
	if raw.SourceSnippet != nil && strings.TrimSpace(*raw.SourceSnippet) != "" {
		field.SourceSnippet = core.StringPtr(*raw.SourceSnippet)
	}
	return field
}

func valueField(v string) *core.ExtractionField {
	v = strings.TrimSpace(v)
	if v == "" || nullAnswers[strings.ToLower(v)] {
		return nil
	}
	return &core.ExtractionField{Value: v}
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// parseBBox accepts a single box or a list of boxes, keeping the first.
func parseBBox(raw json.RawMessage) *core.BoundingBox {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		var boxes []core.BoundingBox
		if err := json.Unmarshal(raw, &boxes); err != nil || len(boxes) == 0 {
			return nil
		}
		return &boxes[0]
	}
	var box core.BoundingBox
	if err := json.Unmarshal(raw, &box); err != nil {
		return nil
	}
	return &box
}
