package search

import "strings"

// words too common to count toward a verbatim match
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "be": {}, "is": {}, "are": {}, "was": {},
	"to": {}, "of": {}, "and": {}, "or": {}, "in": {}, "that": {}, "it": {},
	"for": {}, "on": {}, "with": {}, "as": {}, "at": {}, "this": {}, "by": {},
	"from": {}, "what": {}, "which": {}, "how": {}, "my": {}, "your": {},
}

const trimSet = ".,!?;:'\"-()[]{}"

// significantWords lowercases text, strips surrounding punctuation and
// drops stop words.
func significantWords(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(strings.Trim(f, trimSet))
		if w == "" {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words = append(words, w)
	}
	return words
}

// containsAllWords reports whether every significant word of query occurs
// in passage. A query made only of stop words never matches.
func containsAllWords(passage, query string) bool {
	want := significantWords(query)
	if len(want) == 0 {
		return false
	}

	have := make(map[string]struct{})
	for _, w := range significantWords(passage) {
		have[w] = struct{}{}
	}
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}
