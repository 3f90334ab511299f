// Package owl extracts concept references from OWL functional syntax axiom
// expressions, e.g.
//
//	SubClassOf(:195967001 ObjectIntersectionOf(:50043002 ObjectSomeValuesFrom(:609096000 ...)))
//
// Full axiom conversion to relationship views is out of scope here; integrity
// checking only needs the set of referenced concepts.
package owl

import (
	"sort"
	"strings"

	termcore "github.com/clinterm/termcore"
)

// ReferencedConcepts parses the axiom expression and returns the distinct
// concept IDs it references, sorted. A Conversion error is returned for
// malformed expressions.
func ReferencedConcepts(expression string) ([]string, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, termcore.Errorf(termcore.Conversion, "owl expression is empty")
	}

	seen := map[string]struct{}{}
	depth := 0
	for i := 0; i < len(trimmed); i++ {
		switch trimmed[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, termcore.Errorf(termcore.Conversion, "unbalanced parentheses in owl expression '%s'", expression)
			}
		case ':':
			j := i + 1
			for j < len(trimmed) && trimmed[j] >= '0' && trimmed[j] <= '9' {
				j++
			}
			if j > i+1 {
				seen[trimmed[i+1:j]] = struct{}{}
				i = j - 1
			}
		}
	}
	if depth != 0 {
		return nil, termcore.Errorf(termcore.Conversion, "unbalanced parentheses in owl expression '%s'", expression)
	}
	if len(seen) == 0 {
		return nil, termcore.Errorf(termcore.Conversion, "no concept references found in owl expression '%s'", expression)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
