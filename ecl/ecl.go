// Package ecl evaluates the small slice of the Expression Constraint Language
// the core needs: a single focus concept with an optional descendant
// operator, answered from the semantic index.
package ecl

import (
	"context"
	"sort"
	"strings"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// SelectConceptIDs evaluates expressions of the form "X", "<X" or "<<X"
// against the stated or inferred form of the semantic index and returns the
// matching concept IDs, sorted. Pipe-delimited terms are ignored, so
// "<< 762706009 |Concept model data attribute|" is accepted.
func SelectConceptIDs(ctx context.Context, store docstore.Store, crit vc.Criteria, stated bool, expression string) ([]string, error) {
	includeSelf := true
	includeDescendants := false
	rest := strings.TrimSpace(expression)
	if after, ok := strings.CutPrefix(rest, "<<"); ok {
		includeDescendants = true
		rest = after
	} else if after, ok := strings.CutPrefix(rest, "<"); ok {
		includeSelf = false
		includeDescendants = true
		rest = after
	}
	if i := strings.Index(rest, "|"); i >= 0 {
		rest = rest[:i]
	}
	focusID := strings.TrimSpace(rest)
	if focusID == "" || strings.ContainsFunc(focusID, func(r rune) bool { return r < '0' || r > '9' }) {
		return nil, termcore.Errorf(termcore.Validation, "unsupported ecl expression '%s'", expression)
	}

	found := map[string]struct{}{}
	query := docstore.Query{
		Criteria: crit,
		Query: docstore.Bool{
			Must: []docstore.Clause{
				docstore.Term{Field: domain.FieldStated, Value: stated},
			},
			Should: []docstore.Clause{
				docstore.Term{Field: domain.FieldConceptID, Value: focusID},
				docstore.Term{Field: domain.FieldAncestors, Value: focusID},
			},
		},
		SourceFields: []string{domain.FieldConceptID, domain.FieldAncestors},
		PageSize:     docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, store, domain.TypeQueryConcept, query, func(q *domain.QueryConcept) error {
		if q.ConceptID == focusID {
			if includeSelf {
				found[q.ConceptID] = struct{}{}
			}
			return nil
		}
		if includeDescendants {
			found[q.ConceptID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
