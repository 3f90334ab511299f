package integrity

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/owl"
	"github.com/clinterm/termcore/vc"
)

// CheckFullContent sweeps every active component visible on b, ignoring what
// changed where. In stated mode everything except the inferred relationships
// is checked, so stated and additional relationships plus the OWL axioms; in
// inferred mode the inferred relationships only.
func (s *Service) CheckFullContent(ctx context.Context, b *vc.Branch, stated bool) (*Report, error) {
	crit := vc.CriteriaOn(b)
	activeIDs, err := s.concepts.FindActiveConceptIDs(ctx, crit)
	if err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = struct{}{}
	}

	relClauses := docstore.Bool{
		Must: []docstore.Clause{docstore.Term{Field: domain.FieldActive, Value: true}},
	}
	if stated {
		relClauses.MustNot = []docstore.Clause{docstore.Term{Field: domain.FieldCharacteristicTypeID, Value: domain.InferredRelationship}}
	} else {
		relClauses.Must = append(relClauses.Must, docstore.Term{Field: domain.FieldCharacteristicTypeID, Value: domain.InferredRelationship})
	}

	report := NewReport()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		relQuery := docstore.Query{
			Criteria: crit,
			Query:    relClauses,
			PageSize: docstore.LargePageSize,
		}
		return docstore.EachHit(gctx, s.store, domain.TypeRelationship, relQuery, func(r *domain.Relationship) error {
			mu.Lock()
			defer mu.Unlock()
			recordRelationshipIssuesAgainstActive(report, r, active)
			return nil
		})
	})

	brokenAxioms := map[string][]string{}
	axiomOwners := map[string]string{}
	if stated {
		g.Go(func() error {
			axiomQuery := docstore.Query{
				Criteria: crit,
				Query: docstore.Bool{
					Must: []docstore.Clause{
						docstore.Term{Field: domain.FieldRefsetID, Value: domain.OWLAxiomReferenceSet},
						docstore.Term{Field: domain.FieldActive, Value: true},
					},
				},
				PageSize: docstore.LargePageSize,
			}
			return docstore.EachHit(gctx, s.store, domain.TypeReferenceSetMember, axiomQuery, func(m *domain.ReferenceSetMember) error {
				refs, err := owl.ReferencedConcepts(m.OwlExpression())
				if err != nil {
					return termcore.Errorf(termcore.Conversion, "failed to deserialise axiom %s, details: %w", m.MemberID, err)
				}
				var bad []string
				for _, ref := range refs {
					if _, ok := active[ref]; !ok {
						bad = append(bad, ref)
					}
				}
				if len(bad) > 0 {
					mu.Lock()
					brokenAxioms[m.MemberID] = bad
					axiomOwners[m.MemberID] = m.ReferencedComponentID
					mu.Unlock()
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(brokenAxioms) > 0 {
		ownerIDs := map[string]struct{}{}
		for _, owner := range axiomOwners {
			ownerIDs[owner] = struct{}{}
		}
		minis, err := s.descriptions.FindConceptMinis(ctx, b, setToSlice(ownerIDs))
		if err != nil {
			return nil, err
		}
		for memberID, badRefs := range brokenAxioms {
			mini := minis[axiomOwners[memberID]]
			if mini == nil {
				mini = domain.NewConceptMini(axiomOwners[memberID])
			}
			for _, ref := range badRefs {
				mini.AddMissingOrInactiveConcept(ref)
			}
			report.addAxiomIssue(memberID, mini)
		}
	}
	return report, nil
}

func recordRelationshipIssuesAgainstActive(report *Report, r *domain.Relationship, active map[string]struct{}) {
	if _, ok := active[r.SourceID]; !ok {
		report.addSourceIssue(r.RelationshipID, r.SourceID)
	}
	if _, ok := active[r.TypeID]; !ok {
		report.addTypeIssue(r.RelationshipID, r.TypeID)
	}
	if !r.Concrete() {
		if _, ok := active[r.DestinationID]; !ok {
			report.addDestinationIssue(r.RelationshipID, r.DestinationID)
		}
	}
}

// FindExtraConceptsInSemanticIndex cross-checks the semantic index against
// the concept documents and returns, per form, the concept IDs indexed
// without a backing concept. A non-empty result indicates an index rebuild is
// needed.
func (s *Service) FindExtraConceptsInSemanticIndex(ctx context.Context, b *vc.Branch) (map[string][]string, error) {
	return s.findExtraConcepts(ctx, b, nil)
}

// FindExtraConceptsInSemanticIndexMatching narrows the cross-check to index
// entries matching a CEL expression, e.g. `doc.stated == true`, so operators
// can audit one form at a time.
func (s *Service) FindExtraConceptsInSemanticIndexMatching(ctx context.Context, b *vc.Branch, expression string) (map[string][]string, error) {
	filter, err := docstore.NewFilter("semantic-index-cross-check", expression)
	if err != nil {
		return nil, err
	}
	return s.findExtraConcepts(ctx, b, filter)
}

func (s *Service) findExtraConcepts(ctx context.Context, b *vc.Branch, filter *docstore.Filter) (map[string][]string, error) {
	crit := vc.CriteriaOn(b)
	known := map[string]struct{}{}
	conceptQuery := docstore.Query{Criteria: crit, SourceFields: []string{domain.FieldConceptID}, PageSize: docstore.LargePageSize}
	err := docstore.EachHit(ctx, s.store, domain.TypeConcept, conceptQuery, func(c *domain.Concept) error {
		known[c.ConceptID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	extra := map[string][]string{}
	record := func(q *domain.QueryConcept) {
		if _, ok := known[q.ConceptID]; !ok {
			form := "inferred"
			if q.Stated {
				form = "stated"
			}
			extra[form] = append(extra[form], q.ConceptID)
		}
	}
	if filter != nil {
		docs, err := docstore.SelectWhere(ctx, s.store, domain.TypeQueryConcept, crit, filter)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if q, ok := d.(*domain.QueryConcept); ok {
				record(q)
			}
		}
	} else {
		indexQuery := docstore.Query{Criteria: crit, PageSize: docstore.LargePageSize}
		err = docstore.EachHit(ctx, s.store, domain.TypeQueryConcept, indexQuery, func(q *domain.QueryConcept) error {
			record(q)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	for form := range extra {
		sort.Strings(extra[form])
	}
	return extra, nil
}
