// Package content holds the component-level services: lookups and batch
// writes for concepts, descriptions, relationships' sibling types, the
// semantic index and the code system registry.
package content

import (
	"context"

	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

type ConceptService struct {
	store docstore.Store
}

func NewConceptService(store docstore.Store) *ConceptService {
	return &ConceptService{store: store}
}

// FindActiveConceptIDs streams every active concept visible under crit.
func (s *ConceptService) FindActiveConceptIDs(ctx context.Context, crit vc.Criteria) ([]string, error) {
	var ids []string
	query := docstore.Query{
		Criteria: crit,
		Query: docstore.Bool{
			Must: []docstore.Clause{docstore.Term{Field: domain.FieldActive, Value: true}},
		},
		SourceFields: []string{domain.FieldConceptID},
		PageSize:     docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeConcept, query, func(c *domain.Concept) error {
		ids = append(ids, c.ConceptID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindActiveConceptIDsAmong returns which of the candidate IDs are active
// concepts under crit.
func (s *ConceptService) FindActiveConceptIDsAmong(ctx context.Context, crit vc.Criteria, candidates []string) (map[string]struct{}, error) {
	active := map[string]struct{}{}
	if len(candidates) == 0 {
		return active, nil
	}
	query := docstore.Query{
		Criteria: crit,
		Query: docstore.Bool{
			Must: []docstore.Clause{
				docstore.Terms{Field: domain.FieldConceptID, Values: candidates},
				docstore.Term{Field: domain.FieldActive, Value: true},
			},
		},
		SourceFields: []string{domain.FieldConceptID},
		PageSize:     docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeConcept, query, func(c *domain.Concept) error {
		active[c.ConceptID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

// FindConcepts returns the concepts with the given IDs under crit.
func (s *ConceptService) FindConcepts(ctx context.Context, crit vc.Criteria, ids []string) ([]*domain.Concept, error) {
	var out []*domain.Concept
	if len(ids) == 0 {
		return out, nil
	}
	query := docstore.Query{
		Criteria: crit,
		Query: docstore.Bool{
			Must: []docstore.Clause{docstore.Terms{Field: domain.FieldConceptID, Values: ids}},
		},
		PageSize: docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeConcept, query, func(c *domain.Concept) error {
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HasContent reports whether any concept at all is visible under crit.
func (s *ConceptService) HasContent(ctx context.Context, crit vc.Criteria) (bool, error) {
	cursor, err := s.store.SearchForStream(ctx, domain.TypeConcept, docstore.Query{Criteria: crit, PageSize: 1})
	if err != nil {
		return false, err
	}
	defer cursor.Close()
	_, ok, err := cursor.Next()
	return ok, err
}

// SaveBatch writes new versions of the concepts within the open commit.
func (s *ConceptService) SaveBatch(ctx context.Context, c *vc.Commit, concepts []*domain.Concept) error {
	docs := make([]docstore.Document, len(concepts))
	for i, concept := range concepts {
		concept.MarkChanged()
		docs[i] = concept
	}
	return s.store.SaveBatch(ctx, c, domain.TypeConcept, docs)
}
