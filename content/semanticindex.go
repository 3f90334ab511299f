package content

import (
	"context"

	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// SemanticIndexService maintains the query concepts: one entry per concept
// per form (stated/inferred) carrying the transitive closure and grouped
// attribute values.
type SemanticIndexService struct {
	store docstore.Store
}

func NewSemanticIndexService(store docstore.Store) *SemanticIndexService {
	return &SemanticIndexService{store: store}
}

// SaveBatch writes new versions of the index entries within the open commit.
func (s *SemanticIndexService) SaveBatch(ctx context.Context, c *vc.Commit, entries []*domain.QueryConcept) error {
	docs := make([]docstore.Document, len(entries))
	for i, e := range entries {
		docs[i] = e
	}
	return s.store.SaveBatch(ctx, c, domain.TypeQueryConcept, docs)
}

// FindConceptIDs streams the concept IDs indexed in the given form under crit.
func (s *SemanticIndexService) FindConceptIDs(ctx context.Context, crit vc.Criteria, stated bool) ([]string, error) {
	var ids []string
	query := docstore.Query{
		Criteria: crit,
		Query: docstore.Bool{
			Must: []docstore.Clause{docstore.Term{Field: domain.FieldStated, Value: stated}},
		},
		SourceFields: []string{domain.FieldConceptID},
		PageSize:     docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeQueryConcept, query, func(q *domain.QueryConcept) error {
		ids = append(ids, q.ConceptID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
