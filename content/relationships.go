package content

import (
	"context"

	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

type RelationshipService struct {
	store docstore.Store
}

func NewRelationshipService(store docstore.Store) *RelationshipService {
	return &RelationshipService{store: store}
}

// FindRelationships returns the relationships with the given IDs under crit.
func (s *RelationshipService) FindRelationships(ctx context.Context, crit vc.Criteria, ids []string) ([]*domain.Relationship, error) {
	var out []*domain.Relationship
	if len(ids) == 0 {
		return out, nil
	}
	query := docstore.Query{
		Criteria: crit,
		Query: docstore.Bool{
			Must: []docstore.Clause{docstore.Terms{Field: domain.FieldRelationshipID, Values: ids}},
		},
		PageSize: docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeRelationship, query, func(r *domain.Relationship) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveBatch writes new versions of the relationships within the open commit.
func (s *RelationshipService) SaveBatch(ctx context.Context, c *vc.Commit, relationships []*domain.Relationship) error {
	docs := make([]docstore.Document, len(relationships))
	for i, r := range relationships {
		r.MarkChanged()
		docs[i] = r
	}
	return s.store.SaveBatch(ctx, c, domain.TypeRelationship, docs)
}
