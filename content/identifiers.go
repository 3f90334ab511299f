package content

import (
	"context"

	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

type IdentifierService struct {
	store docstore.Store
}

func NewIdentifierService(store docstore.Store) *IdentifierService {
	return &IdentifierService{store: store}
}

// SaveBatch writes new versions of the identifiers within the open commit.
func (s *IdentifierService) SaveBatch(ctx context.Context, c *vc.Commit, identifiers []*domain.Identifier) error {
	docs := make([]docstore.Document, len(identifiers))
	for i, id := range identifiers {
		id.MarkChanged()
		docs[i] = id
	}
	return s.store.SaveBatch(ctx, c, domain.TypeIdentifier, docs)
}
