package content

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// miniCacheExpiry bounds cache growth; keys include the branch head so stale
// entries are never served, only evicted.
const miniCacheExpiry = 4 * time.Hour

type cachedTerms struct {
	FSN string `json:"fsn,omitempty"`
	PT  string `json:"pt,omitempty"`
}

type DescriptionService struct {
	store docstore.Store
	cache termcore.Cache
}

func NewDescriptionService(store docstore.Store, cache termcore.Cache) *DescriptionService {
	return &DescriptionService{store: store, cache: cache}
}

// SaveBatch writes new versions of the descriptions within the open commit.
func (s *DescriptionService) SaveBatch(ctx context.Context, c *vc.Commit, descriptions []*domain.Description) error {
	docs := make([]docstore.Document, len(descriptions))
	for i, d := range descriptions {
		d.MarkChanged()
		docs[i] = d
	}
	return s.store.SaveBatch(ctx, c, domain.TypeDescription, docs)
}

// FindConceptMinis builds display summaries for the given concepts as seen
// from branch b.
func (s *DescriptionService) FindConceptMinis(ctx context.Context, b *vc.Branch, conceptIDs []string) (map[string]*domain.ConceptMini, error) {
	minis := make(map[string]*domain.ConceptMini, len(conceptIDs))
	for _, id := range conceptIDs {
		minis[id] = domain.NewConceptMini(id)
	}
	if err := s.JoinActiveDescriptions(ctx, b, minis); err != nil {
		return nil, err
	}
	return minis, nil
}

// JoinActiveDescriptions fills the FSN and preferred term of each mini from
// the active descriptions visible on b. Terms are cached per branch head.
func (s *DescriptionService) JoinActiveDescriptions(ctx context.Context, b *vc.Branch, minis map[string]*domain.ConceptMini) error {
	var missing []string
	for id, mini := range minis {
		var terms cachedTerms
		found, err := s.cache.GetStruct(ctx, s.cacheKey(b, id), &terms)
		if err != nil {
			log.Warn("term cache read failed", "conceptId", id, "error", err)
		}
		if found {
			mini.FSN = terms.FSN
			mini.PT = terms.PT
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return nil
	}

	query := docstore.Query{
		Criteria: vc.CriteriaOn(b),
		Query: docstore.Bool{
			Must: []docstore.Clause{
				docstore.Terms{Field: domain.FieldConceptID, Values: missing},
				docstore.Term{Field: domain.FieldActive, Value: true},
			},
		},
		SourceFields: []string{domain.FieldConceptID, domain.FieldTypeID, domain.FieldTerm},
		PageSize:     docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeDescription, query, func(d *domain.Description) error {
		mini := minis[d.ConceptID]
		if mini == nil {
			return nil
		}
		switch d.TypeID {
		case domain.FSN:
			if mini.FSN == "" {
				mini.FSN = d.Term
			}
		case domain.Synonym:
			if mini.PT == "" {
				mini.PT = d.Term
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range missing {
		mini := minis[id]
		terms := cachedTerms{FSN: mini.FSN, PT: mini.PT}
		if err := s.cache.SetStruct(ctx, s.cacheKey(b, id), terms, miniCacheExpiry); err != nil {
			log.Warn("term cache write failed", "conceptId", id, "error", err)
		}
	}
	return nil
}

func (s *DescriptionService) cacheKey(b *vc.Branch, conceptID string) string {
	return fmt.Sprintf("terms:%s:%d:%s", b.Path, b.Head, conceptID)
}
