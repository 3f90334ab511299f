package content

import (
	"context"

	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

type MemberService struct {
	store docstore.Store
}

func NewMemberService(store docstore.Store) *MemberService {
	return &MemberService{store: store}
}

// FindMembers returns the reference set members with the given member IDs
// under crit.
func (s *MemberService) FindMembers(ctx context.Context, crit vc.Criteria, memberIDs []string) ([]*domain.ReferenceSetMember, error) {
	var out []*domain.ReferenceSetMember
	if len(memberIDs) == 0 {
		return out, nil
	}
	query := docstore.Query{
		Criteria: crit,
		Query: docstore.Bool{
			Must: []docstore.Clause{docstore.Terms{Field: domain.FieldMemberID, Values: memberIDs}},
		},
		PageSize: docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeReferenceSetMember, query, func(m *domain.ReferenceSetMember) error {
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindMembersByRefset returns the members of one reference set under crit,
// optionally active members only.
func (s *MemberService) FindMembersByRefset(ctx context.Context, crit vc.Criteria, refsetID string, activeOnly bool) ([]*domain.ReferenceSetMember, error) {
	must := []docstore.Clause{docstore.Term{Field: domain.FieldRefsetID, Value: refsetID}}
	if activeOnly {
		must = append(must, docstore.Term{Field: domain.FieldActive, Value: true})
	}
	var out []*domain.ReferenceSetMember
	query := docstore.Query{
		Criteria: crit,
		Query:    docstore.Bool{Must: must},
		PageSize: docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeReferenceSetMember, query, func(m *domain.ReferenceSetMember) error {
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveBatch writes new versions of the members within the open commit.
func (s *MemberService) SaveBatch(ctx context.Context, c *vc.Commit, members []*domain.ReferenceSetMember) error {
	docs := make([]docstore.Document, len(members))
	for i, m := range members {
		m.MarkChanged()
		docs[i] = m
	}
	return s.store.SaveBatch(ctx, c, domain.TypeReferenceSetMember, docs)
}
