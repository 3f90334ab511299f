package integrity

import (
	"context"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/owl"
	"github.com/clinterm/termcore/vc"
)

type Service struct {
	store         docstore.Store
	branches      vc.BranchService
	concepts      *content.ConceptService
	descriptions  *content.DescriptionService
	members       *content.MemberService
	relationships *content.RelationshipService
	codeSystems   *content.CodeSystemService
}

func NewService(store docstore.Store, branches vc.BranchService, concepts *content.ConceptService,
	descriptions *content.DescriptionService, members *content.MemberService,
	relationships *content.RelationshipService, codeSystems *content.CodeSystemService) *Service {
	return &Service{
		store:         store,
		branches:      branches,
		concepts:      concepts,
		descriptions:  descriptions,
		members:       members,
		relationships: relationships,
		codeSystems:   codeSystems,
	}
}

// CheckChangedComponents runs the incremental integrity check: only the
// components changed on b, plus the components anywhere that reference a
// concept deleted or inactivated on b, are inspected. Not available on the
// root branch, which has no baseline to diff against; use CheckFullContent
// there.
func (s *Service) CheckChangedComponents(ctx context.Context, b *vc.Branch) (*Report, error) {
	if b.Path == vc.RootPath {
		return nil, termcore.Errorf(termcore.RuntimeState, "incremental integrity check is not supported on the root branch, use a full check")
	}
	return s.checkChanged(ctx, b, vc.CriteriaUnpromotedChangesAndDeletions(b), vc.CriteriaOn(b))
}

func (s *Service) checkChanged(ctx context.Context, b *vc.Branch, changedCrit, visibleCrit vc.Criteria) (*Report, error) {
	report := NewReport()

	// Concepts deleted or inactivated by the branch changes.
	brokenConcepts, err := s.findDeletedOrInactivatedConcepts(ctx, changedCrit, visibleCrit)
	if err != nil {
		return nil, err
	}

	changedOnlyCrit := changedCrit
	changedOnlyCrit.IncludeDeletions = false

	// Relationships changed on the branch, checked against all concepts.
	changedRelationships, err := s.collectRelationships(ctx, changedOnlyCrit, docstore.Bool{
		Must:    []docstore.Clause{docstore.Term{Field: domain.FieldActive, Value: true}},
		MustNot: []docstore.Clause{docstore.Term{Field: domain.FieldCharacteristicTypeID, Value: domain.InferredRelationship}},
	})
	if err != nil {
		return nil, err
	}
	referenced := map[string]struct{}{}
	for _, r := range changedRelationships {
		addRelationshipRefs(referenced, r)
	}
	missing, err := s.findMissingOrInactive(ctx, visibleCrit, referenced)
	if err != nil {
		return nil, err
	}
	for _, r := range changedRelationships {
		recordRelationshipIssues(report, r, missing)
	}

	// All visible relationships that reference a concept broken by the branch.
	if len(brokenConcepts) > 0 {
		brokenList := setToSlice(brokenConcepts)
		affected, err := s.collectRelationships(ctx, visibleCrit, docstore.Bool{
			Must:    []docstore.Clause{docstore.Term{Field: domain.FieldActive, Value: true}},
			MustNot: []docstore.Clause{docstore.Term{Field: domain.FieldCharacteristicTypeID, Value: domain.InferredRelationship}},
			Should: []docstore.Clause{
				docstore.Terms{Field: domain.FieldSourceID, Values: brokenList},
				docstore.Terms{Field: domain.FieldTypeID, Values: brokenList},
				docstore.Terms{Field: domain.FieldDestinationID, Values: brokenList},
			},
		})
		if err != nil {
			return nil, err
		}
		for _, r := range affected {
			recordRelationshipIssues(report, r, brokenConcepts)
		}
	}

	if err := s.checkChangedAxioms(ctx, b, changedOnlyCrit, visibleCrit, brokenConcepts, report); err != nil {
		return nil, err
	}
	return report, nil
}

// findDeletedOrInactivatedConcepts diffs the concepts touched on the branch
// against their current visible state.
func (s *Service) findDeletedOrInactivatedConcepts(ctx context.Context, changedCrit, visibleCrit vc.Criteria) (map[string]struct{}, error) {
	touched := map[string]struct{}{}
	query := docstore.Query{Criteria: changedCrit, SourceFields: []string{domain.FieldConceptID}, PageSize: docstore.LargePageSize}
	err := docstore.EachHit(ctx, s.store, domain.TypeConcept, query, func(c *domain.Concept) error {
		touched[c.ConceptID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.findMissingOrInactive(ctx, visibleCrit, touched)
}

// findMissingOrInactive reduces ids to those which are not active concepts
// under crit.
func (s *Service) findMissingOrInactive(ctx context.Context, crit vc.Criteria, ids map[string]struct{}) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}
	active, err := s.concepts.FindActiveConceptIDsAmong(ctx, crit, setToSlice(ids))
	if err != nil {
		return nil, err
	}
	missing := map[string]struct{}{}
	for id := range ids {
		if _, ok := active[id]; !ok {
			missing[id] = struct{}{}
		}
	}
	return missing, nil
}

func (s *Service) collectRelationships(ctx context.Context, crit vc.Criteria, q docstore.Bool) ([]*domain.Relationship, error) {
	var out []*domain.Relationship
	query := docstore.Query{Criteria: crit, Query: q, PageSize: docstore.LargePageSize}
	err := docstore.EachHit(ctx, s.store, domain.TypeRelationship, query, func(r *domain.Relationship) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkChangedAxioms inspects axioms changed on the branch plus, via the
// stated semantic index, axioms anywhere whose expression references a
// concept broken by the branch.
func (s *Service) checkChangedAxioms(ctx context.Context, b *vc.Branch, changedCrit, visibleCrit vc.Criteria,
	brokenConcepts map[string]struct{}, report *Report) error {

	candidates := map[string]*domain.ReferenceSetMember{}
	changedQuery := docstore.Query{
		Criteria: changedCrit,
		Query: docstore.Bool{
			Must: []docstore.Clause{
				docstore.Term{Field: domain.FieldRefsetID, Value: domain.OWLAxiomReferenceSet},
				docstore.Term{Field: domain.FieldActive, Value: true},
			},
		},
		PageSize: docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeReferenceSetMember, changedQuery, func(m *domain.ReferenceSetMember) error {
		candidates[m.MemberID] = m
		return nil
	})
	if err != nil {
		return err
	}

	if len(brokenConcepts) > 0 {
		owners, err := s.findAxiomOwnersReferencing(ctx, visibleCrit, setToSlice(brokenConcepts))
		if err != nil {
			return err
		}
		if len(owners) > 0 {
			ownerQuery := docstore.Query{
				Criteria: visibleCrit,
				Query: docstore.Bool{
					Must: []docstore.Clause{
						docstore.Term{Field: domain.FieldRefsetID, Value: domain.OWLAxiomReferenceSet},
						docstore.Term{Field: domain.FieldActive, Value: true},
						docstore.Terms{Field: domain.FieldReferencedComponentID, Values: owners},
					},
				},
				PageSize: docstore.LargePageSize,
			}
			err = docstore.EachHit(ctx, s.store, domain.TypeReferenceSetMember, ownerQuery, func(m *domain.ReferenceSetMember) error {
				if _, ok := candidates[m.MemberID]; !ok {
					candidates[m.MemberID] = m
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Parse each candidate once and verify every concept it references.
	referencedByMember := map[string][]string{}
	allReferenced := map[string]struct{}{}
	for id, m := range candidates {
		refs, err := owl.ReferencedConcepts(m.OwlExpression())
		if err != nil {
			return termcore.Errorf(termcore.Conversion, "failed to deserialise axiom %s, details: %w", id, err)
		}
		referencedByMember[id] = refs
		for _, ref := range refs {
			allReferenced[ref] = struct{}{}
		}
	}
	missing, err := s.findMissingOrInactive(ctx, visibleCrit, allReferenced)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	ownerIDs := map[string]struct{}{}
	brokenAxioms := map[string][]string{}
	for id, refs := range referencedByMember {
		for _, ref := range refs {
			if _, bad := missing[ref]; bad {
				brokenAxioms[id] = append(brokenAxioms[id], ref)
				ownerIDs[candidates[id].ReferencedComponentID] = struct{}{}
			}
		}
	}
	if len(brokenAxioms) == 0 {
		return nil
	}
	minis, err := s.descriptions.FindConceptMinis(ctx, b, setToSlice(ownerIDs))
	if err != nil {
		return err
	}
	for memberID, badRefs := range brokenAxioms {
		ownerID := candidates[memberID].ReferencedComponentID
		mini := minis[ownerID]
		if mini == nil {
			mini = domain.NewConceptMini(ownerID)
		}
		for _, ref := range badRefs {
			mini.AddMissingOrInactiveConcept(ref)
		}
		report.addAxiomIssue(memberID, mini)
	}
	return nil
}

// findAxiomOwnersReferencing returns the concepts whose stated index entry
// carries any of the given concepts as an attribute value.
func (s *Service) findAxiomOwnersReferencing(ctx context.Context, crit vc.Criteria, conceptIDs []string) ([]string, error) {
	var owners []string
	query := docstore.Query{
		Criteria: crit,
		Query: docstore.Bool{
			Must: []docstore.Clause{
				docstore.Term{Field: domain.FieldStated, Value: true},
				docstore.Terms{Field: domain.FieldAttrAny, Values: conceptIDs},
			},
		},
		SourceFields: []string{domain.FieldConceptID},
		PageSize:     docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, s.store, domain.TypeQueryConcept, query, func(q *domain.QueryConcept) error {
		owners = append(owners, q.ConceptID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return owners, nil
}

func addRelationshipRefs(refs map[string]struct{}, r *domain.Relationship) {
	refs[r.SourceID] = struct{}{}
	refs[r.TypeID] = struct{}{}
	if !r.Concrete() {
		refs[r.DestinationID] = struct{}{}
	}
}

func recordRelationshipIssues(report *Report, r *domain.Relationship, missing map[string]struct{}) {
	if _, bad := missing[r.SourceID]; bad {
		report.addSourceIssue(r.RelationshipID, r.SourceID)
	}
	if _, bad := missing[r.TypeID]; bad {
		report.addTypeIssue(r.RelationshipID, r.TypeID)
	}
	if !r.Concrete() {
		if _, bad := missing[r.DestinationID]; bad {
			report.addDestinationIssue(r.RelationshipID, r.DestinationID)
		}
	}
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
