package integrity

import (
	"context"
	log "log/slog"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/owl"
	"github.com/clinterm/termcore/vc"
)

// CheckFixes verifies which integrity issues of the code system branch at
// systemPath remain when judged from the fix branch b, and clears the branch
// integrity flag when nothing remains. The fix branch's project and the fix
// branch itself must both be rebased against the code system branch head,
// otherwise fixes would be judged against stale content.
func (s *Service) CheckFixes(ctx context.Context, b *vc.Branch, systemPath string) (*Report, error) {
	return s.checkFixes(ctx, b, vc.CriteriaOn(b), systemPath)
}

func (s *Service) checkFixes(ctx context.Context, b *vc.Branch, fixCrit vc.Criteria, systemPath string) (*Report, error) {
	system, err := s.branches.FindLatest(ctx, systemPath)
	if err != nil {
		return nil, err
	}
	projectPath := vc.ParentPath(b.Path)
	if projectPath == "" {
		return nil, termcore.Errorf(termcore.RuntimeState, "fix verification requires a parent branch, %s has none", b.Path)
	}
	if !vc.IsDescendantOrSelf(projectPath, systemPath) {
		return nil, termcore.Errorf(termcore.Validation, "branch %s does not sit below code system branch %s", b.Path, systemPath)
	}
	if projectPath != systemPath {
		project, err := s.branches.FindLatest(ctx, projectPath)
		if err != nil {
			return nil, err
		}
		if project.Base < system.Head {
			return nil, termcore.Errorf(termcore.RuntimeState, "branch %s must be rebased onto %s before fix verification, base is behind its head", projectPath, systemPath)
		}
	}
	if b.Base < system.Head {
		return nil, termcore.Errorf(termcore.RuntimeState, "branch %s must be rebased onto %s before fix verification, base is behind its head", b.Path, systemPath)
	}

	previous, err := s.CheckChangedComponents(ctx, system)
	if err != nil {
		return nil, err
	}
	if previous.IsEmpty() {
		// Nothing is broken on the code system branch itself, so any issues
		// were introduced on the fix branch and the incremental check finds
		// them there.
		changed := fixCrit
		changed.UnpromotedOnly = true
		changed.IncludeDeletions = true
		remaining, err := s.checkChanged(ctx, b, changed, fixCrit)
		if err != nil {
			return nil, err
		}
		return remaining, s.clearFlagIfResolved(ctx, b, remaining)
	}

	remaining := NewReport()

	// Each role map is walked on its own; a relationship can appear in more
	// than one with different referenced concepts. Inferred relationships are
	// not re-judged here, matching the incremental check.
	roleMaps := []struct {
		issues  map[string]string
		roleOf  func(*domain.Relationship) string
		record  func(*Report, string, string)
		applies func(*domain.Relationship) bool
	}{
		{previous.RelationshipsWithMissingOrInactiveSource,
			func(r *domain.Relationship) string { return r.SourceID },
			(*Report).addSourceIssue,
			func(r *domain.Relationship) bool { return true }},
		{previous.RelationshipsWithMissingOrInactiveType,
			func(r *domain.Relationship) string { return r.TypeID },
			(*Report).addTypeIssue,
			func(r *domain.Relationship) bool { return true }},
		{previous.RelationshipsWithMissingOrInactiveDestination,
			func(r *domain.Relationship) string { return r.DestinationID },
			(*Report).addDestinationIssue,
			func(r *domain.Relationship) bool { return !r.Concrete() }},
	}

	idSet := map[string]struct{}{}
	for _, rm := range roleMaps {
		for relID := range rm.issues {
			idSet[relID] = struct{}{}
		}
	}
	relationships, err := s.relationships.FindRelationships(ctx, fixCrit, setToSlice(idSet))
	if err != nil {
		return nil, err
	}
	current := map[string]*domain.Relationship{}
	for _, r := range relationships {
		current[r.RelationshipID] = r
	}
	stillApplies := func(r *domain.Relationship, rm func(*domain.Relationship) bool) bool {
		return r != nil && r.Active && r.CharacteristicTypeID != domain.InferredRelationship && rm(r)
	}

	// First pass gathers the concepts the surviving relationships reference
	// now; a fix may have retargeted rather than removed them.
	toCheck := map[string]struct{}{}
	for _, rm := range roleMaps {
		for relID := range rm.issues {
			r := current[relID]
			if !stillApplies(r, rm.applies) {
				continue
			}
			toCheck[rm.roleOf(r)] = struct{}{}
		}
	}
	missing, err := s.findMissingOrInactive(ctx, fixCrit, toCheck)
	if err != nil {
		return nil, err
	}
	for _, rm := range roleMaps {
		for relID := range rm.issues {
			r := current[relID]
			if !stillApplies(r, rm.applies) {
				continue
			}
			conceptID := rm.roleOf(r)
			if _, bad := missing[conceptID]; bad {
				rm.record(remaining, relID, conceptID)
			}
		}
	}

	if err := s.checkAxiomFixes(ctx, b, fixCrit, previous, remaining); err != nil {
		return nil, err
	}
	log.Info("fix verification completed", "path", b.Path, "codeSystemPath", systemPath,
		"previousAxiomIssues", len(previous.AxiomsWithMissingOrInactiveReferencedConcept),
		"remainingAxiomIssues", len(remaining.AxiomsWithMissingOrInactiveReferencedConcept))
	return remaining, s.clearFlagIfResolved(ctx, b, remaining)
}

// clearFlagIfResolved drops the integrity flag from the branch metadata and
// persists it once no issues remain.
func (s *Service) clearFlagIfResolved(ctx context.Context, b *vc.Branch, remaining *Report) error {
	if !remaining.IsEmpty() || b.InternalFlag(vc.IntegrityIssueKey) != "true" {
		return nil
	}
	delete(b.Metadata.MapOrCreate(vc.InternalMetadataKey), vc.IntegrityIssueKey)
	if err := s.branches.UpdateMetadata(ctx, b.Path, b.Metadata); err != nil {
		return err
	}
	log.Info("integrity issues resolved, clearing branch flag", "path", b.Path)
	return nil
}

func (s *Service) checkAxiomFixes(ctx context.Context, b *vc.Branch, crit vc.Criteria, previous, remaining *Report) error {
	if len(previous.AxiomsWithMissingOrInactiveReferencedConcept) == 0 {
		return nil
	}
	memberIDs := make([]string, 0, len(previous.AxiomsWithMissingOrInactiveReferencedConcept))
	for id := range previous.AxiomsWithMissingOrInactiveReferencedConcept {
		memberIDs = append(memberIDs, id)
	}
	members, err := s.members.FindMembers(ctx, crit, memberIDs)
	if err != nil {
		return err
	}

	referencedByMember := map[string][]string{}
	allReferenced := map[string]struct{}{}
	ownerByMember := map[string]string{}
	for _, m := range members {
		if !m.Active {
			continue
		}
		refs, err := owl.ReferencedConcepts(m.OwlExpression())
		if err != nil {
			return termcore.Errorf(termcore.Conversion, "failed to deserialise axiom %s, details: %w", m.MemberID, err)
		}
		referencedByMember[m.MemberID] = refs
		ownerByMember[m.MemberID] = m.ReferencedComponentID
		for _, ref := range refs {
			allReferenced[ref] = struct{}{}
		}
	}
	missing, err := s.findMissingOrInactive(ctx, crit, allReferenced)
	if err != nil {
		return err
	}

	stillBroken := map[string][]string{}
	ownerIDs := map[string]struct{}{}
	for memberID, refs := range referencedByMember {
		for _, ref := range refs {
			if _, bad := missing[ref]; bad {
				stillBroken[memberID] = append(stillBroken[memberID], ref)
				ownerIDs[ownerByMember[memberID]] = struct{}{}
			}
		}
	}
	if len(stillBroken) == 0 {
		return nil
	}
	minis, err := s.descriptions.FindConceptMinis(ctx, b, setToSlice(ownerIDs))
	if err != nil {
		return err
	}
	for memberID, badRefs := range stillBroken {
		mini := minis[ownerByMember[memberID]]
		if mini == nil {
			mini = domain.NewConceptMini(ownerByMember[memberID])
		}
		for _, ref := range badRefs {
			mini.AddMissingOrInactiveConcept(ref)
		}
		remaining.addAxiomIssue(memberID, mini)
	}
	return nil
}
