package mrcm

import (
	"context"
	log "log/slog"

	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/ecl"
	"github.com/clinterm/termcore/vc"
)

var mrcmRefsets = []string{
	domain.RefsetMRCMDomain,
	domain.RefsetMRCMAttributeDomain,
	domain.RefsetMRCMAttributeRange,
}

type UpdateService struct {
	store        docstore.Store
	branches     vc.BranchService
	members      *content.MemberService
	descriptions *content.DescriptionService
	generator    Generator
}

func NewUpdateService(store docstore.Store, branches vc.BranchService, members *content.MemberService,
	descriptions *content.DescriptionService, generator Generator) *UpdateService {
	return &UpdateService{
		store:        store,
		branches:     branches,
		members:      members,
		descriptions: descriptions,
		generator:    generator,
	}
}

// PreCommitCompletion regenerates the concept model derivations when a
// content or rebase commit touched any MRCM reference set member. Commits of
// an in-flight code system import are skipped; the import regenerates once at
// the end instead of once per release commit.
func (s *UpdateService) PreCommitCompletion(ctx context.Context, c *vc.Commit) error {
	if c.Type() != vc.ContentCommit && c.Type() != vc.RebaseCommit {
		return nil
	}
	b := c.Branch()
	if b.IsImportingCodeSystemVersion() {
		log.Debug("code system import in flight, skipping mrcm update", "path", b.Path)
		return nil
	}
	touched, err := s.commitTouchesMRCM(ctx, c)
	if err != nil {
		return err
	}
	if !touched {
		return nil
	}
	log.Info("mrcm reference sets changed in commit, updating templates and rules", "path", b.Path, "timepoint", c.Timepoint())
	return s.performUpdate(ctx, b, c, vc.CriteriaIncludingOpenCommit(c))
}

func (s *UpdateService) commitTouchesMRCM(ctx context.Context, c *vc.Commit) (bool, error) {
	query := docstore.Query{
		Criteria: vc.CriteriaChangesWithinOpenCommitOnly(c),
		Query: docstore.Bool{
			Must: []docstore.Clause{docstore.Terms{Field: domain.FieldRefsetID, Values: mrcmRefsets}},
		},
		PageSize: 1,
	}
	cursor, err := s.store.SearchForStream(ctx, domain.TypeReferenceSetMember, query)
	if err != nil {
		return false, err
	}
	defer cursor.Close()
	_, ok, err := cursor.Next()
	return ok, err
}

// UpdateAllDomainTemplatesAndAttributeRules regenerates every domain template
// and attribute rule on the branch in a commit of its own, regardless of what
// changed. Used after upgrades and by operators repairing the model.
func (s *UpdateService) UpdateAllDomainTemplatesAndAttributeRules(ctx context.Context, path string) error {
	b, err := s.branches.FindLatest(ctx, path)
	if err != nil {
		return err
	}
	commit, err := s.branches.OpenCommit(ctx, path, vc.ContentCommit, "Updating all MRCM domain templates and attribute rules.")
	if err != nil {
		return err
	}
	defer commit.Close(ctx)
	if err := s.performUpdate(ctx, b, commit, vc.CriteriaIncludingOpenCommit(commit)); err != nil {
		return err
	}
	commit.MarkSuccessful()
	return commit.Close(ctx)
}

func (s *UpdateService) performUpdate(ctx context.Context, b *vc.Branch, c *vc.Commit, crit vc.Criteria) error {
	m, err := load(ctx, s.members, crit)
	if err != nil {
		return err
	}

	dataAttributeIDs, err := ecl.SelectConceptIDs(ctx, s.store, crit, true, "<< "+domain.ConceptModelDataAttribute+" |Concept model data attribute|")
	if err != nil {
		return err
	}
	dataAttributes := make(map[string]struct{}, len(dataAttributeIDs))
	for _, id := range dataAttributeIDs {
		dataAttributes[id] = struct{}{}
	}

	terms, err := s.conceptTerms(ctx, b, m)
	if err != nil {
		return err
	}

	templates := s.generator.GenerateDomainTemplates(m, terms, dataAttributes)
	ruleUpdates := s.generator.GenerateAttributeRules(m, terms)

	var edits []memberEdit
	for conceptID, d := range m.Domains {
		t := templates[conceptID]
		fields := map[string]string{}
		if t.Precoordination != d.TemplateForPrecoordination {
			fields[FieldDomainTemplateForPrecoordination] = t.Precoordination
		}
		if t.Postcoordination != d.TemplateForPostcoordination {
			fields[FieldDomainTemplateForPostcoordination] = t.Postcoordination
		}
		if len(fields) > 0 {
			edits = append(edits, memberEdit{member: d.Member, fields: fields})
		}
	}
	for _, ar := range m.AttributeRanges {
		update, ok := ruleUpdates[ar.Member.MemberID]
		if !ok {
			continue
		}
		fields := map[string]string{}
		if update.AttributeRule != ar.AttributeRule {
			fields[FieldAttributeRule] = update.AttributeRule
		}
		if update.RangeConstraint != ar.RangeConstraint {
			fields[FieldRangeConstraint] = update.RangeConstraint
		}
		if len(fields) > 0 {
			edits = append(edits, memberEdit{member: ar.Member, fields: fields})
		}
	}
	if len(edits) == 0 {
		return nil
	}
	return s.writeEdits(ctx, c, edits)
}

type memberEdit struct {
	member *domain.ReferenceSetMember
	fields map[string]string
}

// writeEdits applies the edits within the open commit. Every edited member
// gets the branch default module stamped on and its effective time re-derived
// against the last release, so a regenerated template clears the version
// stamp until the next release. Members whose current row was written by this
// very commit are rewritten in place, keeping one row per member per
// timepoint; everything else gets a new version.
func (s *UpdateService) writeEdits(ctx context.Context, c *vc.Commit, edits []memberEdit) error {
	defaultModuleID := ""
	if md := c.Branch().Metadata; md != nil {
		defaultModuleID = md.GetString(vc.DefaultModuleIDKey)
	}
	var rewrites []docstore.FieldRewrite
	var saves []*domain.ReferenceSetMember
	for _, e := range edits {
		for name, value := range e.fields {
			e.member.SetAdditionalField(name, value)
		}
		if defaultModuleID != "" {
			e.member.ModuleID = defaultModuleID
		}
		domain.UpdateEffectiveTime(e.member)

		meta := e.member.Meta()
		if meta.Path == c.Branch().Path && meta.Start == c.Timepoint() {
			rewrites = append(rewrites, docstore.FieldRewrite{
				InternalID: meta.InternalID,
				Fields:     e.fields,
				Envelope:   &docstore.EnvelopeRewrite{EffectiveTime: e.member.EffectiveTime, ModuleID: e.member.ModuleID},
			})
			continue
		}
		saves = append(saves, e.member)
	}
	if len(rewrites) > 0 {
		if err := s.store.RewriteAdditionalFields(ctx, domain.TypeReferenceSetMember, rewrites); err != nil {
			return err
		}
		if err := s.store.Refresh(ctx, domain.TypeReferenceSetMember); err != nil {
			return err
		}
	}
	if len(saves) > 0 {
		if err := s.members.SaveBatch(ctx, c, saves); err != nil {
			return err
		}
	}
	log.Info("mrcm update applied", "path", c.Branch().Path, "rewrites", len(rewrites), "newVersions", len(saves))
	return nil
}

// conceptTerms labels the model concepts: domain concepts carry their fully
// specified name, attributes their preferred term.
func (s *UpdateService) conceptTerms(ctx context.Context, b *vc.Branch, m *MRCM) (map[string]string, error) {
	domainIDs := map[string]struct{}{}
	for conceptID := range m.Domains {
		domainIDs[conceptID] = struct{}{}
	}
	idSet := map[string]struct{}{}
	for id := range domainIDs {
		idSet[id] = struct{}{}
	}
	for _, ad := range m.AttributeDomains {
		idSet[ad.AttributeID] = struct{}{}
	}
	for _, ar := range m.AttributeRanges {
		idSet[ar.AttributeID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	minis, err := s.descriptions.FindConceptMinis(ctx, b, ids)
	if err != nil {
		return nil, err
	}
	terms := make(map[string]string, len(minis))
	for id, mini := range minis {
		first, fallback := mini.PT, mini.FSN
		if _, isDomain := domainIDs[id]; isDomain {
			first, fallback = mini.FSN, mini.PT
		}
		if first != "" {
			terms[id] = first
		} else {
			terms[id] = fallback
		}
	}
	return terms, nil
}
