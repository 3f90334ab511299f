package mrcm

import (
	"context"
	"testing"

	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/memvc"
	"github.com/clinterm/termcore/redis"
	"github.com/clinterm/termcore/vc"
)

func description(id, conceptID, typeID, term string) *domain.Description {
	d := &domain.Description{
		DescriptionID: id,
		ConceptID:     conceptID,
		TypeID:        typeID,
		Term:          term,
		LanguageCode:  "en",
	}
	d.Active = true
	d.ModuleID = domain.CoreModule
	return d
}

func TestConceptTermsPrefersFSNForDomainsAndPTForAttributes(t *testing.T) {
	ctx := context.Background()
	store := memvc.NewStore()
	descriptions := content.NewDescriptionService(store, redis.NewMockClient())
	s := NewUpdateService(store, store, content.NewMemberService(store), descriptions, NewGenerator())

	commit, err := store.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "adding descriptions")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	err = descriptions.SaveBatch(ctx, commit, []*domain.Description{
		description("d-1", "105590001", domain.FSN, "Substance (substance)"),
		description("d-2", "105590001", domain.Synonym, "Substance"),
		description("d-3", "127489000", domain.FSN, "Has active ingredient (attribute)"),
		description("d-4", "127489000", domain.Synonym, "Has active ingredient"),
	})
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	commit.MarkSuccessful()
	if err := commit.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, err := store.FindLatest(ctx, vc.RootPath)
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	m := &MRCM{
		Domains:          map[string]*Domain{"105590001": {ConceptID: "105590001"}},
		AttributeDomains: []*AttributeDomain{{AttributeID: "127489000"}},
	}
	terms, err := s.conceptTerms(ctx, b, m)
	if err != nil {
		t.Fatalf("conceptTerms failed: %v", err)
	}
	if got := terms["105590001"]; got != "Substance (substance)" {
		t.Errorf("domain term = %q, want the fully specified name", got)
	}
	if got := terms["127489000"]; got != "Has active ingredient" {
		t.Errorf("attribute term = %q, want the preferred term", got)
	}
}
