package mrcm

import (
	"testing"

	"github.com/clinterm/termcore/domain"
)

func testModel() *MRCM {
	domainMember := &domain.ReferenceSetMember{MemberID: "d-1", RefsetID: domain.RefsetMRCMDomain, ReferencedComponentID: "105590001"}
	rangeMember := &domain.ReferenceSetMember{MemberID: "r-1", RefsetID: domain.RefsetMRCMAttributeRange, ReferencedComponentID: "127489000"}
	return &MRCM{
		Domains: map[string]*Domain{
			"105590001": {
				Member:                      domainMember,
				ConceptID:                   "105590001",
				DomainConstraint:            "<< 105590001",
				ProximalPrimitiveConstraint: "<< 105590001 |Substance|",
			},
		},
		AttributeDomains: []*AttributeDomain{
			{
				AttributeID:                 "127489000",
				DomainID:                    "105590001",
				Grouped:                     true,
				AttributeCardinality:        "0..*",
				AttributeInGroupCardinality: "0..1",
				RuleStrengthID:              MandatoryRuleStrength,
			},
			{
				AttributeID:          "738774007",
				DomainID:             "105590001",
				AttributeCardinality: "0..1",
				RuleStrengthID:       MandatoryRuleStrength,
			},
		},
		AttributeRanges: []*AttributeRange{
			{
				Member:          rangeMember,
				AttributeID:     "127489000",
				RangeConstraint: "<< 105590001",
				RuleStrengthID:  MandatoryRuleStrength,
			},
			{
				Member:          &domain.ReferenceSetMember{MemberID: "r-2"},
				AttributeID:     "738774007",
				RangeConstraint: "dec(>#0..)",
				RuleStrengthID:  MandatoryRuleStrength,
			},
		},
	}
}

func TestGenerateDomainTemplates(t *testing.T) {
	terms := map[string]string{"127489000": "Has active ingredient"}
	dataAttributes := map[string]struct{}{"738774007": {}}

	templates := NewGenerator().GenerateDomainTemplates(testModel(), terms, dataAttributes)
	got, ok := templates["105590001"]
	if !ok {
		t.Fatal("expected templates for domain 105590001")
	}
	wantPre := "[[+id(<< 105590001 |Substance|)]]: [[0..1]] 738774007 = [[+dec(dec(>#0..))]], { [[0..1]] 127489000 |Has active ingredient| = [[+id(<< 105590001)]] }"
	if got.Precoordination != wantPre {
		t.Errorf("precoordination template\n got %q\nwant %q", got.Precoordination, wantPre)
	}
	wantPost := "[[+scg(<< 105590001)]]: [[0..1]] 738774007 = [[+dec(dec(>#0..))]], { [[0..1]] 127489000 |Has active ingredient| = [[+id(<< 105590001)]] }"
	if got.Postcoordination != wantPost {
		t.Errorf("postcoordination template\n got %q\nwant %q", got.Postcoordination, wantPost)
	}
}

func TestGenerateAttributeRules(t *testing.T) {
	rules := NewGenerator().GenerateAttributeRules(testModel(), nil)
	got, ok := rules["r-1"]
	if !ok {
		t.Fatal("expected a rule for range member r-1")
	}
	want := "(<< 105590001): [0..*] 127489000 = (<< 105590001)"
	if got.AttributeRule != want {
		t.Errorf("attribute rule\n got %q\nwant %q", got.AttributeRule, want)
	}
}

func TestOptionalRowsAreDocumentationOnly(t *testing.T) {
	m := testModel()
	for _, ad := range m.AttributeDomains {
		ad.RuleStrengthID = "723598006"
	}
	templates := NewGenerator().GenerateDomainTemplates(m, nil, nil)
	got := templates["105590001"]
	if got.Precoordination != "[[+id(<< 105590001 |Substance|)]]: " {
		t.Errorf("optional rows must not contribute attributes, got %q", got.Precoordination)
	}
	rules := NewGenerator().GenerateAttributeRules(m, nil)
	if len(rules) != 0 {
		t.Errorf("rules need a mandatory attribute domain, got %v", rules)
	}
}
