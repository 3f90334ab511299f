// Package mrcm maintains the machine readable concept model reference sets:
// whenever domain, attribute-domain or attribute-range members change, the
// derived domain templates and attribute rules are regenerated and written
// back onto the members before the commit completes.
package mrcm

import (
	"context"
	"sort"

	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// Additional field names of the MRCM reference sets.
const (
	FieldDomainConstraint                  = "domainConstraint"
	FieldParentDomain                      = "parentDomain"
	FieldProximalPrimitiveConstraint       = "proximalPrimitiveConstraint"
	FieldProximalPrimitiveRefinement       = "proximalPrimitiveRefinement"
	FieldDomainTemplateForPrecoordination  = "domainTemplateForPrecoordination"
	FieldDomainTemplateForPostcoordination = "domainTemplateForPostcoordination"
	FieldGuideURL                          = "guideURL"

	FieldDomainID                    = "domainId"
	FieldGrouped                     = "grouped"
	FieldAttributeCardinality        = "attributeCardinality"
	FieldAttributeInGroupCardinality = "attributeInGroupCardinality"
	FieldRuleStrengthID              = "ruleStrengthId"
	FieldContentTypeID               = "contentTypeId"

	FieldRangeConstraint = "rangeConstraint"
	FieldAttributeRule   = "attributeRule"
)

// MandatoryRuleStrength is the rule strength of MRCM rows that take part in
// template and rule generation; optional rows are documentation only.
const MandatoryRuleStrength = "723597001"

// Domain is one row of the MRCM domain reference set.
type Domain struct {
	Member                      *domain.ReferenceSetMember
	ConceptID                   string
	DomainConstraint            string
	ParentDomain                string
	ProximalPrimitiveConstraint string
	ProximalPrimitiveRefinement string
	TemplateForPrecoordination  string
	TemplateForPostcoordination string
}

// AttributeDomain is one row of the MRCM attribute domain reference set,
// binding an attribute to a domain with cardinalities.
type AttributeDomain struct {
	Member                      *domain.ReferenceSetMember
	AttributeID                 string
	DomainID                    string
	Grouped                     bool
	AttributeCardinality        string
	AttributeInGroupCardinality string
	RuleStrengthID              string
	ContentTypeID               string
}

// AttributeRange is one row of the MRCM attribute range reference set,
// carrying the value constraint and the generated attribute rule.
type AttributeRange struct {
	Member          *domain.ReferenceSetMember
	AttributeID     string
	RangeConstraint string
	AttributeRule   string
	RuleStrengthID  string
	ContentTypeID   string
}

// MRCM is the loaded concept model of one branch view.
type MRCM struct {
	// Domains keyed by domain concept ID.
	Domains          map[string]*Domain
	AttributeDomains []*AttributeDomain
	AttributeRanges  []*AttributeRange
}

// load reads the three MRCM reference sets visible under crit.
func load(ctx context.Context, members *content.MemberService, crit vc.Criteria) (*MRCM, error) {
	m := &MRCM{Domains: map[string]*Domain{}}

	domainMembers, err := members.FindMembersByRefset(ctx, crit, domain.RefsetMRCMDomain, true)
	if err != nil {
		return nil, err
	}
	for _, member := range domainMembers {
		m.Domains[member.ReferencedComponentID] = &Domain{
			Member:                      member,
			ConceptID:                   member.ReferencedComponentID,
			DomainConstraint:            member.AdditionalField(FieldDomainConstraint),
			ParentDomain:                member.AdditionalField(FieldParentDomain),
			ProximalPrimitiveConstraint: member.AdditionalField(FieldProximalPrimitiveConstraint),
			ProximalPrimitiveRefinement: member.AdditionalField(FieldProximalPrimitiveRefinement),
			TemplateForPrecoordination:  member.AdditionalField(FieldDomainTemplateForPrecoordination),
			TemplateForPostcoordination: member.AdditionalField(FieldDomainTemplateForPostcoordination),
		}
	}

	attributeDomainMembers, err := members.FindMembersByRefset(ctx, crit, domain.RefsetMRCMAttributeDomain, true)
	if err != nil {
		return nil, err
	}
	for _, member := range attributeDomainMembers {
		m.AttributeDomains = append(m.AttributeDomains, &AttributeDomain{
			Member:                      member,
			AttributeID:                 member.ReferencedComponentID,
			DomainID:                    member.AdditionalField(FieldDomainID),
			Grouped:                     member.AdditionalField(FieldGrouped) == "1",
			AttributeCardinality:        member.AdditionalField(FieldAttributeCardinality),
			AttributeInGroupCardinality: member.AdditionalField(FieldAttributeInGroupCardinality),
			RuleStrengthID:              member.AdditionalField(FieldRuleStrengthID),
			ContentTypeID:               member.AdditionalField(FieldContentTypeID),
		})
	}
	sort.Slice(m.AttributeDomains, func(i, j int) bool {
		a, b := m.AttributeDomains[i], m.AttributeDomains[j]
		if a.DomainID != b.DomainID {
			return a.DomainID < b.DomainID
		}
		return a.AttributeID < b.AttributeID
	})

	rangeMembers, err := members.FindMembersByRefset(ctx, crit, domain.RefsetMRCMAttributeRange, true)
	if err != nil {
		return nil, err
	}
	for _, member := range rangeMembers {
		m.AttributeRanges = append(m.AttributeRanges, &AttributeRange{
			Member:          member,
			AttributeID:     member.ReferencedComponentID,
			RangeConstraint: member.AdditionalField(FieldRangeConstraint),
			AttributeRule:   member.AdditionalField(FieldAttributeRule),
			RuleStrengthID:  member.AdditionalField(FieldRuleStrengthID),
			ContentTypeID:   member.AdditionalField(FieldContentTypeID),
		})
	}
	sort.Slice(m.AttributeRanges, func(i, j int) bool {
		a, b := m.AttributeRanges[i], m.AttributeRanges[j]
		if a.AttributeID != b.AttributeID {
			return a.AttributeID < b.AttributeID
		}
		return a.Member.MemberID < b.Member.MemberID
	})
	return m, nil
}
