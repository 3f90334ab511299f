package mrcm

import (
	"fmt"
	"sort"
	"strings"
)

// DomainTemplates are the generated templates of one domain.
type DomainTemplates struct {
	Precoordination  string
	Postcoordination string
}

// AttributeRuleUpdate is the generated state of one attribute range member.
type AttributeRuleUpdate struct {
	RangeConstraint string
	AttributeRule   string
}

// Generator derives the domain templates and attribute rules from the loaded
// concept model. Pluggable so editions can swap the template dialect.
type Generator interface {
	// GenerateDomainTemplates returns templates keyed by domain concept ID.
	GenerateDomainTemplates(m *MRCM, terms map[string]string, dataAttributes map[string]struct{}) map[string]DomainTemplates
	// GenerateAttributeRules returns updates keyed by range member ID.
	GenerateAttributeRules(m *MRCM, terms map[string]string) map[string]AttributeRuleUpdate
}

// NewGenerator returns the default template and rule generator.
func NewGenerator() Generator {
	return defaultGenerator{}
}

type defaultGenerator struct{}

func (g defaultGenerator) GenerateDomainTemplates(m *MRCM, terms map[string]string, dataAttributes map[string]struct{}) map[string]DomainTemplates {
	out := map[string]DomainTemplates{}
	for conceptID, d := range m.Domains {
		var grouped, ungrouped []string
		for _, ad := range m.AttributeDomains {
			if ad.DomainID != conceptID || ad.RuleStrengthID != MandatoryRuleStrength {
				continue
			}
			ranges := rangeConstraintsOf(m, ad.AttributeID)
			_, concrete := dataAttributes[ad.AttributeID]
			if ad.Grouped {
				grouped = append(grouped, fmt.Sprintf("[[%s]] %s = %s",
					ad.AttributeInGroupCardinality, labelled(ad.AttributeID, terms), valueSlot(ranges, concrete)))
			} else {
				ungrouped = append(ungrouped, fmt.Sprintf("[[%s]] %s = %s",
					ad.AttributeCardinality, labelled(ad.AttributeID, terms), valueSlot(ranges, concrete)))
			}
		}
		var parts []string
		parts = append(parts, ungrouped...)
		if len(grouped) > 0 {
			parts = append(parts, "{ "+strings.Join(grouped, ", ")+" }")
		}
		body := strings.Join(parts, ", ")

		templates := DomainTemplates{}
		if d.ProximalPrimitiveConstraint != "" {
			templates.Precoordination = fmt.Sprintf("[[+id(%s)]]: %s", d.ProximalPrimitiveConstraint, body)
		}
		if d.DomainConstraint != "" {
			templates.Postcoordination = fmt.Sprintf("[[+scg(%s)]]: %s", d.DomainConstraint, body)
		}
		out[conceptID] = templates
	}
	return out
}

func (g defaultGenerator) GenerateAttributeRules(m *MRCM, terms map[string]string) map[string]AttributeRuleUpdate {
	out := map[string]AttributeRuleUpdate{}
	for _, ar := range m.AttributeRanges {
		if ar.RuleStrengthID != MandatoryRuleStrength {
			continue
		}
		var domainConstraints []string
		var cardinality string
		for _, ad := range m.AttributeDomains {
			if ad.AttributeID != ar.AttributeID || ad.RuleStrengthID != MandatoryRuleStrength {
				continue
			}
			d := m.Domains[ad.DomainID]
			if d == nil || d.DomainConstraint == "" {
				continue
			}
			domainConstraints = append(domainConstraints, d.DomainConstraint)
			if cardinality == "" {
				cardinality = ad.AttributeCardinality
			}
		}
		if len(domainConstraints) == 0 {
			continue
		}
		sort.Strings(domainConstraints)
		rangeConstraint := ar.RangeConstraint
		update := AttributeRuleUpdate{RangeConstraint: rangeConstraint}
		update.AttributeRule = fmt.Sprintf("(%s): [%s] %s = (%s)",
			strings.Join(domainConstraints, " OR "), cardinality, labelled(ar.AttributeID, terms), rangeConstraint)
		out[ar.Member.MemberID] = update
	}
	return out
}

func rangeConstraintsOf(m *MRCM, attributeID string) []string {
	var out []string
	for _, ar := range m.AttributeRanges {
		if ar.AttributeID == attributeID && ar.RuleStrengthID == MandatoryRuleStrength && ar.RangeConstraint != "" {
			out = append(out, ar.RangeConstraint)
		}
	}
	sort.Strings(out)
	return out
}

func valueSlot(ranges []string, concrete bool) string {
	joined := strings.Join(ranges, " OR ")
	if concrete {
		return "[[+dec(" + joined + ")]]"
	}
	return "[[+id(" + joined + ")]]"
}

func labelled(conceptID string, terms map[string]string) string {
	if term := terms[conceptID]; term != "" {
		return conceptID + " |" + term + "|"
	}
	return conceptID
}
