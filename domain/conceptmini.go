package domain

import "sort"

// MissingOrInactiveConceptsKey is the extra field listing the concepts an
// axiom references which are missing or inactive.
const MissingOrInactiveConceptsKey = "missingOrInactiveConcepts"

// ConceptMini is a display summary of a concept, as embedded in reports.
type ConceptMini struct {
	ConceptID string `json:"conceptId"`
	FSN       string `json:"fsn,omitempty"`
	PT        string `json:"pt,omitempty"`
	// Extra carries report specific fields, e.g. missingOrInactiveConcepts.
	Extra map[string]any `json:"extra,omitempty"`
}

func NewConceptMini(conceptID string) *ConceptMini {
	return &ConceptMini{ConceptID: conceptID}
}

// AddMissingOrInactiveConcept records id in the missingOrInactiveConcepts
// extra field, kept sorted and without duplicates.
func (m *ConceptMini) AddMissingOrInactiveConcept(id string) {
	if m.Extra == nil {
		m.Extra = map[string]any{}
	}
	current, _ := m.Extra[MissingOrInactiveConceptsKey].([]string)
	for _, e := range current {
		if e == id {
			return
		}
	}
	current = append(current, id)
	sort.Strings(current)
	m.Extra[MissingOrInactiveConceptsKey] = current
}

// MissingOrInactiveConcepts returns the recorded concept IDs, sorted.
func (m *ConceptMini) MissingOrInactiveConcepts() []string {
	if m.Extra == nil {
		return nil
	}
	ids, _ := m.Extra[MissingOrInactiveConceptsKey].([]string)
	return ids
}
