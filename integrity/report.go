// Package integrity finds components whose references point at missing or
// inactive concepts: relationships by source, type and destination, and OWL
// axioms by every concept their expression mentions. Checks run incrementally
// against branch changes, as a fix verification after a rebase, or as a full
// content sweep.
package integrity

import "github.com/clinterm/termcore/domain"

// Report lists the components with bad integrity. Relationship maps go from
// relationship ID to the missing or inactive concept referenced in that role.
// The axiom map goes from member ID to a summary of the concept holding the
// axiom, with the missing or inactive references in the extra field.
type Report struct {
	RelationshipsWithMissingOrInactiveSource      map[string]string              `json:"relationshipsWithMissingOrInactiveSource,omitempty"`
	RelationshipsWithMissingOrInactiveType        map[string]string              `json:"relationshipsWithMissingOrInactiveType,omitempty"`
	RelationshipsWithMissingOrInactiveDestination map[string]string              `json:"relationshipsWithMissingOrInactiveDestination,omitempty"`
	AxiomsWithMissingOrInactiveReferencedConcept  map[string]*domain.ConceptMini `json:"axiomsWithMissingOrInactiveReferencedConcept,omitempty"`
}

func NewReport() *Report {
	return &Report{}
}

func (r *Report) IsEmpty() bool {
	return len(r.RelationshipsWithMissingOrInactiveSource) == 0 &&
		len(r.RelationshipsWithMissingOrInactiveType) == 0 &&
		len(r.RelationshipsWithMissingOrInactiveDestination) == 0 &&
		len(r.AxiomsWithMissingOrInactiveReferencedConcept) == 0
}

func (r *Report) addSourceIssue(relationshipID, conceptID string) {
	if r.RelationshipsWithMissingOrInactiveSource == nil {
		r.RelationshipsWithMissingOrInactiveSource = map[string]string{}
	}
	r.RelationshipsWithMissingOrInactiveSource[relationshipID] = conceptID
}

func (r *Report) addTypeIssue(relationshipID, conceptID string) {
	if r.RelationshipsWithMissingOrInactiveType == nil {
		r.RelationshipsWithMissingOrInactiveType = map[string]string{}
	}
	r.RelationshipsWithMissingOrInactiveType[relationshipID] = conceptID
}

func (r *Report) addDestinationIssue(relationshipID, conceptID string) {
	if r.RelationshipsWithMissingOrInactiveDestination == nil {
		r.RelationshipsWithMissingOrInactiveDestination = map[string]string{}
	}
	r.RelationshipsWithMissingOrInactiveDestination[relationshipID] = conceptID
}

func (r *Report) addAxiomIssue(memberID string, mini *domain.ConceptMini) {
	if r.AxiomsWithMissingOrInactiveReferencedConcept == nil {
		r.AxiomsWithMissingOrInactiveReferencedConcept = map[string]*domain.ConceptMini{}
	}
	r.AxiomsWithMissingOrInactiveReferencedConcept[memberID] = mini
}
