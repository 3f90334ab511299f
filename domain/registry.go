package domain

import "github.com/clinterm/termcore/docstore"

// NewDocument returns an empty document of the given type, for store backends
// unmarshalling persisted rows. The second return is false for unknown types.
func NewDocument(typeName string) (docstore.Document, bool) {
	switch typeName {
	case TypeConcept:
		return &Concept{}, true
	case TypeDescription:
		return &Description{}, true
	case TypeRelationship:
		return &Relationship{}, true
	case TypeIdentifier:
		return &Identifier{}, true
	case TypeReferenceSetMember:
		return &ReferenceSetMember{}, true
	case TypeQueryConcept:
		return &QueryConcept{}, true
	}
	return nil, false
}
