package domain

// Well known concept identifiers.
const (
	// Characteristic types.
	StatedRelationship     = "900000000000010007"
	InferredRelationship   = "900000000000011006"
	AdditionalRelationship = "900000000000227009"

	// Description types.
	FSN     = "900000000000003001"
	Synonym = "900000000000013009"

	// Reference sets.
	OWLAxiomReferenceSet      = "733073007"
	RefsetMRCMDomain          = "723560006"
	RefsetMRCMAttributeDomain = "723561005"
	RefsetMRCMAttributeRange  = "723562003"

	// The root of the concrete-value attribute hierarchy in the concept model.
	ConceptModelDataAttribute = "762706009"

	CoreModule  = "900000000000207008"
	ModelModule = "900000000000012004"
)

// Document type names used to address the store.
const (
	TypeConcept            = "concept"
	TypeDescription        = "description"
	TypeRelationship       = "relationship"
	TypeIdentifier         = "identifier"
	TypeReferenceSetMember = "member"
	TypeQueryConcept       = "queryconcept"
)

// Indexed field names.
const (
	FieldActive        = "active"
	FieldEffectiveTime = "effectiveTime"
	FieldReleased      = "released"
	FieldModuleID      = "moduleId"

	FieldConceptID          = "conceptId"
	FieldDefinitionStatusID = "definitionStatusId"

	FieldDescriptionID = "descriptionId"
	FieldTypeID        = "typeId"
	FieldTerm          = "term"
	FieldLanguageCode  = "languageCode"

	FieldRelationshipID       = "relationshipId"
	FieldSourceID             = "sourceId"
	FieldDestinationID        = "destinationId"
	FieldCharacteristicTypeID = "characteristicTypeId"

	FieldAlternateIdentifier = "alternateIdentifier"
	FieldIdentifierSchemeID  = "identifierSchemeId"

	FieldMemberID              = "memberId"
	FieldRefsetID              = "refsetId"
	FieldReferencedComponentID = "referencedComponentId"

	FieldStated    = "stated"
	FieldAncestors = "ancestors"
	// FieldAttrAny matches any attribute type in the semantic index; use
	// FieldAttrPrefix + typeID for a specific attribute type.
	FieldAttrAny    = "attr.*"
	FieldAttrPrefix = "attr."

	// FieldAdditionalPrefix + name addresses a member's additional field.
	FieldAdditionalPrefix = "additionalFields."

	// Additional field carrying the OWL expression on axiom members.
	OwlExpressionField = "owlExpression"
)
