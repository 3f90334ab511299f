package domain

import (
	"strconv"

	"github.com/clinterm/termcore/docstore"
)

// Relationship links a source concept to either a destination concept or a
// concrete value, qualified by a type and a characteristic type.
type Relationship struct {
	Component
	RelationshipID string `json:"relationshipId"`
	SourceID       string `json:"sourceId"`
	// DestinationID is empty on concrete relationships; Value is set instead.
	DestinationID        string `json:"destinationId,omitempty"`
	Value                string `json:"value,omitempty"`
	RelationshipGroup    int    `json:"relationshipGroup"`
	TypeID               string `json:"typeId"`
	CharacteristicTypeID string `json:"characteristicTypeId"`
	ModifierID           string `json:"modifierId,omitempty"`
}

// Concrete reports whether the relationship carries a concrete value rather
// than a destination concept.
func (r *Relationship) Concrete() bool { return r.Value != "" }

func (r *Relationship) DocID() string { return r.RelationshipID }

func (r *Relationship) IDFieldName() string { return FieldRelationshipID }

func (r *Relationship) Field(name string) (any, bool) {
	switch name {
	case FieldRelationshipID:
		return r.RelationshipID, true
	case FieldSourceID:
		return r.SourceID, true
	case FieldDestinationID:
		if r.DestinationID == "" {
			return nil, false
		}
		return r.DestinationID, true
	case FieldTypeID:
		return r.TypeID, true
	case FieldCharacteristicTypeID:
		return r.CharacteristicTypeID, true
	}
	return r.commonField(name)
}

func (r *Relationship) CloneDocument() docstore.Document {
	c := *r
	c.Component = r.Component.cloneEnvelope()
	return &c
}

func (r *Relationship) releaseHashFields() []string {
	return []string{
		r.SourceID, r.DestinationID, r.Value, strconv.Itoa(r.RelationshipGroup),
		r.TypeID, r.CharacteristicTypeID, r.ModifierID,
	}
}
