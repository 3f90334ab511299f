package domain

import "github.com/clinterm/termcore/docstore"

// Identifier maps a component to an alternate identifier in another scheme.
type Identifier struct {
	Component
	AlternateIdentifier   string `json:"alternateIdentifier"`
	IdentifierSchemeID    string `json:"identifierSchemeId"`
	ReferencedComponentID string `json:"referencedComponentId"`
}

// DocID combines the alternate identifier and its scheme; an identifier value
// is only unique within a scheme.
func (i *Identifier) DocID() string { return i.AlternateIdentifier + "-" + i.IdentifierSchemeID }

func (i *Identifier) IDFieldName() string { return FieldAlternateIdentifier }

func (i *Identifier) Field(name string) (any, bool) {
	switch name {
	case FieldAlternateIdentifier:
		return i.AlternateIdentifier, true
	case FieldIdentifierSchemeID:
		return i.IdentifierSchemeID, true
	case FieldReferencedComponentID:
		return i.ReferencedComponentID, true
	}
	return i.commonField(name)
}

func (i *Identifier) CloneDocument() docstore.Document {
	c := *i
	c.Component = i.Component.cloneEnvelope()
	return &c
}

func (i *Identifier) releaseHashFields() []string {
	return []string{i.IdentifierSchemeID, i.ReferencedComponentID}
}
