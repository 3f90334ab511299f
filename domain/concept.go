package domain

import "github.com/clinterm/termcore/docstore"

// Concept is a code in the terminology.
type Concept struct {
	Component
	ConceptID          string `json:"conceptId"`
	DefinitionStatusID string `json:"definitionStatusId,omitempty"`
}

func (c *Concept) DocID() string { return c.ConceptID }

func (c *Concept) IDFieldName() string { return FieldConceptID }

func (c *Concept) Field(name string) (any, bool) {
	switch name {
	case FieldConceptID:
		return c.ConceptID, true
	case FieldDefinitionStatusID:
		return c.DefinitionStatusID, true
	}
	return c.commonField(name)
}

func (c *Concept) CloneDocument() docstore.Document {
	d := *c
	d.Component = c.Component.cloneEnvelope()
	return &d
}

func (c *Concept) releaseHashFields() []string {
	return []string{c.DefinitionStatusID}
}
