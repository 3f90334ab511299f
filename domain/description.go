package domain

import "github.com/clinterm/termcore/docstore"

// Description is a human readable term attached to a concept.
type Description struct {
	Component
	DescriptionID      string `json:"descriptionId"`
	ConceptID          string `json:"conceptId"`
	LanguageCode       string `json:"languageCode,omitempty"`
	TypeID             string `json:"typeId"`
	Term               string `json:"term"`
	CaseSignificanceID string `json:"caseSignificanceId,omitempty"`
}

func (d *Description) DocID() string { return d.DescriptionID }

func (d *Description) IDFieldName() string { return FieldDescriptionID }

func (d *Description) Field(name string) (any, bool) {
	switch name {
	case FieldDescriptionID:
		return d.DescriptionID, true
	case FieldConceptID:
		return d.ConceptID, true
	case FieldTypeID:
		return d.TypeID, true
	case FieldTerm:
		return d.Term, true
	case FieldLanguageCode:
		return d.LanguageCode, true
	}
	return d.commonField(name)
}

func (d *Description) CloneDocument() docstore.Document {
	c := *d
	c.Component = d.Component.cloneEnvelope()
	return &c
}

func (d *Description) releaseHashFields() []string {
	return []string{d.ConceptID, d.LanguageCode, d.TypeID, d.Term, d.CaseSignificanceID}
}
