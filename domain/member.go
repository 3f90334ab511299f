package domain

import (
	"strings"

	"github.com/clinterm/termcore/docstore"
)

// ReferenceSetMember attaches a component to a reference set, with a variable
// set of additional fields whose names and order come from the reference set
// definition.
type ReferenceSetMember struct {
	Component
	MemberID              string `json:"memberId"`
	RefsetID              string `json:"refsetId"`
	ReferencedComponentID string `json:"referencedComponentId"`
	// AdditionalFieldNames preserves the release file column order.
	AdditionalFieldNames []string          `json:"additionalFieldNames,omitempty"`
	AdditionalFields     map[string]string `json:"additionalFields,omitempty"`
}

func (m *ReferenceSetMember) DocID() string { return m.MemberID }

func (m *ReferenceSetMember) IDFieldName() string { return FieldMemberID }

// AdditionalField returns the named additional field value, or "".
func (m *ReferenceSetMember) AdditionalField(name string) string {
	return m.AdditionalFields[name]
}

// SetAdditionalField sets an additional field, registering the name at the
// end of the column order when it is new.
func (m *ReferenceSetMember) SetAdditionalField(name, value string) {
	if m.AdditionalFields == nil {
		m.AdditionalFields = map[string]string{}
	}
	if _, ok := m.AdditionalFields[name]; !ok {
		m.AdditionalFieldNames = append(m.AdditionalFieldNames, name)
	}
	m.AdditionalFields[name] = value
}

// OwlExpression returns the OWL expression of an axiom member, or "".
func (m *ReferenceSetMember) OwlExpression() string {
	return m.AdditionalFields[OwlExpressionField]
}

func (m *ReferenceSetMember) Field(name string) (any, bool) {
	switch name {
	case FieldMemberID:
		return m.MemberID, true
	case FieldRefsetID:
		return m.RefsetID, true
	case FieldReferencedComponentID:
		return m.ReferencedComponentID, true
	}
	if fieldName, ok := strings.CutPrefix(name, FieldAdditionalPrefix); ok {
		v, ok := m.AdditionalFields[fieldName]
		return v, ok
	}
	return m.commonField(name)
}

func (m *ReferenceSetMember) CloneDocument() docstore.Document {
	c := *m
	c.Component = m.Component.cloneEnvelope()
	c.AdditionalFieldNames = append([]string(nil), m.AdditionalFieldNames...)
	if m.AdditionalFields != nil {
		c.AdditionalFields = make(map[string]string, len(m.AdditionalFields))
		for k, v := range m.AdditionalFields {
			c.AdditionalFields[k] = v
		}
	}
	return &c
}

func (m *ReferenceSetMember) releaseHashFields() []string {
	fields := []string{m.RefsetID, m.ReferencedComponentID}
	for _, name := range m.AdditionalFieldNames {
		fields = append(fields, m.AdditionalFields[name])
	}
	return fields
}
