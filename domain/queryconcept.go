package domain

import (
	"strings"

	"github.com/clinterm/termcore/docstore"
)

// QueryConcept is a semantic index entry: the transitive closure and grouped
// attribute values of one concept in either the stated or the inferred form.
type QueryConcept struct {
	Row docstore.RowMeta `json:"-"`

	ConceptID string   `json:"conceptId"`
	Stated    bool     `json:"stated"`
	Ancestors []string `json:"ancestors,omitempty"`
	// Attr maps attribute type ID to destination concept IDs or concrete
	// values.
	Attr map[string][]string `json:"attr,omitempty"`
}

// DocID combines the concept ID with the form, matching the one entry per
// form the index keeps.
func (q *QueryConcept) DocID() string {
	return q.ConceptID + "_" + q.form()
}

func (q *QueryConcept) form() string {
	if q.Stated {
		return "stated"
	}
	return "inferred"
}

func (q *QueryConcept) Meta() *docstore.RowMeta { return &q.Row }

func (q *QueryConcept) Field(name string) (any, bool) {
	switch name {
	case FieldConceptID:
		return q.ConceptID, true
	case FieldStated:
		return q.Stated, true
	case FieldAncestors:
		return q.Ancestors, true
	case FieldAttrAny:
		var all []string
		for _, values := range q.Attr {
			all = append(all, values...)
		}
		return all, len(all) > 0
	}
	if typeID, ok := strings.CutPrefix(name, FieldAttrPrefix); ok {
		values, ok := q.Attr[typeID]
		return values, ok
	}
	return nil, false
}

func (q *QueryConcept) CloneDocument() docstore.Document {
	c := *q
	c.Ancestors = append([]string(nil), q.Ancestors...)
	if q.Attr != nil {
		c.Attr = make(map[string][]string, len(q.Attr))
		for k, v := range q.Attr {
			c.Attr[k] = append([]string(nil), v...)
		}
	}
	return &c
}
