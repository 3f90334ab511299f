package docstore

import "github.com/clinterm/termcore/vc"

// LargePageSize is the scroll page size used for bulk scans.
const LargePageSize = 10000

// Clause is a filter over document field values.
type Clause interface {
	Match(d Document) bool
}

// Term matches documents whose field equals value. Multi-valued fields match
// when any element equals value.
type Term struct {
	Field string
	Value any
}

func (t Term) Match(d Document) bool {
	v, ok := d.Field(t.Field)
	if !ok {
		return false
	}
	return valueMatches(v, t.Value)
}

// Terms matches documents whose field equals any of the given values.
type Terms struct {
	Field  string
	Values []string
}

func (t Terms) Match(d Document) bool {
	v, ok := d.Field(t.Field)
	if !ok {
		return false
	}
	for _, want := range t.Values {
		if valueMatches(v, want) {
			return true
		}
	}
	return false
}

// Range matches documents whose integer field is above a bound. A nil bound is
// not applied; Gte is inclusive, Gt exclusive.
type Range struct {
	Field string
	Gte   *int
	Gt    *int
}

func (r Range) Match(d Document) bool {
	v, ok := d.Field(r.Field)
	if !ok {
		return false
	}
	n, ok := v.(int)
	if !ok {
		return false
	}
	if r.Gte != nil && n < *r.Gte {
		return false
	}
	if r.Gt != nil && n <= *r.Gt {
		return false
	}
	return true
}

// Bool combines clauses. Must clauses all have to match, MustNot clauses all
// have to miss, and at least one Should clause has to match when any are set.
type Bool struct {
	Must    []Clause
	MustNot []Clause
	Should  []Clause
}

func (b Bool) Match(d Document) bool {
	for _, c := range b.Must {
		if !c.Match(d) {
			return false
		}
	}
	for _, c := range b.MustNot {
		if c.Match(d) {
			return false
		}
	}
	if len(b.Should) > 0 {
		for _, c := range b.Should {
			if c.Match(d) {
				return true
			}
		}
		return false
	}
	return true
}

func valueMatches(fieldValue, want any) bool {
	switch fv := fieldValue.(type) {
	case []string:
		ws, ok := want.(string)
		if !ok {
			return false
		}
		for _, e := range fv {
			if e == ws {
				return true
			}
		}
		return false
	default:
		return fieldValue == want
	}
}

// Query is a read against one document type.
type Query struct {
	// Criteria resolves branch visibility before the clauses run.
	Criteria vc.Criteria
	// Query filters the visible documents.
	Query Bool
	// SourceFields hints which fields the caller will read. Backends may use
	// it to trim fetches; the in-memory store returns full documents.
	SourceFields []string
	// PageSize is the scroll page size. Zero means LargePageSize.
	PageSize int
}

// IntPtr is a convenience for Range bounds.
func IntPtr(v int) *int { return &v }
