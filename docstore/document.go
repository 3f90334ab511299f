// Package docstore defines the indexed document store the terminology
// services read and write through. Rows are versioned per branch by the vc
// substrate; queries combine branch criteria with bool/term/range clauses and
// results stream through cursors.
package docstore

// RowMeta carries the version-control bookkeeping of a stored row. Start and
// End are commit timepoints; End of zero means the row is current on its path.
type RowMeta struct {
	InternalID string `json:"internalId,omitempty"`
	Path       string `json:"path,omitempty"`
	Start      int64  `json:"start,omitempty"`
	End        int64  `json:"end,omitempty"`
}

// Document is a storable, queryable component document.
type Document interface {
	// DocID identifies the component across row versions.
	DocID() string
	// Field returns the named indexed field value. The second return is
	// false when the field is absent or has no value on this document.
	Field(name string) (any, bool)
	// Meta exposes the row bookkeeping. Stores populate it on save.
	Meta() *RowMeta
	// CloneDocument returns a deep copy. Stores clone on save so callers can
	// keep mutating their instance.
	CloneDocument() Document
}

// AdditionalFieldsHolder is implemented by documents carrying a named extra
// field map, e.g. reference set members. It allows in-place field rewrites
// that do not create a new row version.
type AdditionalFieldsHolder interface {
	AdditionalField(name string) string
	SetAdditionalField(name, value string)
}

// EnvelopeRewriter is implemented by documents whose release envelope can be
// rewritten in place together with their additional fields.
type EnvelopeRewriter interface {
	RewriteEnvelope(effectiveTime *int, moduleID string)
}
