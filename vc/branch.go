package vc

// Branch is a node in the branch tree. Base is the point in time of the parent
// branch this branch last rebased onto; Head is the time of the last
// successful commit on the branch itself.
type Branch struct {
	Path     string
	Base     int64
	Head     int64
	Metadata Metadata
}

// InternalFlag returns the value stored under the "internal" metadata sub-map.
func (b *Branch) InternalFlag(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata.MapOrCreate(InternalMetadataKey)[key]
}

// IsImportingCodeSystemVersion reports whether an import that spans multiple
// commits (FULL, or one creating a code system version) is in flight on b.
func (b *Branch) IsImportingCodeSystemVersion() bool {
	return b.InternalFlag(ImportingCodeSystemVersionKey) == "true"
}
