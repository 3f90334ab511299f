package vc

// Branch metadata keys used by the core. Metadata is saved to the store rather
// than just existing within the Commit object because imports span multiple
// commits when importing a FULL type or creating a code system version.
const (
	InternalMetadataKey    = "internal"
	AuthorFlagsMetadataKey = "authorFlags"

	ImportTypeKey                 = "importType"
	ImportingCodeSystemVersionKey = "importingCodeSystemVersion"
	IntegrityIssueKey             = "integrityIssue"
	BatchChangeKey                = "batch-change"
	DefaultModuleIDKey            = "defaultModuleId"
)

// Metadata is the branch metadata mapping. Top level values are either plain
// strings or string sub-maps such as "internal" and "authorFlags".
type Metadata map[string]any

func NewMetadata() Metadata {
	return Metadata{}
}

// MapOrCreate returns the sub-map stored under key, creating it when absent.
// The returned map is live; mutations are visible through the Metadata.
func (m Metadata) MapOrCreate(key string) map[string]string {
	if v, ok := m[key].(map[string]string); ok {
		return v
	}
	v := map[string]string{}
	m[key] = v
	return v
}

// GetString returns the plain string stored under key, or "".
func (m Metadata) GetString(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func (m Metadata) ContainsKey(key string) bool {
	_, ok := m[key]
	return ok
}

// Normalize converts sub-maps decoded from JSON back into string maps, so
// MapOrCreate finds them after a store round-trip.
func (m Metadata) Normalize() {
	for k, v := range m {
		raw, ok := v.(map[string]any)
		if !ok {
			continue
		}
		sub := make(map[string]string, len(raw))
		for sk, sv := range raw {
			if s, ok := sv.(string); ok {
				sub[sk] = s
			}
		}
		m[k] = sub
	}
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	c := make(Metadata, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]string); ok {
			subCopy := make(map[string]string, len(sub))
			for sk, sv := range sub {
				subCopy[sk] = sv
			}
			c[k] = subCopy
			continue
		}
		c[k] = v
	}
	return c
}
