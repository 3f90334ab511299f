package domain

// CodeSystem is an edition or extension rooted at a branch.
type CodeSystem struct {
	ShortName  string `json:"shortName"`
	BranchPath string `json:"branchPath"`
	// DefaultModuleID is the module new content on this code system defaults
	// to, e.g. for extensions.
	DefaultModuleID string `json:"defaultModuleId,omitempty"`
}

// CodeSystemVersion records a release of a code system.
type CodeSystemVersion struct {
	ShortName        string `json:"shortName"`
	ParentBranchPath string `json:"parentBranchPath"`
	// EffectiveDate is the YYYYMMDD release date.
	EffectiveDate int    `json:"effectiveDate"`
	Version       string `json:"version"`
	// InternalRelease marks versions not distributed outside the authoring
	// organisation.
	InternalRelease bool `json:"internalRelease,omitempty"`
	// ImportDate is the creation time in epoch milliseconds.
	ImportDate int64 `json:"importDate"`
}
