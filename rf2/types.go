// Package rf2 imports RF2 release files: the tab separated concept,
// description, relationship, identifier and reference set member files of a
// terminology release. Imports run as commits on a branch, with DELTA,
// SNAPSHOT and FULL flavours.
package rf2

import (
	"io"
	"sync"
	"time"

	termcore "github.com/clinterm/termcore"
)

// ImportType is the release file flavour being imported.
type ImportType int

const (
	// Delta files carry only the rows changed since the previous release.
	Delta ImportType = iota
	// Snapshot files carry the current state of every component.
	Snapshot
	// Full files carry every state of every component ever released.
	Full
)

func (t ImportType) String() string {
	switch t {
	case Delta:
		return "DELTA"
	case Snapshot:
		return "SNAPSHOT"
	case Full:
		return "FULL"
	}
	return "UNKNOWN"
}

// ParseImportType converts the wire name of an import type.
func ParseImportType(s string) (ImportType, error) {
	switch s {
	case "DELTA":
		return Delta, nil
	case "SNAPSHOT":
		return Snapshot, nil
	case "FULL":
		return Full, nil
	}
	return 0, termcore.Errorf(termcore.Validation, "unknown import type '%s'", s)
}

// ImportStatus is the lifecycle state of an import job.
type ImportStatus int

const (
	Waiting ImportStatus = iota
	Running
	Completed
	Failed
)

func (s ImportStatus) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// PatchAllReleaseVersion makes a patch import overwrite components regardless
// of any newer release already present.
const PatchAllReleaseVersion = -1

// ImportConfig describes one import.
type ImportConfig struct {
	Type       ImportType
	BranchPath string
	// ModuleIDs restricts the import to the given modules when set.
	ModuleIDs []string
	// PatchReleaseVersion re-imports one already-released version (YYYYMMDD,
	// DELTA only), or everything when set to PatchAllReleaseVersion.
	PatchReleaseVersion *int
	// CreateCodeSystemVersion records a code system version for the most
	// recent effective time once the import succeeds.
	CreateCodeSystemVersion bool
	// InternalRelease marks created versions as not for distribution.
	InternalRelease bool
	// ClearEffectiveTimes imports every row as unversioned authoring content.
	ClearEffectiveTimes bool
}

// ImportJob tracks one import through its lifecycle.
type ImportJob struct {
	ID      string
	Config  ImportConfig
	Created time.Time

	mu     sync.Mutex
	status ImportStatus
}

func (j *ImportJob) Status() ImportStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *ImportJob) setStatus(s ImportStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

// NamedReader is one release file with its name, for logging.
type NamedReader struct {
	Name   string
	Reader io.Reader
}

// ReleaseFiles groups the files of one release package by content type.
// Archive unpacking and filename convention detection happen upstream.
type ReleaseFiles struct {
	ConceptFiles              []NamedReader
	DescriptionFiles          []NamedReader
	RelationshipFiles         []NamedReader
	ConcreteRelationshipFiles []NamedReader
	IdentifierFiles           []NamedReader
	RefsetFiles               []NamedReader
}

// StatedRelationshipsToSkip lists relationship IDs dropped during import.
// These International Edition stated relationships clash with the axioms that
// replaced them. Tunable for editions carrying their own known-bad rows.
var StatedRelationshipsToSkip = map[string]struct{}{
	"3187444026": {},
	"3192499027": {},
	"3574321020": {},
}
