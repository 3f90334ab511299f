package docstore

import (
	"sort"

	"github.com/clinterm/termcore/vc"
)

// BranchLookup resolves a branch path to its latest state.
type BranchLookup func(path string) (*vc.Branch, bool)

// TombstoneLookup reports the timepoint a component was deleted on a path.
type TombstoneLookup func(path, typeName, id string) (int64, bool)

// ReplacedLookup reports the timepoint at which a branch replaced an ancestor
// row, addressed by the row's internal ID.
type ReplacedLookup func(path, typeName, internalID string) (int64, bool)

// ResolveView applies branch criteria to a flat set of row versions and
// returns one visible document per component, ordered by DocID. Rows from the
// criteria path shadow ancestor rows, and within a path level the latest
// start wins.
func ResolveView(rows []Document, typeName string, crit vc.Criteria,
	branches BranchLookup, deleted TombstoneLookup, replaced ReplacedLookup) []Document {

	if crit.OpenCommitOnly {
		return sortByDocID(openCommitRows(rows, crit))
	}
	if crit.UnpromotedOnly {
		return sortByDocID(unpromotedRows(rows, typeName, crit, deleted))
	}

	chosen := map[string]Document{}
	path := crit.Path
	cap := crit.MaxStart
	timepoint := crit.Timepoint
	// Paths already walked; rows replaced or deleted by them are shadowed at
	// ancestor levels.
	var walked []string

	for path != "" {
		level := map[string]Document{}
		for _, r := range rows {
			m := r.Meta()
			if m.Path != path {
				continue
			}
			if _, done := chosen[r.DocID()]; done {
				// Resolved at a nearer level.
				continue
			}
			if !rowVisibleAt(m, cap, timepoint) {
				continue
			}
			if shadowed(m, r.DocID(), typeName, walked, deleted, replaced) {
				continue
			}
			if cur, ok := level[r.DocID()]; ok && cur.Meta().Start >= m.Start {
				continue
			}
			level[r.DocID()] = r
		}
		for id, d := range level {
			chosen[id] = d
		}
		// The open-commit timepoint only applies at the criteria path level.
		timepoint = 0
		walked = append(walked, path)
		b, ok := branches(path)
		if !ok {
			break
		}
		path = vc.ParentPath(path)
		cap = b.Base
	}

	out := make([]Document, 0, len(chosen))
	for _, d := range chosen {
		out = append(out, d)
	}
	return sortByDocID(out)
}

func rowVisibleAt(m *RowMeta, cap, timepoint int64) bool {
	if timepoint != 0 {
		if m.End == timepoint {
			// Replaced by the open commit itself.
			return false
		}
		if m.Start == timepoint {
			return m.End == 0
		}
	}
	if m.Start > cap {
		return false
	}
	return m.End == 0 || m.End > cap
}

func shadowed(m *RowMeta, docID, typeName string, walked []string,
	deleted TombstoneLookup, replaced ReplacedLookup) bool {
	for _, child := range walked {
		if deleted != nil {
			if _, ok := deleted(child, typeName, docID); ok {
				return true
			}
		}
		if replaced != nil {
			if _, ok := replaced(child, typeName, m.InternalID); ok {
				return true
			}
		}
	}
	return false
}

func openCommitRows(rows []Document, crit vc.Criteria) []Document {
	var out []Document
	for _, r := range rows {
		m := r.Meta()
		if m.Path != crit.Path {
			continue
		}
		if m.Start == crit.Timepoint || m.End == crit.Timepoint {
			out = append(out, r)
		}
	}
	return out
}

func unpromotedRows(rows []Document, typeName string, crit vc.Criteria, deleted TombstoneLookup) []Document {
	chosen := map[string]Document{}
	for _, r := range rows {
		m := r.Meta()
		if m.Path != crit.Path {
			continue
		}
		visible := m.End == 0 && (m.Start <= crit.MaxStart || (crit.Timepoint != 0 && m.Start == crit.Timepoint))
		if !visible && crit.IncludeDeletions && deleted != nil && m.End != 0 {
			// The final version of a deleted component ends at its tombstone.
			if tp, ok := deleted(crit.Path, typeName, r.DocID()); ok && tp == m.End {
				visible = true
			}
		}
		if !visible {
			continue
		}
		if cur, ok := chosen[r.DocID()]; ok && cur.Meta().Start >= m.Start {
			continue
		}
		chosen[r.DocID()] = r
	}
	out := make([]Document, 0, len(chosen))
	for _, d := range chosen {
		out = append(out, d)
	}
	return out
}

func sortByDocID(docs []Document) []Document {
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID() < docs[j].DocID() })
	return docs
}
