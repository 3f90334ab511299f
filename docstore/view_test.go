package docstore

import (
	"testing"

	"github.com/clinterm/termcore/vc"
)

type testDoc struct {
	Row RowMeta
	ID  string
	// Value distinguishes row versions in assertions.
	Value string
}

func (d *testDoc) DocID() string { return d.ID }

func (d *testDoc) Field(name string) (any, bool) {
	if name == "value" {
		return d.Value, true
	}
	return nil, false
}

func (d *testDoc) Meta() *RowMeta { return &d.Row }

func (d *testDoc) CloneDocument() Document {
	c := *d
	return &c
}

func row(path string, start, end int64, id, value string) *testDoc {
	return &testDoc{Row: RowMeta{InternalID: id + "-" + value, Path: path, Start: start, End: end}, ID: id, Value: value}
}

func branchLookup(branches map[string]*vc.Branch) BranchLookup {
	return func(path string) (*vc.Branch, bool) {
		b, ok := branches[path]
		return b, ok
	}
}

func valuesByID(docs []Document) map[string]string {
	out := map[string]string{}
	for _, d := range docs {
		out[d.DocID()] = d.(*testDoc).Value
	}
	return out
}

func TestResolveViewLatestStartWinsPerLevel(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN": {Path: "MAIN", Base: 1, Head: 30},
	}
	rows := []Document{
		row("MAIN", 10, 20, "A", "v1"),
		row("MAIN", 20, 0, "A", "v2"),
	}
	got := ResolveView(rows, "concept", vc.Criteria{Path: "MAIN", MaxStart: 30}, branchLookup(branches), nil, nil)
	if len(got) != 1 || got[0].(*testDoc).Value != "v2" {
		t.Fatalf("expected single latest row v2, got %v", valuesByID(got))
	}
}

func TestResolveViewAncestorCappedAtBase(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN":         {Path: "MAIN", Base: 1, Head: 40},
		"MAIN/project": {Path: "MAIN/project", Base: 20, Head: 25},
	}
	rows := []Document{
		// Visible to the child: written before its base.
		row("MAIN", 10, 0, "A", "old"),
		// Not visible to the child: written on MAIN after the child's base.
		row("MAIN", 30, 0, "B", "newer"),
	}
	got := ResolveView(rows, "concept", vc.Criteria{Path: "MAIN/project", MaxStart: 25}, branchLookup(branches), nil, nil)
	values := valuesByID(got)
	if values["A"] != "old" {
		t.Errorf("expected ancestor row A visible, got %v", values)
	}
	if _, ok := values["B"]; ok {
		t.Errorf("row B written after the branch base must not be visible, got %v", values)
	}
}

func TestResolveViewChildShadowsAncestor(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN":         {Path: "MAIN", Base: 1, Head: 40},
		"MAIN/project": {Path: "MAIN/project", Base: 20, Head: 35},
	}
	rows := []Document{
		row("MAIN", 10, 0, "A", "parent"),
		row("MAIN/project", 30, 0, "A", "child"),
	}
	got := ResolveView(rows, "concept", vc.Criteria{Path: "MAIN/project", MaxStart: 35}, branchLookup(branches), nil, nil)
	if len(got) != 1 || got[0].(*testDoc).Value != "child" {
		t.Fatalf("expected the child row to shadow the parent, got %v", valuesByID(got))
	}
}

func TestResolveViewOpenCommitTimepointOnlyAtCriteriaPath(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN":         {Path: "MAIN", Base: 1, Head: 50},
		"MAIN/project": {Path: "MAIN/project", Base: 20, Head: 30},
	}
	rows := []Document{
		// Open commit row on the criteria path, start beyond head.
		row("MAIN/project", 60, 0, "A", "openCommit"),
		// A row on MAIN carrying the same timepoint must stay invisible.
		row("MAIN", 60, 0, "B", "parentFuture"),
	}
	crit := vc.Criteria{Path: "MAIN/project", MaxStart: 30, Timepoint: 60}
	got := ResolveView(rows, "concept", crit, branchLookup(branches), nil, nil)
	values := valuesByID(got)
	if values["A"] != "openCommit" {
		t.Errorf("expected open commit row visible, got %v", values)
	}
	if _, ok := values["B"]; ok {
		t.Errorf("open commit timepoint must not apply at ancestor levels, got %v", values)
	}
}

func TestResolveViewInCommitReplacementHidden(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN": {Path: "MAIN", Base: 1, Head: 50},
	}
	rows := []Document{
		// Superseded within the open commit itself.
		row("MAIN", 40, 60, "A", "v1"),
		row("MAIN", 60, 0, "A", "v2"),
	}
	crit := vc.Criteria{Path: "MAIN", MaxStart: 50, Timepoint: 60}
	got := ResolveView(rows, "concept", crit, branchLookup(branches), nil, nil)
	if len(got) != 1 || got[0].(*testDoc).Value != "v2" {
		t.Fatalf("expected only the in-commit replacement, got %v", valuesByID(got))
	}
}

func TestResolveViewTombstoneShadowsAncestor(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN":         {Path: "MAIN", Base: 1, Head: 40},
		"MAIN/project": {Path: "MAIN/project", Base: 20, Head: 35},
	}
	rows := []Document{
		row("MAIN", 10, 0, "A", "parent"),
	}
	deleted := func(path, typeName, id string) (int64, bool) {
		if path == "MAIN/project" && id == "A" {
			return 30, true
		}
		return 0, false
	}
	got := ResolveView(rows, "concept", vc.Criteria{Path: "MAIN/project", MaxStart: 35}, branchLookup(branches), deleted, nil)
	if len(got) != 0 {
		t.Fatalf("expected tombstone to hide the ancestor row, got %v", valuesByID(got))
	}
}

func TestResolveViewReplacedRowShadowed(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN":         {Path: "MAIN", Base: 1, Head: 40},
		"MAIN/project": {Path: "MAIN/project", Base: 20, Head: 35},
	}
	parentRow := row("MAIN", 10, 0, "A", "parent")
	rows := []Document{
		parentRow,
		row("MAIN/project", 30, 0, "A", "child"),
	}
	replaced := func(path, typeName, internalID string) (int64, bool) {
		if path == "MAIN/project" && internalID == parentRow.Row.InternalID {
			return 30, true
		}
		return 0, false
	}
	got := ResolveView(rows, "concept", vc.Criteria{Path: "MAIN/project", MaxStart: 35}, branchLookup(branches), nil, replaced)
	if len(got) != 1 || got[0].(*testDoc).Value != "child" {
		t.Fatalf("expected replaced ancestor row hidden, got %v", valuesByID(got))
	}
}

func TestResolveViewUnpromotedChangesAndDeletions(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN":         {Path: "MAIN", Base: 1, Head: 40},
		"MAIN/project": {Path: "MAIN/project", Base: 20, Head: 35},
	}
	rows := []Document{
		row("MAIN", 10, 0, "A", "parent"),
		row("MAIN/project", 25, 0, "B", "changed"),
		// Final version of a component deleted on the branch.
		row("MAIN/project", 30, 30, "C", "final"),
	}
	deleted := func(path, typeName, id string) (int64, bool) {
		if path == "MAIN/project" && id == "C" {
			return 30, true
		}
		return 0, false
	}

	crit := vc.Criteria{Path: "MAIN/project", MaxStart: 35, UnpromotedOnly: true}
	got := ResolveView(rows, "concept", crit, branchLookup(branches), deleted, nil)
	values := valuesByID(got)
	if len(values) != 1 || values["B"] != "changed" {
		t.Errorf("unpromoted changes: got %v, want only B", values)
	}

	crit.IncludeDeletions = true
	got = ResolveView(rows, "concept", crit, branchLookup(branches), deleted, nil)
	values = valuesByID(got)
	if len(values) != 2 || values["B"] != "changed" || values["C"] != "final" {
		t.Errorf("unpromoted changes and deletions: got %v, want B and C", values)
	}
}

func TestResolveViewOpenCommitOnly(t *testing.T) {
	branches := map[string]*vc.Branch{
		"MAIN": {Path: "MAIN", Base: 1, Head: 50},
	}
	rows := []Document{
		row("MAIN", 40, 60, "A", "replacedByCommit"),
		row("MAIN", 60, 0, "A", "written"),
		row("MAIN", 40, 0, "B", "untouched"),
	}
	crit := vc.Criteria{Path: "MAIN", Timepoint: 60, OpenCommitOnly: true}
	got := ResolveView(rows, "concept", crit, branchLookup(branches), nil, nil)
	if len(got) != 2 {
		t.Fatalf("expected the written and the replaced row, got %v", valuesByID(got))
	}
	for _, d := range got {
		if d.DocID() == "B" {
			t.Errorf("row untouched by the commit must not appear")
		}
	}
}
