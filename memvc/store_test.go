package memvc

import (
	"context"
	"errors"
	"testing"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

func concept(id string, active bool) *domain.Concept {
	c := &domain.Concept{ConceptID: id, DefinitionStatusID: "900000000000074008"}
	c.Active = active
	c.ModuleID = domain.CoreModule
	return c
}

func saveConcepts(t *testing.T, s *Store, path string, concepts ...*domain.Concept) *vc.Branch {
	t.Helper()
	ctx := context.Background()
	commit, err := s.OpenCommit(ctx, path, vc.ContentCommit, "test content")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	docs := make([]docstore.Document, len(concepts))
	for i, c := range concepts {
		docs[i] = c
	}
	if err := s.SaveBatch(ctx, commit, domain.TypeConcept, docs); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	commit.MarkSuccessful()
	if err := commit.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	b, err := s.FindLatest(ctx, path)
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	return b
}

func findConcepts(t *testing.T, s *Store, crit vc.Criteria) map[string]*domain.Concept {
	t.Helper()
	out := map[string]*domain.Concept{}
	err := docstore.EachHit(context.Background(), s, domain.TypeConcept,
		docstore.Query{Criteria: crit}, func(c *domain.Concept) error {
			out[c.ConceptID] = c
			return nil
		})
	if err != nil {
		t.Fatalf("EachHit failed: %v", err)
	}
	return out
}

func TestCreateBranchHierarchy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if exists, _ := s.Exists(ctx, vc.RootPath); !exists {
		t.Fatal("root branch should exist after NewStore")
	}
	if _, err := s.Create(ctx, "MAIN/project/task"); err == nil {
		t.Error("expected error creating branch without parent")
	}
	project, err := s.Create(ctx, "MAIN/project")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	root, _ := s.FindLatest(ctx, vc.RootPath)
	if project.Base != root.Head {
		t.Errorf("child base %d should equal parent head %d", project.Base, root.Head)
	}
	if _, err := s.Create(ctx, "MAIN/project"); !termcore.IsCode(err, termcore.Validation) {
		t.Errorf("expected Validation error creating duplicate branch, got %v", err)
	}
}

func TestOpenCommitLockContention(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first, err := s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "first")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	_, err = s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "second")
	if !termcore.IsCode(err, termcore.LockContention) {
		t.Fatalf("expected LockContention, got %v", err)
	}
	first.MarkSuccessful()
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	again, err := s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "after release")
	if err != nil {
		t.Fatalf("lock should be released after close: %v", err)
	}
	again.Close(ctx)
}

func TestCommitVisibility(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	commit, err := s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "test content")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	if err := s.SaveBatch(ctx, commit, domain.TypeConcept, []docstore.Document{concept("100000", true)}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	b := commit.Branch()
	if found := findConcepts(t, s, vc.CriteriaOn(b)); len(found) != 0 {
		t.Errorf("uncommitted row must not be visible at branch head, got %v", found)
	}
	if found := findConcepts(t, s, vc.CriteriaIncludingOpenCommit(commit)); len(found) != 1 {
		t.Errorf("open commit criteria should expose the row, got %v", found)
	}

	commit.MarkSuccessful()
	if err := commit.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	b, _ = s.FindLatest(ctx, vc.RootPath)
	if found := findConcepts(t, s, vc.CriteriaOn(b)); len(found) != 1 {
		t.Errorf("committed row should be visible, got %v", found)
	}
}

func TestCloseWithoutSuccessRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	before, _ := s.FindLatest(ctx, vc.RootPath)
	headBefore := before.Head
	commit, err := s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "doomed")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	if err := s.SaveBatch(ctx, commit, domain.TypeConcept, []docstore.Document{concept("100000", true)}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if err := commit.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, _ := s.FindLatest(ctx, vc.RootPath)
	if b.Head != headBefore {
		t.Errorf("head moved on a rolled back commit: %d -> %d", headBefore, b.Head)
	}
	if found := findConcepts(t, s, vc.CriteriaOn(b)); len(found) != 0 {
		t.Errorf("rolled back rows must be gone, got %v", found)
	}
	if _, err := s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "after rollback"); err != nil {
		t.Errorf("lock should be released by rollback: %v", err)
	}
}

func TestRollbackRestoresSupersededRow(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	saveConcepts(t, s, vc.RootPath, concept("100000", true))

	commit, err := s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "replacing")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	if err := s.SaveBatch(ctx, commit, domain.TypeConcept, []docstore.Document{concept("100000", false)}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if err := commit.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, _ := s.FindLatest(ctx, vc.RootPath)
	found := findConcepts(t, s, vc.CriteriaOn(b))
	if c := found["100000"]; c == nil || !c.Active {
		t.Errorf("superseded row should be restored after rollback, got %v", found)
	}
}

func TestSecondSaveWithinCommitReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	commit, err := s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "double save")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	if err := s.SaveBatch(ctx, commit, domain.TypeConcept, []docstore.Document{concept("100000", true)}); err != nil {
		t.Fatalf("first SaveBatch failed: %v", err)
	}
	if err := s.SaveBatch(ctx, commit, domain.TypeConcept, []docstore.Document{concept("100000", false)}); err != nil {
		t.Fatalf("second SaveBatch failed: %v", err)
	}

	// One row per component per timepoint.
	found := findConcepts(t, s, vc.CriteriaChangesWithinOpenCommitOnly(commit))
	if len(found) != 1 {
		t.Fatalf("expected a single row in the commit, got %d", len(found))
	}
	if found["100000"].Active {
		t.Error("second save should have replaced the first in place")
	}
	commit.MarkSuccessful()
	commit.Close(ctx)
}

func TestDeleteOnChildBranch(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	saveConcepts(t, s, vc.RootPath, concept("100000", true))
	if _, err := s.Create(ctx, "MAIN/project"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	commit, err := s.OpenCommit(ctx, "MAIN/project", vc.ContentCommit, "deleting")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	if err := s.DeleteBatch(ctx, commit, domain.TypeConcept, []string{"100000"}); err != nil {
		t.Fatalf("DeleteBatch failed: %v", err)
	}
	commit.MarkSuccessful()
	if err := commit.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	project, _ := s.FindLatest(ctx, "MAIN/project")
	if found := findConcepts(t, s, vc.CriteriaOn(project)); len(found) != 0 {
		t.Errorf("deleted component must not be visible on the branch, got %v", found)
	}
	root, _ := s.FindLatest(ctx, vc.RootPath)
	if found := findConcepts(t, s, vc.CriteriaOn(root)); len(found) != 1 {
		t.Errorf("deletion on a child must not affect the parent, got %v", found)
	}
	found := findConcepts(t, s, vc.CriteriaUnpromotedChangesAndDeletions(project))
	if len(found) != 1 || found["100000"] == nil {
		t.Errorf("deletion-aware read should return the final version, got %v", found)
	}
}

type vetoListener struct {
	err error
}

func (l vetoListener) PreCommitCompletion(ctx context.Context, c *vc.Commit) error {
	return l.err
}

func TestCommitListenerVetoRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.AddCommitListener(vetoListener{err: errors.New("integrity broken")})

	commit, err := s.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "vetoed")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	if err := s.SaveBatch(ctx, commit, domain.TypeConcept, []docstore.Document{concept("100000", true)}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	commit.MarkSuccessful()
	if err := commit.Close(ctx); err == nil {
		t.Fatal("expected the listener veto to surface from Close")
	}

	b, _ := s.FindLatest(ctx, vc.RootPath)
	if found := findConcepts(t, s, vc.CriteriaOn(b)); len(found) != 0 {
		t.Errorf("vetoed commit rows must be rolled back, got %v", found)
	}
}

func TestRebaseExposesNewerParentContent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if _, err := s.Create(ctx, "MAIN/project"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	saveConcepts(t, s, vc.RootPath, concept("100000", true))

	project, _ := s.FindLatest(ctx, "MAIN/project")
	if found := findConcepts(t, s, vc.CriteriaOn(project)); len(found) != 0 {
		t.Errorf("content committed after the base must stay invisible, got %v", found)
	}
	if err := s.Rebase(ctx, "MAIN/project"); err != nil {
		t.Fatalf("Rebase failed: %v", err)
	}
	project, _ = s.FindLatest(ctx, "MAIN/project")
	if found := findConcepts(t, s, vc.CriteriaOn(project)); len(found) != 1 {
		t.Errorf("rebased branch should see the parent content, got %v", found)
	}
}
