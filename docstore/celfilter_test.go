package docstore_test

import (
	"context"
	"testing"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/memvc"
	"github.com/clinterm/termcore/vc"
)

func TestNewFilterRejectsBrokenExpression(t *testing.T) {
	if _, err := docstore.NewFilter("bad", "doc.active =="); !termcore.IsCode(err, termcore.Conversion) {
		t.Fatalf("expected Conversion error, got %v", err)
	}
}

func TestFilterMatches(t *testing.T) {
	f, err := docstore.NewFilter("audit", "doc.active == true && doc.moduleId == '900000000000207008'")
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	ok, err := f.Matches(map[string]any{"active": true, "moduleId": "900000000000207008"})
	if err != nil {
		t.Fatalf("Matches failed: %v", err)
	}
	if !ok {
		t.Error("matching document rejected")
	}
	ok, err = f.Matches(map[string]any{"active": false, "moduleId": "900000000000207008"})
	if err != nil {
		t.Fatalf("Matches failed: %v", err)
	}
	if ok {
		t.Error("inactive document accepted")
	}
}

func TestFilterRejectsNonBooleanResult(t *testing.T) {
	f, err := docstore.NewFilter("audit", "doc.moduleId")
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	if _, err := f.Matches(map[string]any{"moduleId": "900000000000207008"}); !termcore.IsCode(err, termcore.Conversion) {
		t.Fatalf("expected Conversion error for a non-boolean result, got %v", err)
	}
}

func TestSelectWhere(t *testing.T) {
	ctx := context.Background()
	store := memvc.NewStore()

	commit, err := store.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "adding concepts")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	active := &domain.Concept{ConceptID: "100000", DefinitionStatusID: "900000000000074008"}
	active.Active = true
	active.ModuleID = domain.CoreModule
	inactive := &domain.Concept{ConceptID: "100001", DefinitionStatusID: "900000000000074008"}
	inactive.ModuleID = domain.CoreModule
	err = store.SaveBatch(ctx, commit, domain.TypeConcept, []docstore.Document{active, inactive})
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	commit.MarkSuccessful()
	if err := commit.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, err := store.FindLatest(ctx, vc.RootPath)
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	f, err := docstore.NewFilter("audit", "doc.active == true")
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	docs, err := docstore.SelectWhere(ctx, store, domain.TypeConcept, vc.CriteriaOn(b), f)
	if err != nil {
		t.Fatalf("SelectWhere failed: %v", err)
	}
	if len(docs) != 1 || docs[0].DocID() != "100000" {
		t.Errorf("expected the active concept only, got %v", docs)
	}
}
