package ecl

import (
	"context"
	"reflect"
	"testing"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/memvc"
	"github.com/clinterm/termcore/vc"
)

func queryConcept(conceptID string, stated bool, ancestors ...string) *domain.QueryConcept {
	return &domain.QueryConcept{ConceptID: conceptID, Stated: stated, Ancestors: ancestors}
}

func seedIndex(t *testing.T, store *memvc.Store, docs ...docstore.Document) vc.Criteria {
	t.Helper()
	ctx := context.Background()
	commit, err := store.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "seeding semantic index")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	if err := store.SaveBatch(ctx, commit, domain.TypeQueryConcept, docs); err != nil {
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
	return vc.CriteriaOn(b)
}

func TestSelectConceptIDs(t *testing.T) {
	ctx := context.Background()
	store := memvc.NewStore()
	crit := seedIndex(t, store,
		queryConcept("100000", true),
		queryConcept("100001", true, "100000"),
		queryConcept("100002", true, "100000", "100001"),
		queryConcept("100003", false, "100000"),
	)

	cases := []struct {
		expression string
		want       []string
	}{
		{"100000", []string{"100000"}},
		{"< 100000", []string{"100001", "100002"}},
		{"<< 100000 |Thing|", []string{"100000", "100001", "100002"}},
		{"<< 100002", []string{"100002"}},
		{"<< 999999", nil},
	}
	for _, c := range cases {
		t.Run(c.expression, func(t *testing.T) {
			got, err := SelectConceptIDs(ctx, store, crit, true, c.expression)
			if err != nil {
				t.Fatalf("SelectConceptIDs(%q) failed: %v", c.expression, err)
			}
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("SelectConceptIDs(%q) = %v, want %v", c.expression, got, c.want)
			}
		})
	}
}

func TestSelectConceptIDsUsesRequestedForm(t *testing.T) {
	ctx := context.Background()
	store := memvc.NewStore()
	crit := seedIndex(t, store,
		queryConcept("100000", true),
		queryConcept("100001", true, "100000"),
		queryConcept("100003", false, "100000"),
	)

	got, err := SelectConceptIDs(ctx, store, crit, false, "< 100000")
	if err != nil {
		t.Fatalf("SelectConceptIDs failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"100003"}) {
		t.Errorf("inferred descendants = %v, want [100003]", got)
	}
}

func TestSelectConceptIDsRejectsUnsupportedExpressions(t *testing.T) {
	ctx := context.Background()
	store := memvc.NewStore()
	crit := seedIndex(t, store, queryConcept("100000", true))

	for _, expression := range []string{"", "*", "< 100000 AND < 200000", "100000 : 116680003 = *"} {
		if _, err := SelectConceptIDs(ctx, store, crit, true, expression); !termcore.IsCode(err, termcore.Validation) {
			t.Errorf("SelectConceptIDs(%q): expected a validation error, got %v", expression, err)
		}
	}
}
