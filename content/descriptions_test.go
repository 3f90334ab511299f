package content_test

import (
	"context"
	"testing"
	"time"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/memvc"
	"github.com/clinterm/termcore/redis"
	"github.com/clinterm/termcore/vc"
)

// countingCache wraps a cache and records reads, hits and writes.
type countingCache struct {
	termcore.Cache
	gets, hits, sets int
}

func (c *countingCache) GetStruct(ctx context.Context, key string, target any) (bool, error) {
	c.gets++
	found, err := c.Cache.GetStruct(ctx, key, target)
	if found {
		c.hits++
	}
	return found, err
}

func (c *countingCache) SetStruct(ctx context.Context, key string, value any, expiration time.Duration) error {
	c.sets++
	return c.Cache.SetStruct(ctx, key, value, expiration)
}

func description(id, conceptID, typeID, term string, active bool) *domain.Description {
	d := &domain.Description{DescriptionID: id, ConceptID: conceptID, TypeID: typeID, Term: term, LanguageCode: "en"}
	d.Active = active
	d.ModuleID = domain.CoreModule
	return d
}

func saveDescriptions(t *testing.T, store *memvc.Store, svc *content.DescriptionService, descriptions ...*domain.Description) *vc.Branch {
	t.Helper()
	ctx := context.Background()
	commit, err := store.OpenCommit(ctx, vc.RootPath, vc.ContentCommit, "editing descriptions")
	if err != nil {
		t.Fatalf("OpenCommit failed: %v", err)
	}
	if err := svc.SaveBatch(ctx, commit, descriptions); err != nil {
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
	return b
}

func TestFindConceptMinis(t *testing.T) {
	ctx := context.Background()
	store := memvc.NewStore()
	svc := content.NewDescriptionService(store, redis.NewMockClient())

	b := saveDescriptions(t, store, svc,
		description("200000", "100000", domain.Synonym, "Deprecated", false),
		description("200001", "100000", domain.FSN, "Substance (substance)", true),
		description("200002", "100000", domain.Synonym, "Substance", true),
		description("200003", "100000", domain.Synonym, "Chemical substance", true),
		description("200010", "100001", domain.FSN, "Physical object (physical object)", true),
	)

	minis, err := svc.FindConceptMinis(ctx, b, []string{"100000", "100001", "999999"})
	if err != nil {
		t.Fatalf("FindConceptMinis failed: %v", err)
	}
	if got := minis["100000"]; got.FSN != "Substance (substance)" || got.PT != "Substance" {
		t.Errorf("concept 100000: fsn=%q pt=%q", got.FSN, got.PT)
	}
	if got := minis["100001"]; got.FSN != "Physical object (physical object)" || got.PT != "" {
		t.Errorf("concept 100001: fsn=%q pt=%q", got.FSN, got.PT)
	}
	if got := minis["999999"]; got.FSN != "" || got.PT != "" {
		t.Errorf("unknown concept should stay blank, got fsn=%q pt=%q", got.FSN, got.PT)
	}
}

func TestFindConceptMinisCachesPerBranchHead(t *testing.T) {
	ctx := context.Background()
	store := memvc.NewStore()
	cache := &countingCache{Cache: redis.NewMockClient()}
	svc := content.NewDescriptionService(store, cache)

	b := saveDescriptions(t, store, svc,
		description("200001", "100000", domain.FSN, "Substance (substance)", true),
		description("200002", "100000", domain.Synonym, "Substance", true),
		description("200003", "100000", domain.Synonym, "Chemical substance", true),
	)

	if _, err := svc.FindConceptMinis(ctx, b, []string{"100000"}); err != nil {
		t.Fatalf("FindConceptMinis failed: %v", err)
	}
	if cache.hits != 0 || cache.sets != 1 {
		t.Fatalf("first lookup: hits=%d sets=%d, want a miss and one write", cache.hits, cache.sets)
	}

	minis, err := svc.FindConceptMinis(ctx, b, []string{"100000"})
	if err != nil {
		t.Fatalf("FindConceptMinis failed: %v", err)
	}
	if cache.hits != 1 || cache.sets != 1 {
		t.Errorf("second lookup: hits=%d sets=%d, want a cache hit and no extra write", cache.hits, cache.sets)
	}
	if got := minis["100000"]; got.PT != "Substance" {
		t.Errorf("cached pt = %q, want Substance", got.PT)
	}

	// A new commit moves the head, so the stale entry is keyed out.
	b = saveDescriptions(t, store, svc, description("200002", "100000", domain.Synonym, "Substance", false))
	minis, err = svc.FindConceptMinis(ctx, b, []string{"100000"})
	if err != nil {
		t.Fatalf("FindConceptMinis failed: %v", err)
	}
	if cache.hits != 1 || cache.sets != 2 {
		t.Errorf("after head change: hits=%d sets=%d, want a fresh read and write", cache.hits, cache.sets)
	}
	if got := minis["100000"]; got.PT != "Chemical substance" {
		t.Errorf("pt after inactivation = %q, want Chemical substance", got.PT)
	}
}
