package blobs

import (
	"context"
	"reflect"
	"testing"

	termcore "github.com/clinterm/termcore"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	if err := store.Add(ctx, "imports", "release/concept/sct2_Concept_Delta.txt", []byte("id\teffectiveTime\n")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	data, err := store.Fetch(ctx, "imports", "release/concept/sct2_Concept_Delta.txt")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "id\teffectiveTime\n" {
		t.Errorf("fetched %q", data)
	}
}

func TestFileStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	for _, key := range []string{
		"release/concept/sct2_Concept_Delta.txt",
		"release/description/sct2_Description_Delta.txt",
		"other/readme.txt",
	} {
		if err := store.Add(ctx, "imports", key, []byte("x")); err != nil {
			t.Fatalf("Add %s failed: %v", key, err)
		}
	}

	keys, err := store.List(ctx, "imports", "release/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{
		"release/concept/sct2_Concept_Delta.txt",
		"release/description/sct2_Description_Delta.txt",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List = %v, want %v", keys, want)
	}

	keys, err = store.List(ctx, "empty-bucket", "")
	if err != nil {
		t.Fatalf("List on a missing bucket failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List on a missing bucket = %v, want none", keys)
	}
}

func TestFileStoreFetchMissing(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	if _, err := store.Fetch(ctx, "imports", "nope.txt"); !termcore.IsCode(err, termcore.Validation) {
		t.Errorf("expected a validation error for a missing blob, got %v", err)
	}
}

func TestFileStoreRemove(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	if err := store.Add(ctx, "imports", "release/a.txt", []byte("x")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Remove(ctx, "imports", "release/a.txt", "release/missing.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	keys, err := store.List(ctx, "imports", "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("keys after Remove = %v, want none", keys)
	}
}
