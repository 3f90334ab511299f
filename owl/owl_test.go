package owl

import (
	"reflect"
	"testing"

	termcore "github.com/clinterm/termcore"
)

func TestReferencedConcepts(t *testing.T) {
	expression := "SubClassOf(:195967001 ObjectIntersectionOf(:50043002 ObjectSomeValuesFrom(:609096000 ObjectSomeValuesFrom(:116676008 :79654002))))"
	got, err := ReferencedConcepts(expression)
	if err != nil {
		t.Fatalf("ReferencedConcepts failed: %v", err)
	}
	want := []string{"116676008", "195967001", "50043002", "609096000", "79654002"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReferencedConceptsDeduplicates(t *testing.T) {
	got, err := ReferencedConcepts("EquivalentClasses(:100000 ObjectIntersectionOf(:100000 :200000))")
	if err != nil {
		t.Fatalf("ReferencedConcepts failed: %v", err)
	}
	want := []string{"100000", "200000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReferencedConceptsErrors(t *testing.T) {
	cases := []struct {
		name       string
		expression string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"unbalancedOpen", "SubClassOf(:100000"},
		{"unbalancedClose", "SubClassOf :100000)"},
		{"noReferences", "SubClassOf(owl:Thing owl:Thing)"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ReferencedConcepts(c.expression)
			if err == nil {
				t.Fatalf("expected error for %q", c.expression)
			}
			if !termcore.IsCode(err, termcore.Conversion) {
				t.Errorf("expected Conversion error, got %v", err)
			}
		})
	}
}
