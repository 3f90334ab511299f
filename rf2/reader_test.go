package rf2

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	termcore "github.com/clinterm/termcore"
)

const (
	testCoreModule  = "900000000000207008"
	testModelModule = "900000000000012004"
)

// recordingFactory collects the dispatched states as readable strings.
type recordingFactory struct {
	states     []string
	fieldNames []string
}

func (f *recordingFactory) NewConceptState(ctx context.Context, conceptID, effectiveTime, active, moduleID, definitionStatusID string) error {
	f.states = append(f.states, fmt.Sprintf("concept %s %s %s", conceptID, effectiveTime, active))
	return nil
}

func (f *recordingFactory) NewDescriptionState(ctx context.Context, id, effectiveTime, active, moduleID, conceptID, languageCode, typeID, term, caseSignificanceID string) error {
	f.states = append(f.states, fmt.Sprintf("description %s %s", id, term))
	return nil
}

func (f *recordingFactory) NewRelationshipState(ctx context.Context, id, effectiveTime, active, moduleID, sourceID, destinationID, relationshipGroup, typeID, characteristicTypeID, modifierID string) error {
	f.states = append(f.states, fmt.Sprintf("relationship %s %s->%s", id, sourceID, destinationID))
	return nil
}

func (f *recordingFactory) NewConcreteRelationshipState(ctx context.Context, id, effectiveTime, active, moduleID, sourceID, value, relationshipGroup, typeID, characteristicTypeID, modifierID string) error {
	f.states = append(f.states, fmt.Sprintf("concrete %s %s=%s", id, sourceID, value))
	return nil
}

func (f *recordingFactory) NewIdentifierState(ctx context.Context, alternateIdentifier, effectiveTime, active, moduleID, identifierSchemeID, referencedComponentID string) error {
	f.states = append(f.states, fmt.Sprintf("identifier %s", alternateIdentifier))
	return nil
}

func (f *recordingFactory) NewReferenceSetMemberState(ctx context.Context, fieldNames []string, id, effectiveTime, active, moduleID, refsetID, referencedComponentID string, otherValues ...string) error {
	f.fieldNames = fieldNames
	f.states = append(f.states, fmt.Sprintf("member %s %s %s", id, refsetID, strings.Join(otherValues, ",")))
	return nil
}

func conceptFile(rows ...string) NamedReader {
	lines := append([]string{"id\teffectiveTime\tactive\tmoduleId\tdefinitionStatusId"}, rows...)
	return NamedReader{Name: "concepts.txt", Reader: strings.NewReader(strings.Join(lines, "\n") + "\n")}
}

func TestParseEffectiveTime(t *testing.T) {
	cases := []struct {
		in    string
		want  int
		valid bool
	}{
		{"20230731", 20230731, true},
		{"", 0, false},
		{"2023-07-31", 0, false},
		{"2023073", 0, false},
		{"202307311", 0, false},
		{"2023073a", 0, false},
	}
	for _, c := range cases {
		got, valid := ParseEffectiveTime(c.in)
		if got != c.want || valid != c.valid {
			t.Errorf("ParseEffectiveTime(%q) = (%d, %v), want (%d, %v)", c.in, got, valid, c.want, c.valid)
		}
	}
}

func TestLoadConceptFile(t *testing.T) {
	ctx := context.Background()
	factory := &recordingFactory{}
	files := &ReleaseFiles{ConceptFiles: []NamedReader{conceptFile(
		"100000\t20230101\t1\t"+testCoreModule+"\t900000000000074008",
		"",
		"100001\t20230101\t0\t"+testCoreModule+"\t900000000000074008",
	)}}
	if err := NewReleaseReader(LoadingProfile{}).Load(ctx, files, factory); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"concept 100000 20230101 1", "concept 100001 20230101 0"}
	if !reflect.DeepEqual(factory.states, want) {
		t.Errorf("got %v, want %v", factory.states, want)
	}
}

func TestLoadRefsetFieldNamesFromHeader(t *testing.T) {
	ctx := context.Background()
	factory := &recordingFactory{}
	file := NamedReader{Name: "refset.txt", Reader: strings.NewReader(
		"id\teffectiveTime\tactive\tmoduleId\trefsetId\treferencedComponentId\towlExpression\n" +
			"uuid-1\t20230101\t1\t" + testCoreModule + "\t733073007\t100000\tSubClassOf(:100000 :200000)\n")}
	files := &ReleaseFiles{RefsetFiles: []NamedReader{file}}
	if err := NewReleaseReader(LoadingProfile{}).Load(ctx, files, factory); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(factory.fieldNames, []string{"owlExpression"}) {
		t.Errorf("field names should come from the header, got %v", factory.fieldNames)
	}
	want := []string{"member uuid-1 733073007 SubClassOf(:100000 :200000)"}
	if !reflect.DeepEqual(factory.states, want) {
		t.Errorf("got %v, want %v", factory.states, want)
	}
}

func TestLoadColumnCountMismatch(t *testing.T) {
	ctx := context.Background()
	files := &ReleaseFiles{ConceptFiles: []NamedReader{conceptFile("100000\t20230101\t1")}}
	err := NewReleaseReader(LoadingProfile{}).Load(ctx, files, &recordingFactory{})
	if !termcore.IsCode(err, termcore.Conversion) {
		t.Fatalf("expected Conversion error for short row, got %v", err)
	}
}

func TestLoadingProfileModuleFilter(t *testing.T) {
	ctx := context.Background()
	factory := &recordingFactory{}
	files := &ReleaseFiles{ConceptFiles: []NamedReader{conceptFile(
		"100000\t20230101\t1\t"+testCoreModule+"\t900000000000074008",
		"100001\t20230101\t1\t"+testModelModule+"\t900000000000074008",
	)}}
	profile := LoadingProfile{ModuleIDs: []string{testCoreModule}}
	if err := NewReleaseReader(profile).Load(ctx, files, factory); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"concept 100000 20230101 1"}
	if !reflect.DeepEqual(factory.states, want) {
		t.Errorf("rows of other modules should be dropped, got %v", factory.states)
	}
}

func TestLoadingProfileModuleEffectiveTimeCutoff(t *testing.T) {
	ctx := context.Background()
	factory := &recordingFactory{}
	files := &ReleaseFiles{ConceptFiles: []NamedReader{conceptFile(
		"100000\t20230101\t1\t"+testCoreModule+"\t900000000000074008",
		"100001\t20230701\t1\t"+testCoreModule+"\t900000000000074008",
	)}}
	profile := LoadingProfile{ModuleMaxEffectiveTimes: map[string]int{testCoreModule: 20230101}}
	if err := NewReleaseReader(profile).Load(ctx, files, factory); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"concept 100001 20230701 1"}
	if !reflect.DeepEqual(factory.states, want) {
		t.Errorf("rows at or below the cutoff should be dropped, got %v", factory.states)
	}
}

func TestLoadFullOrdersByRelease(t *testing.T) {
	ctx := context.Background()
	factory := &recordingFactory{}
	files := &ReleaseFiles{
		ConceptFiles: []NamedReader{conceptFile(
			"100000\t20230701\t1\t"+testCoreModule+"\t900000000000074008",
			"100000\t20230101\t1\t"+testCoreModule+"\t900000000000074008",
		)},
		DescriptionFiles: []NamedReader{{Name: "descriptions.txt", Reader: strings.NewReader(
			"id\teffectiveTime\tactive\tmoduleId\tconceptId\tlanguageCode\ttypeId\tterm\tcaseSignificanceId\n" +
				"200000\t20230101\t1\t" + testCoreModule + "\t100000\ten\t900000000000003001\tHeart\t900000000000448009\n")}},
	}

	var releases []int
	err := NewReleaseReader(LoadingProfile{}).LoadFull(ctx, files, factory, func(ctx context.Context, effectiveTime int) error {
		releases = append(releases, effectiveTime)
		return nil
	})
	if err != nil {
		t.Fatalf("LoadFull failed: %v", err)
	}
	if !reflect.DeepEqual(releases, []int{20230101, 20230701}) {
		t.Errorf("release boundaries %v, want [20230101 20230701]", releases)
	}
	want := []string{
		"concept 100000 20230101 1",
		"description 200000 Heart",
		"concept 100000 20230701 1",
	}
	if !reflect.DeepEqual(factory.states, want) {
		t.Errorf("got %v, want %v", factory.states, want)
	}
}
