package rf2

import (
	"bufio"
	"context"
	log "log/slog"
	"sort"
	"strconv"
	"strings"

	termcore "github.com/clinterm/termcore"
)

// ComponentFactory receives the component states read from release files.
type ComponentFactory interface {
	NewConceptState(ctx context.Context, conceptID, effectiveTime, active, moduleID, definitionStatusID string) error
	NewDescriptionState(ctx context.Context, id, effectiveTime, active, moduleID, conceptID, languageCode, typeID, term, caseSignificanceID string) error
	NewRelationshipState(ctx context.Context, id, effectiveTime, active, moduleID, sourceID, destinationID, relationshipGroup, typeID, characteristicTypeID, modifierID string) error
	NewConcreteRelationshipState(ctx context.Context, id, effectiveTime, active, moduleID, sourceID, value, relationshipGroup, typeID, characteristicTypeID, modifierID string) error
	NewIdentifierState(ctx context.Context, alternateIdentifier, effectiveTime, active, moduleID, identifierSchemeID, referencedComponentID string) error
	NewReferenceSetMemberState(ctx context.Context, fieldNames []string, id, effectiveTime, active, moduleID, refsetID, referencedComponentID string, otherValues ...string) error
}

// LoadingProfile filters the rows handed to the factory.
type LoadingProfile struct {
	// ModuleIDs restricts loading to the given modules when non-empty.
	ModuleIDs []string
	// ModuleMaxEffectiveTimes drops rows at or before the module's last
	// known release, so a delta on top of existing content only loads news.
	ModuleMaxEffectiveTimes map[string]int
}

func (p LoadingProfile) accepts(moduleID, effectiveTime string) bool {
	if len(p.ModuleIDs) > 0 {
		found := false
		for _, m := range p.ModuleIDs {
			if m == moduleID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if cutoff, ok := p.ModuleMaxEffectiveTimes[moduleID]; ok {
		if et, valid := ParseEffectiveTime(effectiveTime); valid && et <= cutoff {
			return false
		}
	}
	return true
}

// ReleaseReader parses release files and streams their rows to a factory.
type ReleaseReader struct {
	profile LoadingProfile
}

func NewReleaseReader(profile LoadingProfile) *ReleaseReader {
	return &ReleaseReader{profile: profile}
}

type fileKind int

const (
	kindConcept fileKind = iota
	kindDescription
	kindRelationship
	kindConcrete
	kindIdentifier
	kindRefset
)

// Leading column counts before the per-refset additional fields start.
const refsetFixedColumns = 6

var kindMinColumns = map[fileKind]int{
	kindConcept:      5,
	kindDescription:  9,
	kindRelationship: 10,
	kindConcrete:     10,
	kindIdentifier:   6,
	kindRefset:       refsetFixedColumns,
}

// Load streams every file of the release to the factory. Used for DELTA and
// SNAPSHOT; FULL needs the release ordering of LoadFull.
func (r *ReleaseReader) Load(ctx context.Context, files *ReleaseFiles, factory ComponentFactory) error {
	forEach := func(kind fileKind, nrs []NamedReader) error {
		for _, nr := range nrs {
			if err := r.loadFile(ctx, kind, nr, factory); err != nil {
				return err
			}
		}
		return nil
	}
	if err := forEach(kindConcept, files.ConceptFiles); err != nil {
		return err
	}
	if err := forEach(kindDescription, files.DescriptionFiles); err != nil {
		return err
	}
	if err := forEach(kindRelationship, files.RelationshipFiles); err != nil {
		return err
	}
	if err := forEach(kindConcrete, files.ConcreteRelationshipFiles); err != nil {
		return err
	}
	if err := forEach(kindIdentifier, files.IdentifierFiles); err != nil {
		return err
	}
	return forEach(kindRefset, files.RefsetFiles)
}

func (r *ReleaseReader) loadFile(ctx context.Context, kind fileKind, nr NamedReader, factory ComponentFactory) error {
	return r.scanFile(kind, nr, func(fieldNames []string, cols []string) error {
		return dispatch(ctx, factory, kind, fieldNames, cols)
	})
}

// scanFile parses one tab separated file, applying the loading profile, and
// hands each surviving row to fn.
func (r *ReleaseReader) scanFile(kind fileKind, nr NamedReader, fn func(fieldNames []string, cols []string) error) error {
	scanner := bufio.NewScanner(nr.Reader)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return termcore.Errorf(termcore.Conversion, "failed reading header of %s, details: %w", nr.Name, err)
		}
		log.Warn("release file is empty", "file", nr.Name)
		return nil
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < kindMinColumns[kind] {
		return termcore.Errorf(termcore.Conversion, "release file %s has %d columns, expected at least %d", nr.Name, len(header), kindMinColumns[kind])
	}
	var fieldNames []string
	if kind == kindRefset {
		fieldNames = header[refsetFixedColumns:]
	}

	line := 1
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) != len(header) {
			return termcore.Errorf(termcore.Conversion, "release file %s line %d has %d columns, expected %d", nr.Name, line, len(cols), len(header))
		}
		if !r.profile.accepts(cols[3], cols[1]) {
			continue
		}
		if err := fn(fieldNames, cols); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return termcore.Errorf(termcore.Conversion, "failed reading %s, details: %w", nr.Name, err)
	}
	return nil
}

func dispatch(ctx context.Context, factory ComponentFactory, kind fileKind, fieldNames []string, c []string) error {
	switch kind {
	case kindConcept:
		return factory.NewConceptState(ctx, c[0], c[1], c[2], c[3], c[4])
	case kindDescription:
		return factory.NewDescriptionState(ctx, c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7], c[8])
	case kindRelationship:
		return factory.NewRelationshipState(ctx, c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7], c[8], c[9])
	case kindConcrete:
		return factory.NewConcreteRelationshipState(ctx, c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7], c[8], c[9])
	case kindIdentifier:
		return factory.NewIdentifierState(ctx, c[0], c[1], c[2], c[3], c[4], c[5])
	case kindRefset:
		return factory.NewReferenceSetMemberState(ctx, fieldNames, c[0], c[1], c[2], c[3], c[4], c[5], c[refsetFixedColumns:]...)
	}
	return nil
}

type bufferedRow struct {
	kind          fileKind
	fieldNames    []string
	cols          []string
	effectiveTime int
	order         int
}

// LoadFull reads every file of a FULL release, orders all rows by effective
// time, and dispatches them release by release. onReleaseStart runs before
// the first row of each release, letting the caller commit the previous
// release on its own.
func (r *ReleaseReader) LoadFull(ctx context.Context, files *ReleaseFiles, factory ComponentFactory,
	onReleaseStart func(ctx context.Context, effectiveTime int) error) error {

	var rows []bufferedRow
	collect := func(kind fileKind, nrs []NamedReader) error {
		for _, nr := range nrs {
			err := r.scanFile(kind, nr, func(fieldNames []string, cols []string) error {
				et, _ := ParseEffectiveTime(cols[1])
				rows = append(rows, bufferedRow{kind: kind, fieldNames: fieldNames, cols: cols, effectiveTime: et, order: len(rows)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(kindConcept, files.ConceptFiles); err != nil {
		return err
	}
	if err := collect(kindDescription, files.DescriptionFiles); err != nil {
		return err
	}
	if err := collect(kindRelationship, files.RelationshipFiles); err != nil {
		return err
	}
	if err := collect(kindConcrete, files.ConcreteRelationshipFiles); err != nil {
		return err
	}
	if err := collect(kindIdentifier, files.IdentifierFiles); err != nil {
		return err
	}
	if err := collect(kindRefset, files.RefsetFiles); err != nil {
		return err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].effectiveTime != rows[j].effectiveTime {
			return rows[i].effectiveTime < rows[j].effectiveTime
		}
		return rows[i].order < rows[j].order
	})

	currentRelease := -1
	for _, row := range rows {
		if row.effectiveTime != currentRelease {
			currentRelease = row.effectiveTime
			if err := onReleaseStart(ctx, currentRelease); err != nil {
				return err
			}
		}
		if err := dispatch(ctx, factory, row.kind, row.fieldNames, row.cols); err != nil {
			return err
		}
	}
	return nil
}

// ParseEffectiveTime parses a YYYYMMDD effective time column value. Blank or
// malformed values return false.
func ParseEffectiveTime(s string) (int, bool) {
	if len(s) != 8 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
