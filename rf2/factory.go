package rf2

import (
	"context"
	log "log/slog"
	"sync"

	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// FlushInterval is how many buffered components trigger a persist.
const FlushInterval = 5000

// persistBuffer collects components until FlushInterval is reached, then
// hands the batch to its flush function.
type persistBuffer[T any] struct {
	mu    sync.Mutex
	items []T
	flush func(ctx context.Context, items []T) error
}

func newPersistBuffer[T any](flush func(ctx context.Context, items []T) error) *persistBuffer[T] {
	return &persistBuffer[T]{flush: flush}
}

func (b *persistBuffer[T]) add(ctx context.Context, item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
	if len(b.items) < FlushInterval {
		return nil
	}
	return b.flushLocked(ctx)
}

func (b *persistBuffer[T]) flushNow(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

func (b *persistBuffer[T]) flushLocked(ctx context.Context) error {
	if len(b.items) == 0 {
		return nil
	}
	items := b.items
	b.items = nil
	return b.flush(ctx, items)
}

// ImportComponentFactory buffers the states streamed by a ReleaseReader and
// persists them within the import commit, reconciling each batch against the
// content already on the branch.
type ImportComponentFactory struct {
	config ImportConfig
	// copyReleaseFields carries released-state bookkeeping over onto
	// unversioned incoming rows. Off when the import itself versions the
	// content or replays full history.
	copyReleaseFields bool
	// moduleFilterActive suppresses the patcher; the release reader has
	// already dropped rows at or below each module's previous release.
	moduleFilterActive bool

	store         docstore.Store
	concepts      *content.ConceptService
	descriptions  *content.DescriptionService
	relationships *content.RelationshipService
	identifiers   *content.IdentifierService
	members       *content.MemberService

	conceptBuffer      *persistBuffer[*domain.Concept]
	descriptionBuffer  *persistBuffer[*domain.Description]
	relationshipBuffer *persistBuffer[*domain.Relationship]
	identifierBuffer   *persistBuffer[*domain.Identifier]
	memberBuffer       *persistBuffer[*domain.ReferenceSetMember]

	mu               sync.Mutex
	commit           *vc.Commit
	beforeCommitCrit vc.Criteria
	// coreFlushed latches once concepts, descriptions and relationships have
	// been persisted, so members and identifiers never land first.
	coreFlushed      bool
	maxEffectiveTime int
	skippedStated    int
	skippedExisting  map[string]int
}

func NewImportComponentFactory(config ImportConfig, commit *vc.Commit, deps Dependencies, moduleFilterActive bool) *ImportComponentFactory {
	f := &ImportComponentFactory{
		config:             config,
		copyReleaseFields:  !config.CreateCodeSystemVersion && config.Type != Full,
		moduleFilterActive: moduleFilterActive,
		store:            deps.Store,
		concepts:         deps.Concepts,
		descriptions:     deps.Descriptions,
		relationships:    deps.Relationships,
		identifiers:      deps.Identifiers,
		members:          deps.Members,
		commit:           commit,
		beforeCommitCrit: vc.CriteriaBeforeOpenCommit(commit),
		skippedExisting:  map[string]int{},
	}
	f.conceptBuffer = newPersistBuffer(func(ctx context.Context, items []*domain.Concept) error {
		return flushComponents(ctx, f, domain.TypeConcept, items, func(ctx context.Context, items []*domain.Concept) error {
			return f.concepts.SaveBatch(ctx, f.currentCommit(), items)
		})
	})
	f.descriptionBuffer = newPersistBuffer(func(ctx context.Context, items []*domain.Description) error {
		return flushComponents(ctx, f, domain.TypeDescription, items, func(ctx context.Context, items []*domain.Description) error {
			return f.descriptions.SaveBatch(ctx, f.currentCommit(), items)
		})
	})
	f.relationshipBuffer = newPersistBuffer(func(ctx context.Context, items []*domain.Relationship) error {
		return flushComponents(ctx, f, domain.TypeRelationship, items, func(ctx context.Context, items []*domain.Relationship) error {
			return f.relationships.SaveBatch(ctx, f.currentCommit(), items)
		})
	})
	f.identifierBuffer = newPersistBuffer(func(ctx context.Context, items []*domain.Identifier) error {
		if err := f.ensureCoreComponentsFlushed(ctx); err != nil {
			return err
		}
		return flushComponents(ctx, f, domain.TypeIdentifier, items, func(ctx context.Context, items []*domain.Identifier) error {
			return f.identifiers.SaveBatch(ctx, f.currentCommit(), items)
		})
	})
	f.memberBuffer = newPersistBuffer(func(ctx context.Context, items []*domain.ReferenceSetMember) error {
		if err := f.ensureCoreComponentsFlushed(ctx); err != nil {
			return err
		}
		return flushComponents(ctx, f, domain.TypeReferenceSetMember, items, func(ctx context.Context, items []*domain.ReferenceSetMember) error {
			return f.members.SaveBatch(ctx, f.currentCommit(), items)
		})
	})
	return f
}

func (f *ImportComponentFactory) currentCommit() *vc.Commit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit
}

func (f *ImportComponentFactory) beforeCommitCriteria() vc.Criteria {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beforeCommitCrit
}

// MaxEffectiveTime is the latest effective time seen across the whole import.
func (f *ImportComponentFactory) MaxEffectiveTime() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxEffectiveTime
}

// SkippedComponents reports, per document type, how many incoming states the
// patcher dropped because the branch already carried that release or a later
// one.
func (f *ImportComponentFactory) SkippedComponents() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.skippedExisting))
	for k, v := range f.skippedExisting {
		out[k] = v
	}
	return out
}

// SwitchCommit points the factory at the next commit of a FULL import. The
// caller has completed the previous commit and flushed every buffer.
func (f *ImportComponentFactory) SwitchCommit(c *vc.Commit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commit = c
	f.beforeCommitCrit = vc.CriteriaBeforeOpenCommit(c)
	f.coreFlushed = false
}

// ensureCoreComponentsFlushed persists any buffered concepts, descriptions and
// relationships before the first reference set member or identifier batch, so
// rows referencing them never get ahead.
func (f *ImportComponentFactory) ensureCoreComponentsFlushed(ctx context.Context) error {
	f.mu.Lock()
	flushed := f.coreFlushed
	f.mu.Unlock()
	if flushed {
		return nil
	}
	if err := f.conceptBuffer.flushNow(ctx); err != nil {
		return err
	}
	if err := f.descriptionBuffer.flushNow(ctx); err != nil {
		return err
	}
	if err := f.relationshipBuffer.flushNow(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.coreFlushed = true
	f.mu.Unlock()
	return nil
}

// FlushAll persists everything still buffered.
func (f *ImportComponentFactory) FlushAll(ctx context.Context) error {
	if err := f.ensureCoreComponentsFlushed(ctx); err != nil {
		return err
	}
	if err := f.conceptBuffer.flushNow(ctx); err != nil {
		return err
	}
	if err := f.descriptionBuffer.flushNow(ctx); err != nil {
		return err
	}
	if err := f.relationshipBuffer.flushNow(ctx); err != nil {
		return err
	}
	if err := f.identifierBuffer.flushNow(ctx); err != nil {
		return err
	}
	return f.memberBuffer.flushNow(ctx)
}

// Complete flushes the remaining buffers and logs what was dropped.
func (f *ImportComponentFactory) Complete(ctx context.Context) error {
	if err := f.FlushAll(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	skipped := f.skippedStated
	f.mu.Unlock()
	if skipped > 0 {
		log.Info("skipped known-bad stated relationships", "count", skipped)
	}
	return nil
}

// applyEffectiveTime stamps v with its release, unless the import clears
// effective times to produce authoring content.
func (f *ImportComponentFactory) applyEffectiveTime(v domain.Versioned, effectiveTime string) {
	et, ok := ParseEffectiveTime(effectiveTime)
	if !ok {
		return
	}
	f.mu.Lock()
	if et > f.maxEffectiveTime {
		f.maxEffectiveTime = et
	}
	f.mu.Unlock()
	if !f.config.ClearEffectiveTimes {
		domain.Release(v, et)
	}
}

func (f *ImportComponentFactory) NewConceptState(ctx context.Context, conceptID, effectiveTime, active, moduleID, definitionStatusID string) error {
	c := &domain.Concept{ConceptID: conceptID, DefinitionStatusID: definitionStatusID}
	c.Active = active == "1"
	c.ModuleID = moduleID
	f.applyEffectiveTime(c, effectiveTime)
	return f.conceptBuffer.add(ctx, c)
}

func (f *ImportComponentFactory) NewDescriptionState(ctx context.Context, id, effectiveTime, active, moduleID, conceptID, languageCode, typeID, term, caseSignificanceID string) error {
	d := &domain.Description{
		DescriptionID:      id,
		ConceptID:          conceptID,
		LanguageCode:       languageCode,
		TypeID:             typeID,
		Term:               term,
		CaseSignificanceID: caseSignificanceID,
	}
	d.Active = active == "1"
	d.ModuleID = moduleID
	f.applyEffectiveTime(d, effectiveTime)
	return f.descriptionBuffer.add(ctx, d)
}

func (f *ImportComponentFactory) NewRelationshipState(ctx context.Context, id, effectiveTime, active, moduleID, sourceID, destinationID, relationshipGroup, typeID, characteristicTypeID, modifierID string) error {
	if characteristicTypeID == domain.StatedRelationship {
		if _, skip := StatedRelationshipsToSkip[id]; skip {
			f.mu.Lock()
			f.skippedStated++
			f.mu.Unlock()
			return nil
		}
	}
	r := f.relationshipState(id, effectiveTime, active, moduleID, sourceID, relationshipGroup, typeID, characteristicTypeID, modifierID)
	r.DestinationID = destinationID
	return f.relationshipBuffer.add(ctx, r)
}

func (f *ImportComponentFactory) NewConcreteRelationshipState(ctx context.Context, id, effectiveTime, active, moduleID, sourceID, value, relationshipGroup, typeID, characteristicTypeID, modifierID string) error {
	r := f.relationshipState(id, effectiveTime, active, moduleID, sourceID, relationshipGroup, typeID, characteristicTypeID, modifierID)
	r.Value = value
	return f.relationshipBuffer.add(ctx, r)
}

func (f *ImportComponentFactory) relationshipState(id, effectiveTime, active, moduleID, sourceID, relationshipGroup, typeID, characteristicTypeID, modifierID string) *domain.Relationship {
	r := &domain.Relationship{
		RelationshipID:       id,
		SourceID:             sourceID,
		RelationshipGroup:    parseGroup(relationshipGroup),
		TypeID:               typeID,
		CharacteristicTypeID: characteristicTypeID,
		ModifierID:           modifierID,
	}
	r.Active = active == "1"
	r.ModuleID = moduleID
	f.applyEffectiveTime(r, effectiveTime)
	return r
}

func (f *ImportComponentFactory) NewIdentifierState(ctx context.Context, alternateIdentifier, effectiveTime, active, moduleID, identifierSchemeID, referencedComponentID string) error {
	i := &domain.Identifier{
		AlternateIdentifier:   alternateIdentifier,
		IdentifierSchemeID:    identifierSchemeID,
		ReferencedComponentID: referencedComponentID,
	}
	i.Active = active == "1"
	i.ModuleID = moduleID
	f.applyEffectiveTime(i, effectiveTime)
	return f.identifierBuffer.add(ctx, i)
}

func (f *ImportComponentFactory) NewReferenceSetMemberState(ctx context.Context, fieldNames []string, id, effectiveTime, active, moduleID, refsetID, referencedComponentID string, otherValues ...string) error {
	m := &domain.ReferenceSetMember{
		MemberID:              id,
		RefsetID:              refsetID,
		ReferencedComponentID: referencedComponentID,
	}
	m.Active = active == "1"
	m.ModuleID = moduleID
	for i, name := range fieldNames {
		if i < len(otherValues) {
			m.SetAdditionalField(name, otherValues[i])
		}
	}
	f.applyEffectiveTime(m, effectiveTime)
	return f.memberBuffer.add(ctx, m)
}

// flushComponents reconciles a batch against the branch content from before
// the import commit, drops states already present, carries release bookkeeping
// over onto unversioned states, and saves the rest.
func flushComponents[T domain.Versioned](ctx context.Context, f *ImportComponentFactory, typeName string,
	items []T, save func(ctx context.Context, items []T) error) error {

	ids := make([]string, len(items))
	for i, v := range items {
		ids[i] = v.DocID()
	}
	existing := make(map[string]T, len(items))
	query := docstore.Query{
		Criteria: f.beforeCommitCriteria(),
		Query: docstore.Bool{
			Must: []docstore.Clause{docstore.Terms{Field: items[0].IDFieldName(), Values: ids}},
		},
		PageSize: docstore.LargePageSize,
	}
	err := docstore.EachHit(ctx, f.store, typeName, query, func(v T) error {
		existing[v.DocID()] = v
		return nil
	})
	if err != nil {
		return err
	}

	toSave := make([]T, 0, len(items))
	skipped := 0
	for _, v := range items {
		ex, found := existing[v.DocID()]
		if found && f.skipExisting(v, ex) {
			skipped++
			continue
		}
		if f.copyReleaseFields && v.Envelope().EffectiveTime == nil && found && ex.Envelope().Released {
			domain.CopyReleaseDetails(v, ex)
			domain.UpdateEffectiveTime(v)
		}
		toSave = append(toSave, v)
	}
	if skipped > 0 {
		f.mu.Lock()
		f.skippedExisting[typeName] += skipped
		f.mu.Unlock()
		log.Info("skipped components already at this or a later release", "type", typeName, "count", skipped)
	}
	if len(toSave) == 0 {
		return nil
	}
	return save(ctx, toSave)
}

// skipExisting decides whether the state already on the branch supersedes
// the incoming one. An incoming row loses to an existing row at the same or
// later effective time, except that the patch release version may replace its
// own effective time, and the PatchAllReleaseVersion sentinel disables the
// patcher entirely.
func (f *ImportComponentFactory) skipExisting(incoming, existing domain.Versioned) bool {
	if f.moduleFilterActive {
		return false
	}
	existingET := existing.Envelope().EffectiveTime
	incomingET := incoming.Envelope().EffectiveTime
	if existingET == nil || incomingET == nil {
		return false
	}
	if pv := f.config.PatchReleaseVersion; pv != nil {
		if *pv == PatchAllReleaseVersion {
			return false
		}
		if *incomingET == *pv {
			return *existingET > *incomingET
		}
	}
	return *existingET >= *incomingET
}

func parseGroup(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
		n = n*10 + int(s[i]-'0')
	}
	return n
}
