package rf2

import (
	"bytes"
	"context"
	log "log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/blobs"
	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// DefaultJobTTL is how long finished import jobs stay queryable.
const DefaultJobTTL = 12 * time.Hour

// Dependencies bundles what an import needs to reach the rest of the system.
type Dependencies struct {
	Store         docstore.Store
	Branches      vc.BranchService
	Concepts      *content.ConceptService
	Descriptions  *content.DescriptionService
	Relationships *content.RelationshipService
	Identifiers   *content.IdentifierService
	Members       *content.MemberService
	CodeSystems   *content.CodeSystemService
}

// ImportService creates and runs import jobs.
type ImportService struct {
	deps   Dependencies
	jobTTL time.Duration

	mu   sync.Mutex
	jobs map[string]*ImportJob
}

func NewImportService(deps Dependencies) *ImportService {
	return &ImportService{
		deps:   deps,
		jobTTL: DefaultJobTTL,
		jobs:   map[string]*ImportJob{},
	}
}

// CreateJob validates config and registers a new job in the WAITING state.
func (s *ImportService) CreateJob(ctx context.Context, config ImportConfig) (*ImportJob, error) {
	if config.BranchPath == "" {
		return nil, termcore.Errorf(termcore.Validation, "import branch path is required")
	}
	b, err := s.deps.Branches.FindLatest(ctx, config.BranchPath)
	if err != nil {
		return nil, err
	}
	if pv := config.PatchReleaseVersion; pv != nil && *pv != PatchAllReleaseVersion && config.Type != Delta {
		return nil, termcore.Errorf(termcore.Validation, "patching release version %d requires a DELTA import", *pv)
	}
	if config.Type == Full {
		if config.BranchPath != vc.RootPath {
			return nil, termcore.Errorf(termcore.Validation, "a FULL import is only permitted on %s", vc.RootPath)
		}
		hasContent, err := s.deps.Concepts.HasContent(ctx, vc.CriteriaOn(b))
		if err != nil {
			return nil, err
		}
		if hasContent {
			return nil, termcore.Errorf(termcore.Validation, "a FULL import is only permitted on an empty branch")
		}
	}
	if config.CreateCodeSystemVersion {
		cs, err := s.deps.CodeSystems.FindByBranchPath(ctx, config.BranchPath)
		if err != nil {
			return nil, err
		}
		if cs == nil {
			return nil, termcore.Errorf(termcore.Validation, "no code system exists on branch %s to version", config.BranchPath)
		}
	}
	job := &ImportJob{
		ID:      termcore.NewUUID().String(),
		Config:  config,
		Created: time.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireJobsLocked()
	s.jobs[job.ID] = job
	return job, nil
}

func (s *ImportService) expireJobsLocked() {
	cutoff := time.Now().Add(-s.jobTTL)
	for id, job := range s.jobs {
		status := job.Status()
		if job.Created.Before(cutoff) && (status == Completed || status == Failed) {
			delete(s.jobs, id)
		}
	}
}

// GetImportJobOrThrow returns the job with the given ID.
func (s *ImportService) GetImportJobOrThrow(importID string) (*ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[importID]
	if !ok {
		return nil, termcore.Errorf(termcore.Validation, "import %s not found", importID)
	}
	return job, nil
}

// ImportFiles runs the import job against the given release files. The
// content lands in one commit, or one commit per release for FULL imports.
func (s *ImportService) ImportFiles(ctx context.Context, importID string, files *ReleaseFiles) error {
	job, err := s.GetImportJobOrThrow(importID)
	if err != nil {
		return err
	}
	if job.Status() != Waiting {
		return termcore.Errorf(termcore.RuntimeState, "import %s is %s, not WAITING", importID, job.Status())
	}
	job.setStatus(Running)
	if err := s.runImport(ctx, job, files); err != nil {
		job.setStatus(Failed)
		return err
	}
	job.setStatus(Completed)
	return nil
}

// ImportFilesAsync runs the import in the background. The job status carries
// the outcome; errors are also logged.
func (s *ImportService) ImportFilesAsync(ctx context.Context, importID string, files *ReleaseFiles) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.ImportFiles(ctx, importID, files); err != nil {
			log.Error("import failed", "importId", importID, "error", err)
		}
	}()
}

func (s *ImportService) runImport(ctx context.Context, job *ImportJob, files *ReleaseFiles) error {
	config := job.Config
	path := config.BranchPath
	exists, err := s.deps.Branches.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return termcore.Errorf(termcore.Validation, "branch %s does not exist", path)
	}

	if err := s.setImportMetadata(ctx, config); err != nil {
		return err
	}
	defer func() {
		if err := s.clearImportMetadata(ctx, path); err != nil {
			log.Error("failed clearing import metadata", "path", path, "error", err)
		}
	}()

	// Patch imports need to see previously released rows, so the module
	// effective-time filter only applies to plain snapshots.
	profile := LoadingProfile{ModuleIDs: config.ModuleIDs}
	if config.Type == Snapshot && config.PatchReleaseVersion == nil {
		profile.ModuleMaxEffectiveTimes, err = s.moduleMaxEffectiveTimes(ctx, path, config.ModuleIDs)
		if err != nil {
			return err
		}
	}
	reader := NewReleaseReader(profile)

	commit, err := s.deps.Branches.OpenCommit(ctx, path, vc.ContentCommit, "importing "+config.Type.String())
	if err != nil {
		return err
	}
	factory := NewImportComponentFactory(config, commit, s.deps, len(profile.ModuleMaxEffectiveTimes) > 0)

	if config.Type == Full {
		return s.runFullImport(ctx, config, commit, factory, reader, files)
	}

	// An unmarked Close rolls the commit back on any failure below.
	defer commit.Close(ctx)
	if err := reader.Load(ctx, files, factory); err != nil {
		return err
	}
	if err := factory.Complete(ctx); err != nil {
		return err
	}
	commit.MarkSuccessful()
	if err := commit.Close(ctx); err != nil {
		return err
	}
	if config.CreateCodeSystemVersion {
		if et := factory.MaxEffectiveTime(); et > 0 {
			return s.deps.CodeSystems.CreateVersionIfFoundOnPath(ctx, path, et, config.InternalRelease)
		}
	}
	return nil
}

// runFullImport commits each release of a FULL archive on its own, so the
// branch history mirrors the release history.
func (s *ImportService) runFullImport(ctx context.Context, config ImportConfig, first *vc.Commit,
	factory *ImportComponentFactory, reader *ReleaseReader, files *ReleaseFiles) error {

	path := config.BranchPath
	commit := first
	defer func() {
		if commit != nil {
			commit.Close(ctx)
		}
	}()

	previousRelease := 0
	completeCurrent := func(ctx context.Context) error {
		if err := factory.FlushAll(ctx); err != nil {
			return err
		}
		commit.MarkSuccessful()
		if err := commit.Close(ctx); err != nil {
			return err
		}
		commit = nil
		if config.CreateCodeSystemVersion && previousRelease > 0 {
			return s.deps.CodeSystems.CreateVersionIfFoundOnPath(ctx, path, previousRelease, config.InternalRelease)
		}
		return nil
	}

	err := reader.LoadFull(ctx, files, factory, func(ctx context.Context, effectiveTime int) error {
		if previousRelease > 0 {
			if err := completeCurrent(ctx); err != nil {
				return err
			}
			next, err := s.deps.Branches.OpenCommit(ctx, path, vc.ContentCommit, "importing FULL release")
			if err != nil {
				return err
			}
			commit = next
			factory.SwitchCommit(next)
		}
		log.Info("importing release", "path", path, "effectiveTime", effectiveTime)
		previousRelease = effectiveTime
		return nil
	})
	if err != nil {
		return err
	}
	if err := factory.Complete(ctx); err != nil {
		return err
	}
	return completeCurrent(ctx)
}

// setImportMetadata flags the branch for the duration of the import. The
// flags live on the stored branch rather than the commit because a FULL
// import spans several commits and listeners read them on each.
func (s *ImportService) setImportMetadata(ctx context.Context, config ImportConfig) error {
	b, err := s.deps.Branches.FindLatest(ctx, config.BranchPath)
	if err != nil {
		return err
	}
	md := b.Metadata
	if md == nil {
		md = vc.NewMetadata()
	}
	internal := md.MapOrCreate(vc.InternalMetadataKey)
	internal[vc.ImportTypeKey] = config.Type.String()
	if config.Type == Full || config.CreateCodeSystemVersion {
		internal[vc.ImportingCodeSystemVersionKey] = "true"
	}
	// Imports onto plain authoring branches are flagged as batch changes;
	// a code system import is its own kind of event.
	cs, err := s.deps.CodeSystems.FindByBranchPath(ctx, config.BranchPath)
	if err != nil {
		return err
	}
	if cs == nil {
		md.MapOrCreate(vc.AuthorFlagsMetadataKey)[vc.BatchChangeKey] = "true"
	}
	return s.deps.Branches.UpdateMetadata(ctx, config.BranchPath, md)
}

func (s *ImportService) clearImportMetadata(ctx context.Context, path string) error {
	b, err := s.deps.Branches.FindLatest(ctx, path)
	if err != nil {
		return err
	}
	if b.Metadata == nil {
		return nil
	}
	internal := b.Metadata.MapOrCreate(vc.InternalMetadataKey)
	delete(internal, vc.ImportTypeKey)
	delete(internal, vc.ImportingCodeSystemVersionKey)
	delete(b.Metadata.MapOrCreate(vc.AuthorFlagsMetadataKey), vc.BatchChangeKey)
	return s.deps.Branches.UpdateMetadata(ctx, path, b.Metadata)
}

// moduleMaxEffectiveTimes finds the latest effective time already on the
// branch for each module, so a delta only loads newer rows.
func (s *ImportService) moduleMaxEffectiveTimes(ctx context.Context, path string, moduleIDs []string) (map[string]int, error) {
	b, err := s.deps.Branches.FindLatest(ctx, path)
	if err != nil {
		return nil, err
	}
	maxTimes := map[string]int{}
	types := []string{
		domain.TypeConcept, domain.TypeDescription, domain.TypeRelationship,
		domain.TypeIdentifier, domain.TypeReferenceSetMember,
	}
	for _, typeName := range types {
		query := docstore.Query{
			Criteria:     vc.CriteriaOn(b),
			SourceFields: []string{domain.FieldModuleID, domain.FieldEffectiveTime},
			PageSize:     docstore.LargePageSize,
		}
		if len(moduleIDs) > 0 {
			query.Query = docstore.Bool{
				Must: []docstore.Clause{docstore.Terms{Field: domain.FieldModuleID, Values: moduleIDs}},
			}
		}
		err := docstore.EachHit(ctx, s.deps.Store, typeName, query, func(d docstore.Document) error {
			v, ok := d.(domain.Versioned)
			if !ok {
				return nil
			}
			env := v.Envelope()
			if et, set := env.EffectiveTimeValue(); set && et > maxTimes[env.ModuleID] {
				maxTimes[env.ModuleID] = et
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return maxTimes, nil
}

// Blob key layout for staged release packages: one directory per content
// type below the common prefix.
var blobCategories = []struct {
	dir    string
	assign func(files *ReleaseFiles, nr NamedReader)
}{
	{"concept/", func(f *ReleaseFiles, nr NamedReader) { f.ConceptFiles = append(f.ConceptFiles, nr) }},
	{"description/", func(f *ReleaseFiles, nr NamedReader) { f.DescriptionFiles = append(f.DescriptionFiles, nr) }},
	{"relationship/", func(f *ReleaseFiles, nr NamedReader) { f.RelationshipFiles = append(f.RelationshipFiles, nr) }},
	{"relationship-concrete/", func(f *ReleaseFiles, nr NamedReader) {
		f.ConcreteRelationshipFiles = append(f.ConcreteRelationshipFiles, nr)
	}},
	{"identifier/", func(f *ReleaseFiles, nr NamedReader) { f.IdentifierFiles = append(f.IdentifierFiles, nr) }},
	{"refset/", func(f *ReleaseFiles, nr NamedReader) { f.RefsetFiles = append(f.RefsetFiles, nr) }},
}

// ImportFromBlobs fetches a staged release package from blob storage and runs
// the import. Keys below prefix sort into content types by directory name;
// unrecognised keys are logged and ignored. With deleteAfter the staged blobs
// are removed once the import succeeds.
func (s *ImportService) ImportFromBlobs(ctx context.Context, importID string, store blobs.Store, bucketName, prefix string, deleteAfter bool) error {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	keys, err := store.List(ctx, bucketName, prefix)
	if err != nil {
		return err
	}
	files := &ReleaseFiles{}
	staged := 0
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		matched := false
		for _, cat := range blobCategories {
			if !strings.HasPrefix(rel, cat.dir) {
				continue
			}
			data, err := store.Fetch(ctx, bucketName, key)
			if err != nil {
				return err
			}
			cat.assign(files, NamedReader{Name: key, Reader: bytes.NewReader(data)})
			staged++
			matched = true
			break
		}
		if !matched {
			log.Warn("ignoring blob outside release layout", "bucket", bucketName, "key", key)
		}
	}
	if staged == 0 {
		return termcore.Errorf(termcore.Validation, "no release files found in bucket %s under %s", bucketName, prefix)
	}
	if err := s.ImportFiles(ctx, importID, files); err != nil {
		return err
	}
	if deleteAfter {
		return store.Remove(ctx, bucketName, keys...)
	}
	return nil
}

// ImportLocalFiles runs an import from a release directory on disk, laid out
// the same way as a staged blob package.
func (s *ImportService) ImportLocalFiles(ctx context.Context, importID string, dir string) error {
	store := blobs.NewFileStore(filepath.Dir(dir))
	return s.ImportFromBlobs(ctx, importID, store, filepath.Base(dir), "", false)
}
