package content

import (
	"context"
	log "log/slog"
	"strconv"
	"time"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// CodeSystemRegistry persists code systems and their versions. Implemented by
// the memvc and cassandra stores.
type CodeSystemRegistry interface {
	SaveCodeSystem(ctx context.Context, cs *domain.CodeSystem) error
	AllCodeSystems(ctx context.Context) ([]*domain.CodeSystem, error)
	SaveCodeSystemVersion(ctx context.Context, v *domain.CodeSystemVersion) error
	AllCodeSystemVersions(ctx context.Context) ([]*domain.CodeSystemVersion, error)
}

type CodeSystemService struct {
	registry CodeSystemRegistry
}

func NewCodeSystemService(registry CodeSystemRegistry) *CodeSystemService {
	return &CodeSystemService{registry: registry}
}

// Create registers a new code system rooted at its branch path.
func (s *CodeSystemService) Create(ctx context.Context, cs *domain.CodeSystem) error {
	if cs.ShortName == "" || cs.BranchPath == "" {
		return termcore.Errorf(termcore.Validation, "code system short name and branch path are required")
	}
	existing, err := s.registry.AllCodeSystems(ctx)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ShortName == cs.ShortName {
			return termcore.Errorf(termcore.Validation, "code system %s already exists", cs.ShortName)
		}
		if e.BranchPath == cs.BranchPath {
			return termcore.Errorf(termcore.Validation, "branch %s already roots code system %s", cs.BranchPath, e.ShortName)
		}
	}
	return s.registry.SaveCodeSystem(ctx, cs)
}

func (s *CodeSystemService) FindAll(ctx context.Context) ([]*domain.CodeSystem, error) {
	return s.registry.AllCodeSystems(ctx)
}

// FindByBranchPath returns the code system rooted exactly at path, or nil.
func (s *CodeSystemService) FindByBranchPath(ctx context.Context, path string) (*domain.CodeSystem, error) {
	all, err := s.registry.AllCodeSystems(ctx)
	if err != nil {
		return nil, err
	}
	for _, cs := range all {
		if cs.BranchPath == path {
			return cs, nil
		}
	}
	return nil, nil
}

// FindClosestUsingAnyBranch walks up the branch tree from path and returns
// the first code system found, or nil.
func (s *CodeSystemService) FindClosestUsingAnyBranch(ctx context.Context, path string) (*domain.CodeSystem, error) {
	for p := path; p != ""; p = vc.ParentPath(p) {
		cs, err := s.FindByBranchPath(ctx, p)
		if err != nil {
			return nil, err
		}
		if cs != nil {
			return cs, nil
		}
	}
	return nil, nil
}

// CreateVersionIfFoundOnPath records a release of the code system rooted at
// path. A missing code system is logged and skipped, not an error; imports
// onto plain project branches are routine.
func (s *CodeSystemService) CreateVersionIfFoundOnPath(ctx context.Context, path string, effectiveDate int, internalRelease bool) error {
	cs, err := s.FindByBranchPath(ctx, path)
	if err != nil {
		return err
	}
	if cs == nil {
		log.Warn("no code system found on branch, skipping version creation", "path", path, "effectiveDate", effectiveDate)
		return nil
	}
	versions, err := s.registry.AllCodeSystemVersions(ctx)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if v.ShortName == cs.ShortName && v.EffectiveDate == effectiveDate {
			log.Info("code system version already exists", "shortName", cs.ShortName, "effectiveDate", effectiveDate)
			return nil
		}
	}
	return s.registry.SaveCodeSystemVersion(ctx, &domain.CodeSystemVersion{
		ShortName:        cs.ShortName,
		ParentBranchPath: cs.BranchPath,
		EffectiveDate:    effectiveDate,
		Version:          strconv.Itoa(effectiveDate),
		InternalRelease:  internalRelease,
		ImportDate:       time.Now().UnixMilli(),
	})
}

// FindVersions returns the recorded versions of one code system.
func (s *CodeSystemService) FindVersions(ctx context.Context, shortName string) ([]*domain.CodeSystemVersion, error) {
	all, err := s.registry.AllCodeSystemVersions(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.CodeSystemVersion
	for _, v := range all {
		if v.ShortName == shortName {
			out = append(out, v)
		}
	}
	return out, nil
}
