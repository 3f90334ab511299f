// Package inmemory wires a complete terminology core on the in-memory store.
// It backs tests and standalone single-process deployments; the inredc
// package is the durable Cassandra plus Redis equivalent.
package inmemory

import (
	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/integrity"
	"github.com/clinterm/termcore/memvc"
	"github.com/clinterm/termcore/mrcm"
	"github.com/clinterm/termcore/redis"
	"github.com/clinterm/termcore/rf2"
	"github.com/clinterm/termcore/vc"
)

// System is a fully wired terminology core instance.
type System struct {
	Branches vc.BranchService
	Docs     docstore.Store
	Cache    termcore.Cache

	Concepts      *content.ConceptService
	Descriptions  *content.DescriptionService
	Relationships *content.RelationshipService
	Identifiers   *content.IdentifierService
	Members       *content.MemberService
	SemanticIndex *content.SemanticIndexService
	CodeSystems   *content.CodeSystemService

	Imports   *rf2.ImportService
	Integrity *integrity.Service
	MRCM      *mrcm.UpdateService

	// Store is the backing memvc store, exposed for tests that need to
	// rebase branches or roll back commits directly.
	Store *memvc.Store
}

// NewSystem creates the store, the component services and the import,
// integrity and concept model machinery, and registers the commit listeners.
func NewSystem() *System {
	store := memvc.NewStore()
	cache := redis.NewMockClient()
	return newSystem(store, store, store, cache)
}

// NewSystemWithCache is NewSystem with a caller supplied cache, for
// deployments pointing the in-memory store at a real Redis.
func NewSystemWithCache(cache termcore.Cache) *System {
	store := memvc.NewStore()
	return newSystem(store, store, store, cache)
}

// NewSystemFromOptions honours the cache selection of the shared system
// options; everything else stays in process memory.
func NewSystemFromOptions(opts termcore.SystemOptions) *System {
	if opts.CacheType == termcore.Redis && opts.RedisConfig != nil {
		return NewSystemWithCache(redis.NewConnectionClient(redis.OptionsFrom(*opts.RedisConfig)))
	}
	return NewSystem()
}

func newSystem(branches vc.BranchService, docs docstore.Store, registry content.CodeSystemRegistry, cache termcore.Cache) *System {
	s := &System{
		Branches: branches,
		Docs:     docs,
		Cache:    cache,
	}
	if ms, ok := branches.(*memvc.Store); ok {
		s.Store = ms
	}
	s.Concepts = content.NewConceptService(docs)
	s.Descriptions = content.NewDescriptionService(docs, cache)
	s.Relationships = content.NewRelationshipService(docs)
	s.Identifiers = content.NewIdentifierService(docs)
	s.Members = content.NewMemberService(docs)
	s.SemanticIndex = content.NewSemanticIndexService(docs)
	s.CodeSystems = content.NewCodeSystemService(registry)

	s.Imports = rf2.NewImportService(rf2.Dependencies{
		Store:         docs,
		Branches:      branches,
		Concepts:      s.Concepts,
		Descriptions:  s.Descriptions,
		Relationships: s.Relationships,
		Identifiers:   s.Identifiers,
		Members:       s.Members,
		CodeSystems:   s.CodeSystems,
	})
	s.Integrity = integrity.NewService(docs, branches, s.Concepts, s.Descriptions, s.Members, s.Relationships, s.CodeSystems)
	s.MRCM = mrcm.NewUpdateService(docs, branches, s.Members, s.Descriptions, mrcm.NewGenerator())

	branches.AddCommitListener(s.Integrity)
	branches.AddCommitListener(s.MRCM)
	return s
}
