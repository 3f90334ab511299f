// Package inredc wires a terminology core on Cassandra with Redis caching,
// the durable deployment flavour.
package inredc

import (
	"context"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/cassandra"
	"github.com/clinterm/termcore/content"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/integrity"
	"github.com/clinterm/termcore/mrcm"
	"github.com/clinterm/termcore/redis"
	"github.com/clinterm/termcore/rf2"
	"github.com/clinterm/termcore/vc"
)

// System is a fully wired terminology core on durable storage.
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

	// Store is the backing Cassandra store, exposed for rebases and
	// administrative rollbacks.
	Store *cassandra.Store

	closeCache func() error
}

// NewSystem opens the Cassandra and Redis connections, creates the root
// branch when the keyspace is fresh, wires the services and registers the
// commit listeners.
func NewSystem(ctx context.Context, cassandraConfig cassandra.Config, redisOptions redis.Options) (*System, error) {
	conn, err := cassandra.OpenConnection(cassandraConfig)
	if err != nil {
		return nil, err
	}
	cache := redis.NewConnectionClient(redisOptions)
	store, err := cassandra.NewStore(conn, cache)
	if err != nil {
		cache.Close()
		return nil, err
	}
	if err := store.EnsureRoot(ctx); err != nil {
		cache.Close()
		return nil, err
	}

	s := &System{
		Branches:   store,
		Docs:       store,
		Cache:      cache,
		Store:      store,
		closeCache: cache.Close,
	}
	s.Concepts = content.NewConceptService(store)
	s.Descriptions = content.NewDescriptionService(store, cache)
	s.Relationships = content.NewRelationshipService(store)
	s.Identifiers = content.NewIdentifierService(store)
	s.Members = content.NewMemberService(store)
	s.SemanticIndex = content.NewSemanticIndexService(store)
	s.CodeSystems = content.NewCodeSystemService(store)

	s.Imports = rf2.NewImportService(rf2.Dependencies{
		Store:         store,
		Branches:      store,
		Concepts:      s.Concepts,
		Descriptions:  s.Descriptions,
		Relationships: s.Relationships,
		Identifiers:   s.Identifiers,
		Members:       s.Members,
		CodeSystems:   s.CodeSystems,
	})
	s.Integrity = integrity.NewService(store, store, s.Concepts, s.Descriptions, s.Members, s.Relationships, s.CodeSystems)
	s.MRCM = mrcm.NewUpdateService(store, store, s.Members, s.Descriptions, mrcm.NewGenerator())

	store.AddCommitListener(s.Integrity)
	store.AddCommitListener(s.MRCM)
	return s, nil
}

// NewSystemFromOptions builds the Cassandra and Redis configuration from the
// shared system options.
func NewSystemFromOptions(ctx context.Context, clusterHosts []string, opts termcore.SystemOptions) (*System, error) {
	config := cassandra.Config{ClusterHosts: clusterHosts, Keyspace: opts.Keyspace}
	redisOptions := redis.DefaultOptions()
	if opts.RedisConfig != nil {
		redisOptions = redis.OptionsFrom(*opts.RedisConfig)
	}
	return NewSystem(ctx, config, redisOptions)
}

// Close releases the cache connection. The shared Cassandra connection stays
// open for other users; call cassandra.CloseConnection on shutdown.
func (s *System) Close() error {
	if s.closeCache != nil {
		return s.closeCache()
	}
	return nil
}
