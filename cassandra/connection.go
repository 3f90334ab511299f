// Package cassandra is the durable implementation of the version control
// substrate: branches, component rows, tombstones and the code system
// registry live in Cassandra tables, with Redis caching the hot branch reads.
package cassandra

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
)

// Config contains configuration for connecting to a Cassandra cluster and
// the terminology keyspace.
type Config struct {
	// ClusterHosts lists contact points for the Cassandra cluster.
	ClusterHosts []string
	// Keyspace is the keyspace used for terminology tables.
	Keyspace string
	// Consistency is the default consistency level for queries.
	Consistency gocql.Consistency
	// ConnectionTimeout is the session connection timeout.
	ConnectionTimeout time.Duration
	// Authenticator is used when the cluster requires authentication.
	Authenticator gocql.Authenticator
	// ReplicationClause defines the keyspace replication (e.g., SimpleStrategy).
	ReplicationClause string

	// ConsistencyBook allows overriding per-API consistency levels.
	ConsistencyBook ConsistencyBook
}

// ConsistencyBook enumerates per-API consistency levels used by this package.
type ConsistencyBook struct {
	ComponentGet    gocql.Consistency
	ComponentWrite  gocql.Consistency
	BranchGet       gocql.Consistency
	BranchWrite     gocql.Consistency
	CodeSystemGet   gocql.Consistency
	CodeSystemWrite gocql.Consistency
}

// Connection wraps a Cassandra session and its configuration.
type Connection struct {
	Session *gocql.Session
	Config
}

var connection *Connection
var mux sync.Mutex

// IsConnectionInstantiated reports whether a global Connection has been created.
func IsConnectionInstantiated() bool {
	return connection != nil
}

// OpenConnection returns the existing global Connection or opens a new one
// using the provided config, creating the keyspace and tables as needed.
func OpenConnection(config Config) (*Connection, error) {
	if connection != nil {
		return connection, nil
	}
	mux.Lock()
	defer mux.Unlock()

	if connection != nil {
		return connection, nil
	}
	if config.Keyspace == "" {
		// default keyspace
		config.Keyspace = "termcore"
	}
	if config.Consistency == gocql.Any {
		// Defaults to LocalQuorum consistency. You should set it to an appropriate level.
		config.Consistency = gocql.LocalQuorum
	}
	cluster := gocql.NewCluster(config.ClusterHosts...)
	cluster.Consistency = config.Consistency
	if config.ReplicationClause == "" {
		// Specify an appropriate replication feature.
		config.ReplicationClause = "{'class':'SimpleStrategy', 'replication_factor':1}"
	}
	if config.ConnectionTimeout > 0 {
		cluster.ConnectTimeout = config.ConnectionTimeout
	}
	if config.Authenticator != nil {
		cluster.Authenticator = config.Authenticator
		// Clear the authenticator, we don't need to keep it hanging around.
		config.Authenticator = nil
	}
	var c = Connection{
		Config: config,
	}
	s, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	if err := s.Query(fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = %s;", config.Keyspace, config.ReplicationClause)).Exec(); err != nil {
		return nil, err
	}
	tables := []string{
		"CREATE TABLE IF NOT EXISTS %s.component (path text, type text, internal_id text, doc_id text, start_tp bigint, end_tp bigint, doc text, PRIMARY KEY((path, type), internal_id));",
		"CREATE INDEX IF NOT EXISTS component_internal_idx ON %s.component (internal_id);",
		"CREATE TABLE IF NOT EXISTS %s.tombstone (path text, type text, doc_id text, tp bigint, PRIMARY KEY((path, type), doc_id));",
		"CREATE TABLE IF NOT EXISTS %s.replaced_row (path text, type text, internal_id text, tp bigint, PRIMARY KEY((path, type), internal_id));",
		"CREATE TABLE IF NOT EXISTS %s.branch (path text PRIMARY KEY, base bigint, head bigint, locked boolean, lock_meta text, metadata text);",
		"CREATE TABLE IF NOT EXISTS %s.code_system (short_name text PRIMARY KEY, doc text);",
		"CREATE TABLE IF NOT EXISTS %s.code_system_version (short_name text, effective_date int, doc text, PRIMARY KEY(short_name, effective_date));",
	}
	for _, ddl := range tables {
		if err := s.Query(fmt.Sprintf(ddl, config.Keyspace)).Exec(); err != nil {
			return nil, err
		}
	}

	c.Session = s
	connection = &c
	return connection, nil
}

// CloseConnection closes and clears the global connection, if it exists.
func CloseConnection() {
	if connection != nil {
		mux.Lock()
		defer mux.Unlock()
		if connection == nil {
			return
		}
		connection.Session.Close()
		connection = nil
	}
}
