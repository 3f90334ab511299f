package cassandra

import (
	"context"
	"fmt"
	"sync"

	"github.com/gocql/gocql"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

// componentTypes are the document types held in the component table, for
// operations that sweep every type.
var componentTypes = []string{
	domain.TypeConcept, domain.TypeDescription, domain.TypeRelationship,
	domain.TypeIdentifier, domain.TypeReferenceSetMember, domain.TypeQueryConcept,
}

// Store keeps branches and document rows in Cassandra. It implements
// vc.BranchService, vc.CommitBackend, docstore.Store and the code system
// registry, mirroring the in-memory store.
type Store struct {
	conn      *Connection
	cache     termcore.Cache
	marshaler termcore.Marshaler

	mu        sync.Mutex
	listeners []vc.CommitListener
}

// NewStore returns a store on the given connection. The cache holds hot
// branch reads and may be nil.
func NewStore(conn *Connection, cache termcore.Cache) (*Store, error) {
	if conn == nil {
		return nil, fmt.Errorf("conn parameter can't be nil, 'call OpenConnection(config) to open it")
	}
	return &Store{conn: conn, cache: cache, marshaler: termcore.NewMarshaler()}, nil
}

func (s *Store) query(ctx context.Context, level gocql.Consistency, stmt string, values ...any) *gocql.Query {
	qry := s.conn.Session.Query(fmt.Sprintf(stmt, s.conn.Config.Keyspace), values...).WithContext(ctx)
	if level > gocql.Any {
		qry.Consistency(level)
	}
	return qry
}

type sliceCursor struct {
	docs []docstore.Document
	pos  int
}

func (c *sliceCursor) Next() (docstore.Document, bool, error) {
	if c.pos >= len(c.docs) {
		return nil, false, nil
	}
	d := c.docs[c.pos]
	c.pos++
	return d, true, nil
}

func (c *sliceCursor) Close() error { return nil }

func (s *Store) SearchForStream(ctx context.Context, typeName string, q docstore.Query) (docstore.Cursor, error) {
	visible, err := s.resolveView(ctx, typeName, q.Criteria)
	if err != nil {
		return nil, err
	}
	hits := make([]docstore.Document, 0, len(visible))
	for _, d := range visible {
		if q.Query.Match(d) {
			hits = append(hits, d)
		}
	}
	return &sliceCursor{docs: hits}, nil
}

// resolveView loads the row versions of every path level the criteria can
// see and applies the shared visibility rules.
func (s *Store) resolveView(ctx context.Context, typeName string, crit vc.Criteria) ([]docstore.Document, error) {
	paths := []string{crit.Path}
	branches := map[string]*vc.Branch{}
	if !crit.UnpromotedOnly && !crit.OpenCommitOnly {
		for p := crit.Path; p != ""; p = vc.ParentPath(p) {
			b, found, err := s.findBranch(ctx, p)
			if err != nil {
				return nil, err
			}
			if !found {
				break
			}
			branches[p] = b
			if p != crit.Path {
				paths = append(paths, p)
			}
		}
	}

	var rows []docstore.Document
	deleted := map[string]map[string]int64{}
	replaced := map[string]map[string]int64{}
	for _, p := range paths {
		pathRows, err := s.loadRows(ctx, p, typeName)
		if err != nil {
			return nil, err
		}
		rows = append(rows, pathRows...)
		deleted[p], err = s.loadTimepoints(ctx, "SELECT doc_id, tp FROM %s.tombstone WHERE path = ? AND type = ?;", p, typeName)
		if err != nil {
			return nil, err
		}
		replaced[p], err = s.loadTimepoints(ctx, "SELECT internal_id, tp FROM %s.replaced_row WHERE path = ? AND type = ?;", p, typeName)
		if err != nil {
			return nil, err
		}
	}

	return docstore.ResolveView(rows, typeName, crit,
		func(path string) (*vc.Branch, bool) {
			b, ok := branches[path]
			return b, ok
		},
		func(path, tn, id string) (int64, bool) {
			tp, ok := deleted[path][id]
			return tp, ok
		},
		func(path, tn, internalID string) (int64, bool) {
			tp, ok := replaced[path][internalID]
			return tp, ok
		}), nil
}

func (s *Store) loadRows(ctx context.Context, path, typeName string) ([]docstore.Document, error) {
	iter := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentGet,
		"SELECT internal_id, doc_id, start_tp, end_tp, doc FROM %s.component WHERE path = ? AND type = ?;",
		path, typeName).Iter()
	var rows []docstore.Document
	var internalID, docID, doc string
	var start, end int64
	for iter.Scan(&internalID, &docID, &start, &end, &doc) {
		d, ok := domain.NewDocument(typeName)
		if !ok {
			break
		}
		if err := s.marshaler.Unmarshal([]byte(doc), d); err != nil {
			return nil, termcore.Errorf(termcore.Conversion, "failed decoding %s row %s, details: %w", typeName, internalID, err)
		}
		m := d.Meta()
		m.InternalID = internalID
		m.Path = path
		m.Start = start
		m.End = end
		rows = append(rows, d)
	}
	if err := iter.Close(); err != nil {
		return nil, termcore.Errorf(termcore.TransientStore, "failed loading %s rows on %s, details: %w", typeName, path, err)
	}
	return rows, nil
}

func (s *Store) loadTimepoints(ctx context.Context, stmt, path, typeName string) (map[string]int64, error) {
	iter := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentGet, stmt, path, typeName).Iter()
	out := map[string]int64{}
	var key string
	var tp int64
	for iter.Scan(&key, &tp) {
		out[key] = tp
	}
	if err := iter.Close(); err != nil {
		return nil, termcore.Errorf(termcore.TransientStore, "failed loading %s timepoints on %s, details: %w", typeName, path, err)
	}
	return out, nil
}

func (s *Store) insertRow(ctx context.Context, typeName string, d docstore.Document) error {
	doc, err := s.marshaler.Marshal(d)
	if err != nil {
		return termcore.Errorf(termcore.Conversion, "failed encoding %s %s, details: %w", typeName, d.DocID(), err)
	}
	m := d.Meta()
	return s.query(ctx, s.conn.Config.ConsistencyBook.ComponentWrite,
		"INSERT INTO %s.component (path, type, internal_id, doc_id, start_tp, end_tp, doc) VALUES(?,?,?,?,?,?,?);",
		m.Path, typeName, m.InternalID, d.DocID(), m.Start, m.End, string(doc)).Exec()
}

func (s *Store) SaveBatch(ctx context.Context, c *vc.Commit, typeName string, docs []docstore.Document) error {
	if len(docs) == 0 {
		return nil
	}
	current := map[string]docstore.Document{}
	visible, err := s.resolveView(ctx, typeName, vc.CriteriaIncludingOpenCommit(c))
	if err != nil {
		return err
	}
	for _, d := range visible {
		current[d.DocID()] = d
	}

	path := c.Branch().Path
	tp := c.Timepoint()
	for _, doc := range docs {
		id := doc.DocID()
		existing := current[id]
		clone := doc.CloneDocument()
		meta := clone.Meta()
		meta.Path = path
		meta.Start = tp
		meta.End = 0

		if existing != nil && existing.Meta().Path == path && existing.Meta().Start == tp {
			// Second save within the same commit replaces the row in place,
			// keeping one row per component per timepoint.
			meta.InternalID = existing.Meta().InternalID
			if err := s.insertRow(ctx, typeName, clone); err != nil {
				return err
			}
			current[id] = clone
			continue
		}
		if existing != nil {
			if existing.Meta().Path == path {
				if err := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentWrite,
					"UPDATE %s.component SET end_tp = ? WHERE path = ? AND type = ? AND internal_id = ?;",
					tp, path, typeName, existing.Meta().InternalID).Exec(); err != nil {
					return err
				}
			} else {
				if err := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentWrite,
					"INSERT INTO %s.replaced_row (path, type, internal_id, tp) VALUES(?,?,?,?);",
					path, typeName, existing.Meta().InternalID, tp).Exec(); err != nil {
					return err
				}
			}
		}
		meta.InternalID = termcore.NewUUID().String()
		if err := s.insertRow(ctx, typeName, clone); err != nil {
			return err
		}
		current[id] = clone
	}
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, c *vc.Commit, typeName string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	current := map[string]docstore.Document{}
	visible, err := s.resolveView(ctx, typeName, vc.CriteriaIncludingOpenCommit(c))
	if err != nil {
		return err
	}
	for _, d := range visible {
		current[d.DocID()] = d
	}

	path := c.Branch().Path
	tp := c.Timepoint()
	for _, id := range ids {
		existing := current[id]
		if existing == nil {
			continue
		}
		if existing.Meta().Path == path {
			if err := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentWrite,
				"UPDATE %s.component SET end_tp = ? WHERE path = ? AND type = ? AND internal_id = ?;",
				tp, path, typeName, existing.Meta().InternalID).Exec(); err != nil {
				return err
			}
		} else {
			// Keep the final version locally so deletion-aware reads can
			// still return it.
			clone := existing.CloneDocument()
			meta := clone.Meta()
			meta.InternalID = termcore.NewUUID().String()
			meta.Path = path
			meta.Start = tp
			meta.End = tp
			if err := s.insertRow(ctx, typeName, clone); err != nil {
				return err
			}
		}
		if err := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentWrite,
			"INSERT INTO %s.tombstone (path, type, doc_id, tp) VALUES(?,?,?,?);",
			path, typeName, id, tp).Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RewriteAdditionalFields(ctx context.Context, typeName string, rewrites []docstore.FieldRewrite) error {
	for _, rw := range rewrites {
		iter := s.query(ctx, s.conn.Config.ConsistencyBook.ComponentGet,
			"SELECT path, type, doc_id, start_tp, end_tp, doc FROM %s.component WHERE internal_id = ?;",
			rw.InternalID).Iter()
		var path, rowType, docID, doc string
		var start, end int64
		found := false
		for iter.Scan(&path, &rowType, &docID, &start, &end, &doc) {
			if rowType == typeName {
				found = true
				break
			}
		}
		if err := iter.Close(); err != nil {
			return termcore.Errorf(termcore.TransientStore, "failed locating row %s of type %s, details: %w", rw.InternalID, typeName, err)
		}
		if !found {
			return termcore.Errorf(termcore.Validation, "row %s of type %s not found", rw.InternalID, typeName)
		}
		d, ok := domain.NewDocument(typeName)
		if !ok {
			return termcore.Errorf(termcore.Validation, "unknown document type %s", typeName)
		}
		if err := s.marshaler.Unmarshal([]byte(doc), d); err != nil {
			return termcore.Errorf(termcore.Conversion, "failed decoding %s row %s, details: %w", typeName, rw.InternalID, err)
		}
		holder, ok := d.(docstore.AdditionalFieldsHolder)
		if !ok {
			return termcore.Errorf(termcore.RuntimeState, "type %s does not carry additional fields", typeName)
		}
		for name, value := range rw.Fields {
			holder.SetAdditionalField(name, value)
		}
		if rw.Envelope != nil {
			er, ok := d.(docstore.EnvelopeRewriter)
			if !ok {
				return termcore.Errorf(termcore.RuntimeState, "type %s does not carry a component envelope", typeName)
			}
			er.RewriteEnvelope(rw.Envelope.EffectiveTime, rw.Envelope.ModuleID)
		}
		m := d.Meta()
		m.InternalID = rw.InternalID
		m.Path = path
		m.Start = start
		m.End = end
		if err := s.insertRow(ctx, typeName, d); err != nil {
			return err
		}
	}
	return nil
}

// Refresh is a no-op; writes are visible at the configured consistency level.
func (s *Store) Refresh(ctx context.Context, typeName string) error { return nil }
