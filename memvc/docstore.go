package memvc

import (
	"context"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/docstore"
	"github.com/clinterm/termcore/domain"
	"github.com/clinterm/termcore/vc"
)

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
	visible := s.resolveView(typeName, q.Criteria)
	hits := make([]docstore.Document, 0, len(visible))
	for _, d := range visible {
		if q.Query.Match(d) {
			hits = append(hits, d)
		}
	}
	return &sliceCursor{docs: hits}, nil
}

// resolveView snapshots the row set under the lock and applies the criteria.
func (s *Store) resolveView(typeName string, crit vc.Criteria) []docstore.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return docstore.ResolveView(s.rows[typeName], typeName, crit,
		func(path string) (*vc.Branch, bool) {
			b, ok := s.branches[path]
			return b, ok
		},
		func(path, tn, id string) (int64, bool) {
			tp, ok := s.deleted[path][tn][id]
			return tp, ok
		},
		func(path, tn, internalID string) (int64, bool) {
			tp, ok := s.replaced[path][tn][internalID]
			return tp, ok
		})
}

func (s *Store) SaveBatch(ctx context.Context, c *vc.Commit, typeName string, docs []docstore.Document) error {
	if len(docs) == 0 {
		return nil
	}
	current := map[string]docstore.Document{}
	for _, d := range s.resolveView(typeName, vc.CriteriaIncludingOpenCommit(c)) {
		current[d.DocID()] = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
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
			s.replaceRow(typeName, meta.InternalID, clone)
			current[id] = clone
			continue
		}
		if existing != nil {
			if existing.Meta().Path == path {
				existing.Meta().End = tp
			} else {
				s.recordReplaced(path, typeName, existing.Meta().InternalID, tp)
			}
		}
		meta.InternalID = termcore.NewUUID().String()
		s.rows[typeName] = append(s.rows[typeName], clone)
		current[id] = clone
	}
	return nil
}

func (s *Store) replaceRow(typeName, internalID string, clone docstore.Document) {
	rows := s.rows[typeName]
	for i, r := range rows {
		if r.Meta().InternalID == internalID {
			rows[i] = clone
			return
		}
	}
}

func (s *Store) recordReplaced(path, typeName, internalID string, tp int64) {
	if s.replaced[path] == nil {
		s.replaced[path] = map[string]map[string]int64{}
	}
	if s.replaced[path][typeName] == nil {
		s.replaced[path][typeName] = map[string]int64{}
	}
	s.replaced[path][typeName][internalID] = tp
}

func (s *Store) DeleteBatch(ctx context.Context, c *vc.Commit, typeName string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	current := map[string]docstore.Document{}
	for _, d := range s.resolveView(typeName, vc.CriteriaIncludingOpenCommit(c)) {
		current[d.DocID()] = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := c.Branch().Path
	tp := c.Timepoint()
	for _, id := range ids {
		existing := current[id]
		if existing == nil {
			continue
		}
		if existing.Meta().Path == path {
			existing.Meta().End = tp
		} else {
			// Keep the final version locally so deletion-aware reads can
			// still return it.
			clone := existing.CloneDocument()
			meta := clone.Meta()
			meta.InternalID = termcore.NewUUID().String()
			meta.Path = path
			meta.Start = tp
			meta.End = tp
			s.rows[typeName] = append(s.rows[typeName], clone)
		}
		if s.deleted[path] == nil {
			s.deleted[path] = map[string]map[string]int64{}
		}
		if s.deleted[path][typeName] == nil {
			s.deleted[path][typeName] = map[string]int64{}
		}
		s.deleted[path][typeName][id] = tp
	}
	return nil
}

func (s *Store) RewriteAdditionalFields(ctx context.Context, typeName string, rewrites []docstore.FieldRewrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rw := range rewrites {
		var target docstore.Document
		for _, r := range s.rows[typeName] {
			if r.Meta().InternalID == rw.InternalID {
				target = r
				break
			}
		}
		if target == nil {
			return termcore.Errorf(termcore.Validation, "row %s of type %s not found", rw.InternalID, typeName)
		}
		holder, ok := target.(docstore.AdditionalFieldsHolder)
		if !ok {
			return termcore.Errorf(termcore.RuntimeState, "type %s does not carry additional fields", typeName)
		}
		for name, value := range rw.Fields {
			holder.SetAdditionalField(name, value)
		}
		if rw.Envelope != nil {
			er, ok := target.(docstore.EnvelopeRewriter)
			if !ok {
				return termcore.Errorf(termcore.RuntimeState, "type %s does not carry a component envelope", typeName)
			}
			er.RewriteEnvelope(rw.Envelope.EffectiveTime, rw.Envelope.ModuleID)
		}
	}
	return nil
}

// Refresh is a no-op; in-memory writes are immediately searchable.
func (s *Store) Refresh(ctx context.Context, typeName string) error { return nil }

func (s *Store) SaveCodeSystem(ctx context.Context, cs *domain.CodeSystem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.codeSystems {
		if existing.ShortName == cs.ShortName {
			s.codeSystems[i] = cs
			return nil
		}
	}
	s.codeSystems = append(s.codeSystems, cs)
	return nil
}

func (s *Store) AllCodeSystems(ctx context.Context) ([]*domain.CodeSystem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.CodeSystem(nil), s.codeSystems...), nil
}

func (s *Store) SaveCodeSystemVersion(ctx context.Context, v *domain.CodeSystemVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.codeSystemVersions {
		if existing.ShortName == v.ShortName && existing.EffectiveDate == v.EffectiveDate {
			s.codeSystemVersions[i] = v
			return nil
		}
	}
	s.codeSystemVersions = append(s.codeSystemVersions, v)
	return nil
}

func (s *Store) AllCodeSystemVersions(ctx context.Context) ([]*domain.CodeSystemVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.CodeSystemVersion(nil), s.codeSystemVersions...), nil
}
