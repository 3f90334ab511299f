package cassandra

import (
	"context"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/domain"
)

// The code system registry stores each record as a JSON document keyed by
// short name, with versions clustered under it by effective date.

func (s *Store) SaveCodeSystem(ctx context.Context, cs *domain.CodeSystem) error {
	doc, err := s.marshaler.Marshal(cs)
	if err != nil {
		return termcore.Errorf(termcore.Conversion, "failed encoding code system %s, details: %w", cs.ShortName, err)
	}
	return s.query(ctx, s.conn.Config.ConsistencyBook.CodeSystemWrite,
		"INSERT INTO %s.code_system (short_name, doc) VALUES(?,?);", cs.ShortName, string(doc)).Exec()
}

func (s *Store) AllCodeSystems(ctx context.Context) ([]*domain.CodeSystem, error) {
	iter := s.query(ctx, s.conn.Config.ConsistencyBook.CodeSystemGet,
		"SELECT doc FROM %s.code_system;").Iter()
	var out []*domain.CodeSystem
	var doc string
	for iter.Scan(&doc) {
		cs := &domain.CodeSystem{}
		if err := s.marshaler.Unmarshal([]byte(doc), cs); err != nil {
			return nil, termcore.Errorf(termcore.Conversion, "failed decoding code system record, details: %w", err)
		}
		out = append(out, cs)
	}
	if err := iter.Close(); err != nil {
		return nil, termcore.Errorf(termcore.TransientStore, "failed loading code systems, details: %w", err)
	}
	return out, nil
}

func (s *Store) SaveCodeSystemVersion(ctx context.Context, v *domain.CodeSystemVersion) error {
	doc, err := s.marshaler.Marshal(v)
	if err != nil {
		return termcore.Errorf(termcore.Conversion, "failed encoding code system version %s %d, details: %w", v.ShortName, v.EffectiveDate, err)
	}
	return s.query(ctx, s.conn.Config.ConsistencyBook.CodeSystemWrite,
		"INSERT INTO %s.code_system_version (short_name, effective_date, doc) VALUES(?,?,?);",
		v.ShortName, v.EffectiveDate, string(doc)).Exec()
}

func (s *Store) AllCodeSystemVersions(ctx context.Context) ([]*domain.CodeSystemVersion, error) {
	iter := s.query(ctx, s.conn.Config.ConsistencyBook.CodeSystemGet,
		"SELECT doc FROM %s.code_system_version;").Iter()
	var out []*domain.CodeSystemVersion
	var doc string
	for iter.Scan(&doc) {
		v := &domain.CodeSystemVersion{}
		if err := s.marshaler.Unmarshal([]byte(doc), v); err != nil {
			return nil, termcore.Errorf(termcore.Conversion, "failed decoding code system version record, details: %w", err)
		}
		out = append(out, v)
	}
	if err := iter.Close(); err != nil {
		return nil, termcore.Errorf(termcore.TransientStore, "failed loading code system versions, details: %w", err)
	}
	return out, nil
}
