package docstore

import (
	"context"

	"github.com/clinterm/termcore/vc"
)

// Cursor streams query hits. Callers must Close it on every exit path so the
// backend can release the scroll context.
type Cursor interface {
	// Next returns the next hit. The second return is false when the stream
	// is exhausted.
	Next() (Document, bool, error)
	Close() error
}

// FieldRewrite is an in-place update of a row's additional fields, addressed
// by the row's internal ID so no new version is created. A non-nil Envelope
// rewrites the shared component envelope of the row in the same pass.
type FieldRewrite struct {
	InternalID string
	Fields     map[string]string
	Envelope   *EnvelopeRewrite
}

// EnvelopeRewrite carries the component envelope values of a FieldRewrite. A
// nil EffectiveTime clears the stored effective time; an empty ModuleID
// leaves the module untouched.
type EnvelopeRewrite struct {
	EffectiveTime *int
	ModuleID      string
}

// Store is the indexed document store.
type Store interface {
	// SearchForStream runs q against the given document type and streams the
	// hits in a stable order.
	SearchForStream(ctx context.Context, typeName string, q Query) (Cursor, error)
	// SaveBatch writes new versions of docs within the open commit c.
	SaveBatch(ctx context.Context, c *vc.Commit, typeName string, docs []Document) error
	// DeleteBatch deletes the components with the given IDs within c.
	DeleteBatch(ctx context.Context, c *vc.Commit, typeName string, ids []string) error
	// RewriteAdditionalFields rewrites fields on existing rows in place,
	// without creating new row versions. Callers must Refresh afterwards
	// before reading the rewritten values back.
	RewriteAdditionalFields(ctx context.Context, typeName string, rewrites []FieldRewrite) error
	// Refresh makes all completed writes visible to searches.
	Refresh(ctx context.Context, typeName string) error
}

// EachHit streams q and calls fn for every hit, closing the cursor on all
// exit paths. Hits are asserted to T.
func EachHit[T Document](ctx context.Context, s Store, typeName string, q Query, fn func(T) error) (err error) {
	cursor, err := s.SearchForStream(ctx, typeName, q)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cursor.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		d, ok, nerr := cursor.Next()
		if nerr != nil {
			return nerr
		}
		if !ok {
			return nil
		}
		t, ok := d.(T)
		if !ok {
			continue
		}
		if ferr := fn(t); ferr != nil {
			return ferr
		}
	}
}
