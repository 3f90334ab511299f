package docstore

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	termcore "github.com/clinterm/termcore"
	"github.com/clinterm/termcore/vc"
)

// Filter evaluates a CEL expression against a document's source map. It lets
// operators express ad-hoc selections, e.g. for content audits, without a new
// query clause per field:
//
//	doc.active == true && doc.moduleId == '900000000000207008'
type Filter struct {
	// Name of the filter, e.g. for logging.
	Name string
	// Expression is the CEL expression. The document is bound to "doc".
	Expression string

	program cel.Program
}

// NewFilter compiles expression into a reusable filter.
func NewFilter(name, expression string) (*Filter, error) {
	env, err := cel.NewEnv(
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, termcore.Errorf(termcore.Conversion, "failed to create CEL environment, details: %w", err)
	}
	ast, iss := env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, termcore.Errorf(termcore.Conversion, "failed to compile expression '%s', details: %w", expression, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, termcore.Errorf(termcore.Conversion, "failed to program expression '%s', details: %w", expression, err)
	}
	return &Filter{Name: name, Expression: expression, program: prg}, nil
}

// Matches evaluates the filter against a document source map.
func (f *Filter) Matches(source map[string]any) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{"doc": source})
	if err != nil {
		return false, termcore.Errorf(termcore.Conversion, "failed to evaluate expression '%s', details: %w", f.Expression, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, termcore.Errorf(termcore.Conversion, "expression '%s' did not evaluate to a boolean, got %v", f.Expression, out.Value())
	}
	return b, nil
}

// SelectWhere streams the documents visible under crit and returns those the
// filter matches.
func SelectWhere(ctx context.Context, s Store, typeName string, crit vc.Criteria, f *Filter) ([]Document, error) {
	marshaler := termcore.NewMarshaler()
	var out []Document
	err := EachHit(ctx, s, typeName, Query{Criteria: crit, PageSize: LargePageSize}, func(d Document) error {
		data, err := marshaler.Marshal(d)
		if err != nil {
			return termcore.Errorf(termcore.Conversion, "failed to marshal document %s, details: %w", d.DocID(), err)
		}
		source := map[string]any{}
		if err := marshaler.Unmarshal(data, &source); err != nil {
			return termcore.Errorf(termcore.Conversion, "failed to unmarshal document %s, details: %w", d.DocID(), err)
		}
		ok, err := f.Matches(source)
		if err != nil {
			return fmt.Errorf("filter %s: %w", f.Name, err)
		}
		if ok {
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
