// Package bind implements the result binder: mapping a positionally-typed
// result row onto a declared entity instance.
package bind

import (
	"github.com/scorpion-framework/shark/entity"
)

// Cell is one decoded result column: either a typed value or null.
type Cell struct {
	Value  any
	IsNull bool
}

// Row is one result row, keyed by resolved column name.
type Row map[string]Cell

// Result is what a backend's querySelect returns: the decoded rows plus,
// redundantly but conveniently, the set of column names seen.
type Result struct {
	Columns []string
	Rows    []Row
}

// Bind maps one Row onto a freshly allocated entity, driven by a
// TableSpec rather than a generic type parameter so backends and the
// schema translator can call it without knowing T.
func Bind(spec *entity.TableSpec, row Row) (entity.Entity, error) {
	target := spec.New()
	for _, field := range spec.Fields {
		cell, ok := row[field.Name]
		if !ok {
			continue
		}
		if err := spec.Set(target, field, cell.Value, cell.IsNull); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// BindAll maps every row of a Result onto a new entity per row.
func BindAll(spec *entity.TableSpec, result *Result) ([]entity.Entity, error) {
	out := make([]entity.Entity, 0, len(result.Rows))
	for _, row := range result.Rows {
		e, err := Bind(spec, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ApplyRow writes row's values back onto an existing entity (used after an
// insert's RETURNING clause to fill in auto-generated primary keys, spec
// §4.3 insert / §6 Database.insert updateId).
func ApplyRow(spec *entity.TableSpec, target entity.Entity, row Row) error {
	for _, field := range spec.Fields {
		cell, ok := row[field.Name]
		if !ok {
			continue
		}
		if err := spec.Set(target, field, cell.Value, cell.IsNull); err != nil {
			return err
		}
	}
	return nil
}
