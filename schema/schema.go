// Package schema implements the abstract schema/CRUD translator: table
// init (create or reconcile), insert, select, update, delete and drop,
// built against a backend-independent Backend interface rather than an
// inheritance hierarchy.
package schema

import (
	"fmt"
	"log"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/scorpion-framework/shark/bind"
	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/entity"
	"github.com/scorpion-framework/shark/types"
	"github.com/scorpion-framework/shark/where"
)

// TableInfo is the live column metadata a backend reports about an
// existing table, keyed by column name by the caller.
type TableInfo struct {
	Name         string
	Type         types.TypeFlag
	Length       int
	Nullable     bool
	DefaultValue string
}

// Backend is the fixed capability set every wire backend must implement.
// The translator in this file is the only caller.
type Backend interface {
	GetTableInfo(tableName string) (map[string]TableInfo, bool, error)
	GenerateField(field entity.FieldSpec) string
	CreateTable(tableName string, definitions []string) error
	AlterTableColumn(tableName string, field entity.FieldSpec, typeChanged, nullableChanged bool) error
	AlterTableAddColumn(tableName string, field entity.FieldSpec) error
	AlterTableDropColumn(tableName string, columnName string) error
	DropTable(tableName string) error
	InsertInto(tableName string, names []string, values []string, primaryKeys []string) (*bind.Result, error)
	Query(sql string) error
	QuerySelect(sql string) (*bind.Result, error)
	RandomFunction() string
	EscapeBinary(data []byte) string
}

// Logger receives warnings about risky operations (update/delete with an
// empty WHERE). Defaults to the standard logger; callers may override it,
// same as the connection-lifecycle logger in package shark.
var Logger = log.Default()

// Init creates the table if it is missing, else reconciles it
// column-by-column against the declared entity shape.
func Init(b Backend, spec *entity.TableSpec) error {
	live, found, err := b.GetTableInfo(spec.TableName)
	if err != nil {
		return err
	}
	if !found {
		return createTable(b, spec)
	}
	return reconcile(b, spec, live)
}

func createTable(b Backend, spec *entity.TableSpec) error {
	definitions := make([]string, 0, len(spec.Fields)+1)
	for _, f := range spec.Fields {
		definitions = append(definitions, b.GenerateField(f))
	}
	if len(spec.PrimaryKey) > 0 {
		definitions = append(definitions, fmt.Sprintf("primary key(%s)", strings.Join(spec.PrimaryKey, ",")))
	}
	return b.CreateTable(spec.TableName, definitions)
}

func reconcile(b Backend, spec *entity.TableSpec, live map[string]TableInfo) error {
	for _, declared := range spec.Fields {
		liveCol, ok := live[declared.Name]
		if !ok {
			if err := b.AlterTableAddColumn(spec.TableName, declared); err != nil {
				return err
			}
			continue
		}

		typeChanged := !types.Compatible(declared.Type, liveCol.Type)
		nullableChanged := declared.Nullable != liveCol.Nullable
		if typeChanged || nullableChanged {
			if err := b.AlterTableColumn(spec.TableName, declared, typeChanged, nullableChanged); err != nil {
				return err
			}
		}
		delete(live, declared.Name)
	}

	for name := range live {
		if err := b.AlterTableDropColumn(spec.TableName, name); err != nil {
			return err
		}
	}
	return nil
}

// Select renders and runs a select statement. fields is the explicit
// projection list (already resolved to DB column names); an empty list
// means "*".
func Select(b Backend, tableName string, fields []string, wh *where.Where, order *where.Order, limit *where.Limit) (*bind.Result, error) {
	sql := renderSelect(b, tableName, fields, wh, order, limit)
	return b.QuerySelect(sql)
}

func renderSelect(b Backend, tableName string, fields []string, wh *where.Where, order *where.Order, limit *where.Limit) string {
	cols := "*"
	if len(fields) > 0 {
		cols = strings.Join(fields, ",")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "select %s from %s", cols, tableName)

	if !wh.Empty() {
		fmt.Fprintf(&sb, " where %s", wh.Render(EscapeString))
	}
	if order != nil {
		fmt.Fprintf(&sb, " order by %s", renderOrder(b, order))
	}
	if !limit.Empty() {
		fmt.Fprintf(&sb, " limit %s", limit.Render())
	}
	return sb.String()
}

func renderOrder(b Backend, order *where.Order) string {
	if order.Rand {
		return b.RandomFunction()
	}
	parts := make([]string, len(order.Fields))
	for i, f := range order.Fields {
		direction := "asc"
		if !f.Asc {
			direction = "desc"
		}
		parts[i] = fmt.Sprintf("%s %s", f.Name, direction)
	}
	return strings.Join(parts, ",")
}

// Insert collects every present field into (names, values), asks the
// backend to insert, and — when updateId is true and the entity declares
// primary keys — writes any returned row back onto the entity
// (auto-generated ids).
func Insert(b Backend, spec *entity.TableSpec, e entity.Entity, updateId bool) error {
	var names, values []string
	for _, field := range spec.Fields {
		value, present := spec.Get(e, field)
		if !present {
			continue
		}
		if field.AutoIncrement && reflect.ValueOf(value).IsZero() {
			continue // a zero auto_increment id is left for the backend to generate
		}
		literal, err := literalFor(b, field.Type, value)
		if err != nil {
			return err
		}
		names = append(names, field.Name)
		values = append(values, literal)
	}

	var returning []string
	if updateId {
		returning = spec.PrimaryKey
	}

	result, err := b.InsertInto(spec.TableName, names, values, returning)
	if err != nil {
		return err
	}
	if updateId && len(spec.PrimaryKey) > 0 && result != nil && len(result.Rows) > 0 {
		return bind.ApplyRow(spec, e, result.Rows[0])
	}
	return nil
}

// Update renders `update T set n1=v1,... [where ...]`. An absent/empty wh
// is not an error; it logs a warning and updates the whole table.
func Update(b Backend, spec *entity.TableSpec, assignments map[string]any, wh *where.Where) error {
	if wh.Empty() {
		Logger.Printf("shark: update on %s has no WHERE clause, updating every row", spec.TableName)
	}

	parts := make([]string, 0, len(assignments))
	for _, field := range spec.Fields {
		value, ok := assignments[field.Name]
		if !ok {
			continue
		}
		literal, err := literalFor(b, field.Type, value)
		if err != nil {
			return err
		}
		parts = append(parts, fmt.Sprintf("%s=%s", field.Name, literal))
	}

	sql := fmt.Sprintf("update %s set %s", spec.TableName, strings.Join(parts, ","))
	if !wh.Empty() {
		sql += " where " + wh.Render(EscapeString)
	}
	return b.Query(sql)
}

// UpdateByID synthesizes the WHERE from entity's primary key values and
// applies assignments — the no-Where shortcut for updating a single row by
// identity.
func UpdateByID(b Backend, spec *entity.TableSpec, e entity.Entity, assignments map[string]any) error {
	wh, err := wherePrimaryKey(spec, e)
	if err != nil {
		return err
	}
	return Update(b, spec, assignments, wh)
}

// Delete renders `delete from T [where ...]`.
func Delete(b Backend, tableName string, wh *where.Where) error {
	if wh.Empty() {
		Logger.Printf("shark: delete from %s has no WHERE clause, deleting every row", tableName)
	}
	sql := fmt.Sprintf("delete from %s", tableName)
	if !wh.Empty() {
		sql += " where " + wh.Render(EscapeString)
	}
	return b.Query(sql)
}

// DeleteByID synthesizes the WHERE from entity's primary key values.
func DeleteByID(b Backend, spec *entity.TableSpec, e entity.Entity) error {
	wh, err := wherePrimaryKey(spec, e)
	if err != nil {
		return err
	}
	return Delete(b, spec.TableName, wh)
}

// SelectByID builds the primary-key WHERE and selects the matching row.
func SelectByID(b Backend, spec *entity.TableSpec, e entity.Entity) (*bind.Result, error) {
	wh, err := wherePrimaryKey(spec, e)
	if err != nil {
		return nil, err
	}
	return Select(b, spec.TableName, nil, wh, nil, where.NewLimit(1))
}

func wherePrimaryKey(spec *entity.TableSpec, e entity.Entity) (*where.Where, error) {
	if len(spec.PrimaryKey) == 0 {
		return nil, dberr.Newf("schema: %s declares no primary key", spec.TableName)
	}
	var builder *where.Builder
	for _, pkName := range spec.PrimaryKey {
		field, ok := spec.FieldByName(pkName)
		if !ok {
			return nil, dberr.Newf("schema: unknown primary key field %q", pkName)
		}
		value, _ := spec.Get(e, field)
		leaf := where.Var(pkName).Equals(value)
		if builder == nil {
			builder = leaf
		} else {
			builder = builder.And(leaf)
		}
	}
	return builder.Where(), nil
}

// DropIfExists drops tableName only if it currently exists.
func DropIfExists(b Backend, tableName string) error {
	_, found, err := b.GetTableInfo(tableName)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return b.DropTable(tableName)
}

// Drop unconditionally drops tableName.
func Drop(b Backend, tableName string) error {
	return b.DropTable(tableName)
}

// EscapeString is the default string-escaping policy shared by both
// backends: single-quoted, inner "'" doubled.
func EscapeString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// literalFor renders value as the SQL literal the backend should see for a
// field of the given logical type.
func literalFor(b Backend, flag types.TypeFlag, value any) (string, error) {
	if value == nil {
		return "null", nil
	}

	switch {
	case flag&(types.String|types.Char|types.Clob) != 0:
		s, ok := value.(string)
		if !ok {
			return "", dberr.WrapTypeMismatch("schema: expected string for %v field", flag)
		}
		return EscapeString(s), nil
	case flag&(types.Binary|types.Blob) != 0:
		data, ok := value.([]byte)
		if !ok {
			return "", dberr.WrapTypeMismatch("schema: expected []byte for %v field", flag)
		}
		return b.EscapeBinary(data), nil
	case flag&types.Bool != 0:
		v, ok := value.(bool)
		if !ok {
			return "", dberr.WrapTypeMismatch("schema: expected bool for %v field", flag)
		}
		return strconv.FormatBool(v), nil
	case flag&(types.Date|types.DateTime|types.Time) != 0:
		v, ok := value.(time.Time)
		if !ok {
			return "", dberr.WrapTypeMismatch("schema: expected time.Time for %v field", flag)
		}
		layout := "2006-01-02 15:04:05"
		if flag&types.Date != 0 {
			layout = "2006-01-02"
		} else if flag&types.Time != 0 {
			layout = "15:04:05"
		}
		return EscapeString(v.Format(layout)), nil
	default:
		return toString(value), nil
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
