// Package entity turns a declared Go struct and its field tags into the
// canonical FieldSpec list the schema translator (package schema) consumes.
//
// Field tags use the struct tag key "db", a comma-separated token list:
// primary_key, auto_increment, not_null, unique, name=<n>, length=<n>. This
// mirrors the tag-driven metadata style common to Go ORMs rather than a
// bespoke macro/derive mechanism.
package entity

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/types"
)

// Entity is the capability every declared record type exposes: its table
// name, queried from a live instance rather than derived from the type
// identifier.
type Entity interface {
	TableName() string
}

// FieldSpec is the canonical compile/declare-time description of one
// entity field.
type FieldSpec struct {
	Name          string
	Type          types.TypeFlag
	Length        int
	Nullable      bool
	Unique        bool
	AutoIncrement bool
	DefaultValue  string

	goIndex int
}

// TableSpec is the product of reflecting an Entity: its table name, the
// ordered field list, and the primary key field names.
type TableSpec struct {
	TableName  string
	Fields     []FieldSpec
	PrimaryKey []string

	goType reflect.Type
}

// FieldByName looks up a reflected field by its resolved column name.
func (t *TableSpec) FieldByName(name string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// structValue dereferences entity (value or pointer) down to its addressable
// struct reflect.Value.
func structValue(entity Entity) reflect.Value {
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}

// New allocates a fresh zero-value *T as an Entity, letting callers that
// only hold a TableSpec (package schema) create row targets without a
// generic type parameter of their own.
func (t *TableSpec) New() Entity {
	return reflect.New(t.goType).Interface().(Entity)
}

// Get reads field's current Go value off entity, plus whether it is
// "present": a raw non-nullable cell is always present; a Nullable[T] is
// present only when Valid().
func (t *TableSpec) Get(entity Entity, field FieldSpec) (value any, present bool) {
	sv := structValue(entity)
	fv := sv.Field(field.goIndex)
	if fv.Kind() == reflect.Struct && strings.HasPrefix(fv.Type().Name(), "Nullable[") {
		validMethod := fv.MethodByName("Valid")
		valid := validMethod.Call(nil)[0].Bool()
		if !valid {
			return nil, false
		}
		valueMethod := fv.MethodByName("Value")
		results := valueMethod.Call(nil)
		return results[0].Interface(), true
	}
	return fv.Interface(), true
}

// Set writes a decoded result cell back onto field of entity (which must be
// a pointer so the mutation is observable to the caller), honoring the
// nullable-wrapper lifecycle.
func (t *TableSpec) Set(entity Entity, field FieldSpec, value any, isNull bool) error {
	sv := structValue(entity)
	if !sv.CanSet() {
		return dberr.Newf("entity: Set requires a pointer entity, got non-addressable %s", sv.Type())
	}
	fv := sv.Field(field.goIndex)

	if fv.Kind() == reflect.Struct && strings.HasPrefix(fv.Type().Name(), "Nullable[") {
		if isNull {
			fv.MethodByName("SetNull").Call(nil)
			return nil
		}
		inner := underlyingNullableType(fv.Type())
		casted, err := castTo(value, inner)
		if err != nil {
			return err
		}
		setMethod := fv.Addr().MethodByName("Set")
		setMethod.Call([]reflect.Value{casted})
		return nil
	}

	if isNull {
		return dberr.WrapTypeMismatch("entity: column %q is null but field is not nullable", field.Name)
	}
	casted, err := castTo(value, fv.Type())
	if err != nil {
		return err
	}
	fv.Set(casted)
	return nil
}

func castTo(value any, target reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return reflect.Zero(target), nil
	}
	if v.Type() == target {
		return v, nil
	}
	if v.Type().ConvertibleTo(target) {
		return v.Convert(target), nil
	}
	return reflect.Value{}, dberr.WrapTypeMismatch("entity: cannot assign %s into %s", v.Type(), target)
}

var nullableElemType = reflect.TypeOf(struct{}{})

// Reflect builds a TableSpec from a zero-value instance of T. T must be
// instantiable with zero args (a plain struct literal) and every field must
// resolve to a unique column name.
func Reflect[T Entity]() (*TableSpec, error) {
	var zero T
	entityType := reflect.TypeOf(zero)
	if entityType.Kind() == reflect.Ptr {
		entityType = entityType.Elem()
	}
	if entityType.Kind() != reflect.Struct {
		return nil, dberr.Newf("entity: %s is not instantiable as a struct", entityType)
	}

	spec := &TableSpec{
		TableName: zero.TableName(),
		goType:    entityType,
	}

	seen := map[string]bool{}
	for i := 0; i < entityType.NumField(); i++ {
		sf := entityType.Field(i)
		if !sf.IsExported() {
			continue
		}

		field, err := reflectField(sf, i)
		if err != nil {
			return nil, err
		}
		if seen[field.Name] {
			return nil, dberr.Newf("entity: duplicate column name %q on %s", field.Name, entityType)
		}
		seen[field.Name] = true
		spec.Fields = append(spec.Fields, field)

		if hasTag(sf, "primary_key") {
			spec.PrimaryKey = append(spec.PrimaryKey, field.Name)
		}
	}

	return spec, nil
}

func reflectField(sf reflect.StructField, index int) (FieldSpec, error) {
	tag := sf.Tag.Get("db")
	tokens := parseTag(tag)

	name := tokens["name"]
	if name == "" {
		name = ToSnakeCase(sf.Name)
	}

	goType := sf.Type
	nullableWrapper := false
	if goType.Kind() == reflect.Struct && strings.HasPrefix(goType.Name(), "Nullable[") {
		nullableWrapper = true
		goType = underlyingNullableType(sf.Type)
	}

	flag, err := typeFlagFor(goType)
	if err != nil {
		return FieldSpec{}, dberr.Newf("entity: field %s: %v", sf.Name, err)
	}

	_, isAutoIncrement := tokens["auto_increment"]
	_, isNotNull := tokens["not_null"]
	_, isUnique := tokens["unique"]

	nullable := nullableWrapper && !isNotNull
	if isAutoIncrement {
		nullable = false // auto_increment implies not-null regardless of wrapper.
	}

	length := 0
	if raw, ok := tokens["length"]; ok {
		length, _ = strconv.Atoi(raw)
	}

	return FieldSpec{
		Name:          name,
		Type:          flag,
		Length:        length,
		Nullable:      nullable,
		Unique:        isUnique,
		AutoIncrement: isAutoIncrement,
		DefaultValue:  tokens["default"],
		goIndex:       index,
	}, nil
}

// underlyingNullableType extracts T from types.Nullable[T] via its single
// unexported struct field "value" so type-flag resolution shares the same
// table for wrapped and raw fields.
func underlyingNullableType(wrapperType reflect.Type) reflect.Type {
	f, ok := wrapperType.FieldByName("value")
	if !ok {
		return nullableElemType
	}
	return f.Type
}

func typeFlagFor(goType reflect.Type) (types.TypeFlag, error) {
	switch goType.Kind() {
	case reflect.Bool:
		return types.Bool, nil
	case reflect.Int8, reflect.Uint8:
		return types.Byte, nil
	case reflect.Int16, reflect.Uint16:
		return types.Short, nil
	case reflect.Int32, reflect.Uint32:
		return types.Int, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return types.Long, nil
	case reflect.Float32:
		return types.Float, nil
	case reflect.Float64:
		return types.Double, nil
	case reflect.String:
		return types.String, nil
	case reflect.Slice:
		if goType.Elem().Kind() == reflect.Uint8 {
			return types.Binary | types.Blob, nil
		}
	}
	if goType == reflect.TypeOf(time.Time{}) {
		return types.DateTime, nil
	}
	return 0, dberr.Newf("unsupported Go type %s", goType)
}

func hasTag(sf reflect.StructField, token string) bool {
	_, ok := parseTag(sf.Tag.Get("db"))[token]
	return ok
}

func parseTag(tag string) map[string]string {
	out := map[string]string{}
	if tag == "" {
		return out
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			out[part[:eq]] = part[eq+1:]
		} else {
			out[part] = ""
		}
	}
	return out
}

// ToSnakeCase applies a one-shot uppercase-letter transform: every A-Z
// becomes "_" followed by its lowercase form. This is intentionally not
// Go's usual camel-to-snake heuristic (which groups consecutive uppercase
// runs) — HTTPHeader resolves to "_h_t_t_p_header", one underscore per
// uppercase letter.
func ToSnakeCase(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
