package entity

import (
	"testing"

	"github.com/scorpion-framework/shark/types"
)

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"testId":     "test_id",
		"HTTPHeader": "_h_t_t_p_header",
		"id":         "id",
		"Name":       "_name",
	}
	for in, want := range cases {
		if got := ToSnakeCase(in); got != want {
			t.Errorf("ToSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

type widget struct {
	WidgetID int    `db:"primary_key,auto_increment"`
	Label    string `db:"name=string_value,length=10"`
	Count    types.Nullable[int]
}

func (widget) TableName() string { return "widget" }

func TestReflectBasic(t *testing.T) {
	spec, err := Reflect[widget]()
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if spec.TableName != "widget" {
		t.Fatalf("table name = %q", spec.TableName)
	}
	if len(spec.PrimaryKey) != 1 || spec.PrimaryKey[0] != "widget_id" {
		t.Fatalf("primary key = %v", spec.PrimaryKey)
	}

	idField, ok := spec.FieldByName("widget_id")
	if !ok {
		t.Fatal("expected widget_id field")
	}
	if idField.Nullable {
		t.Fatal("auto_increment field must be non-nullable")
	}

	strField, ok := spec.FieldByName("string_value")
	if !ok {
		t.Fatal("Name tag must override the snake-cased default")
	}
	if strField.Length != 10 {
		t.Fatalf("length = %d, want 10", strField.Length)
	}

	countField, ok := spec.FieldByName("count")
	if !ok || !countField.Nullable {
		t.Fatal("Nullable[int] field should default to nullable")
	}
}

type dup struct {
	A string `db:"name=x"`
	B string `db:"name=x"`
}

func (dup) TableName() string { return "dup" }

func TestReflectRejectsDuplicateNames(t *testing.T) {
	if _, err := Reflect[dup](); err == nil {
		t.Fatal("expected error for duplicate resolved column names")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	spec, err := Reflect[widget]()
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	strField, _ := spec.FieldByName("string_value")
	countField, _ := spec.FieldByName("count")

	w := &widget{}
	if err := spec.Set(w, strField, "hello", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if w.Label != "hello" {
		t.Fatalf("Label = %q", w.Label)
	}

	if err := spec.Set(w, countField, nil, true); err != nil {
		t.Fatalf("Set null: %v", err)
	}
	if w.Count.Valid() {
		t.Fatal("expected Count to be null after Set(nil,true)")
	}

	value, present := spec.Get(w, strField)
	if !present || value != "hello" {
		t.Fatalf("Get = %v,%v", value, present)
	}

	_, present = spec.Get(w, countField)
	if present {
		t.Fatal("null nullable wrapper must report not present")
	}
}

func TestNewAllocatesConcreteEntity(t *testing.T) {
	spec, err := Reflect[widget]()
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	e := spec.New()
	if e.TableName() != "widget" {
		t.Fatalf("TableName() = %q", e.TableName())
	}
}
