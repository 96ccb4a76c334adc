package shark_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/scorpion-framework/shark"
	"github.com/scorpion-framework/shark/sharktest"
	"github.com/scorpion-framework/shark/types"
	"github.com/scorpion-framework/shark/where"
)

// widgetV0/widgetV1 exercise the create-then-reconcile path: V1 adds two
// columns that V0 never declared.
type widgetV0 struct {
	WidgetID int    `db:"primary_key,auto_increment"`
	Test     string `db:"name=test,length=10"`
}

func (widgetV0) TableName() string { return "test_widget" }

type widgetV1 struct {
	WidgetID int    `db:"primary_key,auto_increment"`
	Test     string `db:"name=test,length=10"`
	A        int    `db:"not_null"`
	B        int16  `db:"unique"`
}

func (widgetV1) TableName() string { return "test_widget" }

type allTypes struct {
	RowID int                      `db:"primary_key,auto_increment"`
	A     bool                     ``
	C     int8                     ``
	D     int16                    ``
	E     types.Nullable[int32]    ``
	F     float32                  ``
	G     float64                  ``
	H     string                   `db:"length=1"`
	I     string                   ``
	M     string                   ``
	O     time.Time                ``
	P     time.Time                ``
}

func (allTypes) TableName() string { return "test_all_types" }

type compositeKey struct {
	ID1   int    `db:"primary_key"`
	ID2   string `db:"primary_key"`
	Value uint   ``
}

func (compositeKey) TableName() string { return "test_composite" }

type escapeTarget struct {
	EscapeID int    `db:"primary_key,auto_increment"`
	Str      string ``
}

func (escapeTarget) TableName() string { return "test_escape" }

func withPostgres(t *testing.T) *shark.Database {
	t.Helper()
	cfg := sharktest.RequirePostgres(t)
	db, err := shark.ConnectPostgres(context.Background(), cfg)
	if err != nil {
		t.Fatalf("ConnectPostgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestS1CreateAndAlter covers S1: init() creates test_widget from widgetV0,
// then reconciles it to widgetV1 by adding the two new columns.
func TestS1CreateAndAlter(t *testing.T) {
	db := withPostgres(t)

	if err := shark.DropIfExists[widgetV0](db); err != nil {
		t.Fatalf("DropIfExists: %v", err)
	}
	if err := shark.Init[widgetV0](db); err != nil {
		t.Fatalf("Init widgetV0: %v", err)
	}
	if err := shark.Init[widgetV1](db); err != nil {
		t.Fatalf("Init widgetV1: %v", err)
	}

	rows, err := shark.Select[widgetV1](db, nil, nil, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty table after create, got %d rows", len(rows))
	}
}

// TestS2InsertUniquenessNotNull covers S2's insert/constraint-violation path.
func TestS2InsertUniquenessNotNull(t *testing.T) {
	db := withPostgres(t)
	_ = shark.DropIfExists[widgetV0](db)
	_ = shark.Init[widgetV1](db)

	row := &widgetV1{Test: "test", A: 55, B: -1}
	if err := shark.Insert(db, row, true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if row.WidgetID != 1 {
		t.Fatalf("WidgetID = %d, want 1 via returning", row.WidgetID)
	}

	dup := &widgetV1{Test: "test", A: 44, B: -1} // same B: unique violation
	if err := shark.Insert(db, dup, true); err == nil {
		t.Fatal("expected unique-violation error on b")
	}

	second := &widgetV1{Test: "test", A: 44, B: 1}
	if err := shark.Insert(db, second, false); err != nil {
		t.Fatalf("Insert without updateId: %v", err)
	}
	if second.WidgetID != 0 {
		t.Fatalf("updateId=false should leave WidgetID untouched, got %d", second.WidgetID)
	}

	third := &widgetV1{Test: "test", A: 33, B: 6}
	if err := shark.Insert(db, third, true); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rows, err := shark.Select[widgetV1](db, nil, nil, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
}

// TestS3SelectOneByEquality covers S3.
func TestS3SelectOneByEquality(t *testing.T) {
	db := withPostgres(t)
	_ = shark.DropIfExists[widgetV0](db)
	_ = shark.Init[widgetV1](db)
	_ = shark.Insert(db, &widgetV1{Test: "test", A: 55, B: -1}, true)

	wh := where.Var("test").Equals("test").Where()
	row, ok, err := shark.SelectOne[widgetV1](db, wh)
	if err != nil {
		t.Fatalf("SelectOne: %v", err)
	}
	if !ok || row.Test != "test" {
		t.Fatalf("SelectOne = %+v, ok=%v", row, ok)
	}
}

// TestS4OrderingAndCompositeWhere covers S4.
func TestS4OrderingAndCompositeWhere(t *testing.T) {
	db := withPostgres(t)
	_ = shark.DropIfExists[widgetV0](db)
	_ = shark.Init[widgetV1](db)
	_ = shark.Insert(db, &widgetV1{Test: "test", A: 55, B: -1}, true)
	_ = shark.Insert(db, &widgetV1{Test: "test", A: 44, B: 1}, true)
	_ = shark.Insert(db, &widgetV1{Test: "test", A: 33, B: 6}, true)

	ordered, err := shark.Select[widgetV1](db, nil, where.By(where.Asc("a")), nil)
	if err != nil {
		t.Fatalf("Select ordered: %v", err)
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].A > ordered[i].A {
			t.Fatalf("rows not ascending by a: %+v", ordered)
		}
	}

	wh := where.Var("a").LessThan(40).And(where.Var("b").NotEquals(0)).Where()
	filtered, err := shark.Select[widgetV1](db, wh, nil, nil)
	if err != nil {
		t.Fatalf("Select filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].A != 33 {
		t.Fatalf("filtered = %+v, want exactly the a=33 row", filtered)
	}
}

// TestS5AllTypesRoundTrip covers S5: every logical type round-trips
// through insert/select, including a null Nullable wrapper.
func TestS5AllTypesRoundTrip(t *testing.T) {
	db := withPostgres(t)
	_ = shark.DropIfExists[allTypes](db)
	_ = shark.Init[allTypes](db)

	when, _ := time.Parse("2006-01-02", "2018-12-31")
	row := &allTypes{
		A: true,
		C: 13,
		D: -14,
		E: types.Null[int32](),
		F: .55,
		G: 7.34823e+10,
		H: ";",
		I: "test",
		M: "___________________",
		O: when,
	}
	if err := shark.Insert(db, row, true); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok, err := shark.SelectID[allTypes](db, *row)
	if err != nil {
		t.Fatalf("SelectID: %v", err)
	}
	if !ok {
		t.Fatal("expected a row back")
	}
	if got.A != row.A || got.C != row.C || got.D != row.D {
		t.Fatalf("got = %+v, want %+v", got, row)
	}
	if got.E.Valid() {
		t.Fatal("expected E to round-trip as null")
	}
	if math.Abs(float64(got.F)-float64(row.F)) > 1e-6 {
		t.Fatalf("F = %v, want %v", got.F, row.F)
	}
}

// TestS6CompositeKeyLifecycle covers S6: composite-primary-key
// update/selectId/delete.
func TestS6CompositeKeyLifecycle(t *testing.T) {
	db := withPostgres(t)
	_ = shark.DropIfExists[compositeKey](db)
	_ = shark.Init[compositeKey](db)

	row := &compositeKey{ID1: 1, ID2: "test", Value: math.MaxUint32}
	if err := shark.Insert(db, row, false); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := shark.UpdateID(db, row, map[string]any{"value": 12}); err != nil {
		t.Fatalf("UpdateID: %v", err)
	}

	got, ok, err := shark.SelectID[compositeKey](db, compositeKey{ID1: 1, ID2: "test"})
	if err != nil {
		t.Fatalf("SelectID: %v", err)
	}
	if !ok || got.Value != 12 {
		t.Fatalf("got = %+v, ok=%v, want value=12", got, ok)
	}

	if err := shark.DeleteID(db, row); err != nil {
		t.Fatalf("DeleteID: %v", err)
	}
	rows, err := shark.Select[compositeKey](db, nil, nil, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty table after delete, got %d rows", len(rows))
	}
}

// TestS7Escaping covers S7: string literals containing a single quote and
// an injection attempt both round-trip exactly.
func TestS7Escaping(t *testing.T) {
	db := withPostgres(t)
	_ = shark.DropIfExists[escapeTarget](db)
	_ = shark.Init[escapeTarget](db)

	values := []string{"'", "');drop table test;--"}
	for _, v := range values {
		if err := shark.Insert(db, &escapeTarget{Str: v}, true); err != nil {
			t.Fatalf("Insert(%q): %v", v, err)
		}
	}

	rows, err := shark.Select[escapeTarget](db, nil, nil, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	for i, v := range values {
		if rows[i].Str != v {
			t.Fatalf("rows[%d].Str = %q, want %q", i, rows[i].Str, v)
		}
	}
}
