package schema

import (
	"fmt"
	"testing"

	"github.com/scorpion-framework/shark/bind"
	"github.com/scorpion-framework/shark/entity"
	"github.com/scorpion-framework/shark/types"
	"github.com/scorpion-framework/shark/where"
)

// fakeBackend is an in-memory Backend double used to exercise the
// translator without a live socket, stubbing packet exchange rather than
// dialing a real server.
type fakeBackend struct {
	tables       map[string]map[string]TableInfo
	createCalls  []string
	alterCalls   []string
	addCalls     []string
	dropColCalls []string
	dropCalls    []string
	queries      []string
	insertRows   []bind.Row
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{tables: map[string]map[string]TableInfo{}}
}

func (f *fakeBackend) GetTableInfo(tableName string) (map[string]TableInfo, bool, error) {
	live, ok := f.tables[tableName]
	if !ok {
		return nil, false, nil
	}
	copied := map[string]TableInfo{}
	for k, v := range live {
		copied[k] = v
	}
	return copied, true, nil
}

func (f *fakeBackend) GenerateField(field entity.FieldSpec) string {
	return fmt.Sprintf("%s %v", field.Name, field.Type)
}

func (f *fakeBackend) CreateTable(tableName string, definitions []string) error {
	f.createCalls = append(f.createCalls, tableName)
	return nil
}

func (f *fakeBackend) AlterTableColumn(tableName string, field entity.FieldSpec, typeChanged, nullableChanged bool) error {
	f.alterCalls = append(f.alterCalls, fmt.Sprintf("%s.%s type=%v null=%v", tableName, field.Name, typeChanged, nullableChanged))
	return nil
}

func (f *fakeBackend) AlterTableAddColumn(tableName string, field entity.FieldSpec) error {
	f.addCalls = append(f.addCalls, field.Name)
	return nil
}

func (f *fakeBackend) AlterTableDropColumn(tableName string, columnName string) error {
	f.dropColCalls = append(f.dropColCalls, columnName)
	return nil
}

func (f *fakeBackend) DropTable(tableName string) error {
	f.dropCalls = append(f.dropCalls, tableName)
	return nil
}

func (f *fakeBackend) InsertInto(tableName string, names []string, values []string, primaryKeys []string) (*bind.Result, error) {
	if len(primaryKeys) > 0 {
		row := bind.Row{primaryKeys[0]: {Value: 99}}
		f.insertRows = append(f.insertRows, row)
		return &bind.Result{Rows: []bind.Row{row}}, nil
	}
	return nil, nil
}

func (f *fakeBackend) Query(sql string) error {
	f.queries = append(f.queries, sql)
	return nil
}

func (f *fakeBackend) QuerySelect(sql string) (*bind.Result, error) {
	f.queries = append(f.queries, sql)
	return &bind.Result{}, nil
}

func (f *fakeBackend) RandomFunction() string { return "random()" }

func (f *fakeBackend) EscapeBinary(data []byte) string {
	return fmt.Sprintf("'\\x%x'", data)
}

type thing struct {
	ThingID int    `db:"primary_key,auto_increment"`
	Label   string `db:"not_null"`
}

func (thing) TableName() string { return "thing" }

func TestInitCreatesWhenMissing(t *testing.T) {
	spec, _ := entity.Reflect[thing]()
	b := newFakeBackend()
	if err := Init(b, spec); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(b.createCalls) != 1 {
		t.Fatalf("expected 1 CreateTable call, got %d", len(b.createCalls))
	}
}

func TestInitReconciles(t *testing.T) {
	spec, _ := entity.Reflect[thing]()
	b := newFakeBackend()
	b.tables["thing"] = map[string]TableInfo{
		"thing_id": {Name: "thing_id", Type: types.Long, Nullable: false},
		"stale":    {Name: "stale", Type: types.String, Nullable: true},
	}
	if err := Init(b, spec); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(b.addCalls) != 1 || b.addCalls[0] != "label" {
		t.Fatalf("expected add column label, got %v", b.addCalls)
	}
	if len(b.dropColCalls) != 1 || b.dropColCalls[0] != "stale" {
		t.Fatalf("expected drop column stale, got %v", b.dropColCalls)
	}
}

func TestInitAltersOnTypeOrNullMismatch(t *testing.T) {
	spec, _ := entity.Reflect[thing]()
	b := newFakeBackend()
	b.tables["thing"] = map[string]TableInfo{
		"thing_id": {Name: "thing_id", Type: types.Long, Nullable: false},
		"label":    {Name: "label", Type: types.Int, Nullable: true}, // incompatible type AND nullable mismatch
	}
	if err := Init(b, spec); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(b.alterCalls) != 1 {
		t.Fatalf("expected 1 alter call, got %v", b.alterCalls)
	}
}

func TestInitNoOpWhenCompatible(t *testing.T) {
	spec, _ := entity.Reflect[thing]()
	b := newFakeBackend()
	b.tables["thing"] = map[string]TableInfo{
		"thing_id": {Name: "thing_id", Type: types.Long, Nullable: false},
		"label":    {Name: "label", Type: types.String, Nullable: false},
	}
	if err := Init(b, spec); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(b.alterCalls) != 0 || len(b.addCalls) != 0 || len(b.dropColCalls) != 0 {
		t.Fatal("expected no-op reconciliation")
	}
}

func TestInsertWritesBackGeneratedID(t *testing.T) {
	spec, _ := entity.Reflect[thing]()
	b := newFakeBackend()
	e := &thing{Label: "widget"}
	if err := Insert(b, spec, e, true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if e.ThingID != 99 {
		t.Fatalf("ThingID = %d, want 99 via RETURNING", e.ThingID)
	}
}

func TestInsertSkipsWriteBackWhenUpdateIdFalse(t *testing.T) {
	spec, _ := entity.Reflect[thing]()
	b := newFakeBackend()
	e := &thing{Label: "widget"}
	if err := Insert(b, spec, e, false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if e.ThingID != 0 {
		t.Fatalf("ThingID = %d, want 0 when updateId=false", e.ThingID)
	}
}

func TestUpdateByIDSynthesizesWhere(t *testing.T) {
	spec, _ := entity.Reflect[thing]()
	b := newFakeBackend()
	e := &thing{ThingID: 5, Label: "old"}
	if err := UpdateByID(b, spec, e, map[string]any{"label": "new"}); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}
	if len(b.queries) != 1 {
		t.Fatalf("expected 1 query, got %v", b.queries)
	}
	want := "update thing set label='new' where thing_id = 5"
	if b.queries[0] != want {
		t.Fatalf("got %q, want %q", b.queries[0], want)
	}
}

func TestDeleteWithoutWhereWarnsAndProceeds(t *testing.T) {
	b := newFakeBackend()
	if err := Delete(b, "thing", nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if b.queries[0] != "delete from thing" {
		t.Fatalf("got %q", b.queries[0])
	}
}

func TestSelectRendersWhereOrderLimit(t *testing.T) {
	b := newFakeBackend()
	wh := where.Var("a").LessThan(40).Where()
	order := where.By(where.Asc("a"))
	limit := where.NewLimit(10)
	if _, err := Select(b, "thing", nil, wh, order, limit); err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := "select * from thing where a < 40 order by a asc limit 10"
	if b.queries[0] != want {
		t.Fatalf("got %q, want %q", b.queries[0], want)
	}
}

func TestSelectRandomOrder(t *testing.T) {
	b := newFakeBackend()
	order := where.ByRand()
	if _, err := Select(b, "thing", nil, nil, order, nil); err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := "select * from thing order by random()"
	if b.queries[0] != want {
		t.Fatalf("got %q, want %q", b.queries[0], want)
	}
}

func TestDropIfExistsNoOpWhenMissing(t *testing.T) {
	b := newFakeBackend()
	if err := DropIfExists(b, "ghost"); err != nil {
		t.Fatalf("DropIfExists: %v", err)
	}
	if len(b.dropCalls) != 0 {
		t.Fatal("expected no DropTable call for a missing table")
	}
}

func TestEscapeString(t *testing.T) {
	if EscapeString("ab'cd") != "'ab''cd'" {
		t.Fatalf("got %q", EscapeString("ab'cd"))
	}
	if EscapeString("") != "''" {
		t.Fatalf("got %q", EscapeString(""))
	}
}
