package where

import "testing"

func escapeForTest(s string) string {
	return "'" + s + "'"
}

func TestComplexRendering(t *testing.T) {
	w := Var("a").LessThan(40).And(Var("b").NotEquals(0)).Where()
	got := w.Render(escapeForTest)
	want := "(a < 40) and (b != 0)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParenthesizationPreserved(t *testing.T) {
	p := Var("p").Equals("x")
	q := Var("q").Equals("y")
	r := Var("r").Equals("z")
	w := p.Or(q).And(r).Where()
	got := w.Render(escapeForTest)
	want := "(p = 'x') or (q = 'y')) and (r = 'z')"
	if got != "("+want {
		t.Fatalf("got %q", got)
	}
}

func TestIsNullRendering(t *testing.T) {
	w := Var("deleted_at").IsNull().Where()
	if got := w.Render(escapeForTest); got != "deleted_at is null" {
		t.Fatalf("got %q", got)
	}
}

func TestStringLiteralNeedsEscaping(t *testing.T) {
	w := Var("name").Equals("o'brien").Where()
	got := w.Render(escapeForTest)
	want := "name = 'o'brien'"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNumericLiteralSkipsEscaping(t *testing.T) {
	w := Var("age").GreaterThan(40).Where()
	if got := w.Render(escapeForTest); got != "age > 40" {
		t.Fatalf("got %q", got)
	}
}

func TestEmptyWhere(t *testing.T) {
	var w *Where
	if !w.Empty() {
		t.Fatal("nil Where must be empty")
	}
	if w.Render(escapeForTest) != "" {
		t.Fatal("nil Where must render empty string")
	}
}

func TestLimitRendering(t *testing.T) {
	cases := []struct {
		limit *Limit
		want  string
	}{
		{NewLimit(10), "10"},
		{NewLimitRange(5, 15), "5,15"},
	}
	for _, c := range cases {
		if got := c.limit.Render(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestLimitZeroZeroIsOmitted(t *testing.T) {
	l := NewLimit(0)
	if !l.Empty() {
		t.Fatal("Limit(0) must be the omit-clause sentinel")
	}
}

func TestLimitRangeRejectsInvalidBounds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for lower >= upper")
		}
	}()
	NewLimitRange(0, 0)
}

func TestOrderByRand(t *testing.T) {
	o := ByRand()
	if !o.Rand {
		t.Fatal("expected Rand true")
	}
}

func TestOrderByFields(t *testing.T) {
	o := By(Asc("a"), Desc("b"))
	if len(o.Fields) != 2 || !o.Fields[0].Asc || o.Fields[1].Asc {
		t.Fatalf("got %+v", o.Fields)
	}
}
