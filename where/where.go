// Package where implements a clause tree: a binary tree of boolean row
// filters, rendered by recursive descent, plus the fluent Var(...) builder
// that composes it with & (and) and | (or).
package where

import (
	"fmt"
	"strconv"
)

// Operator is one comparison in a Statement leaf.
type Operator int

const (
	IsNull Operator = iota
	Equals
	NotEquals
	GreaterThan
	GreaterThanOrEquals
	LessThan
	LessThanOrEquals
)

func (op Operator) word() string {
	switch op {
	case IsNull:
		return "is"
	case Equals:
		return "="
	case NotEquals:
		return "!="
	case GreaterThan:
		return ">"
	case GreaterThanOrEquals:
		return ">="
	case LessThan:
		return "<"
	case LessThanOrEquals:
		return "<="
	default:
		return "?"
	}
}

// Glue joins two ComplexStatement branches.
type Glue int

const (
	And Glue = iota
	Or
)

func (g Glue) word() string {
	if g == Or {
		return "or"
	}
	return "and"
}

// Clause is the common interface of the two clause-tree node kinds.
type Clause interface {
	render(escape func(string) string) string
}

// Statement is a clause-tree leaf: one field/operator/value comparison.
// NeedsEscaping is true only for string-typed literals the fluent builder
// received directly; values built from variable references carry false.
type Statement struct {
	Field         string
	Op            Operator
	Value         string
	NeedsEscaping bool
}

func (s *Statement) render(escape func(string) string) string {
	if s.Op == IsNull {
		return fmt.Sprintf("%s is null", s.Field)
	}
	value := s.Value
	if s.NeedsEscaping {
		value = escape(value)
	}
	return fmt.Sprintf("%s %s %s", s.Field, s.Op.word(), value)
}

// ComplexStatement is a clause-tree binary node.
type ComplexStatement struct {
	Left  Clause
	Glue  Glue
	Right Clause
}

func (c *ComplexStatement) render(escape func(string) string) string {
	return fmt.Sprintf("(%s) %s (%s)", c.Left.render(escape), c.Glue.word(), c.Right.render(escape))
}

// Where holds the root of the clause tree, possibly absent.
type Where struct {
	Statement Clause
}

// Empty reports whether no WHERE clause was ever built.
func (w *Where) Empty() bool {
	return w == nil || w.Statement == nil
}

// Render renders the WHERE clause body (without the leading "where "
// keyword), using escape for every leaf whose NeedsEscaping is true.
func (w *Where) Render(escape func(string) string) string {
	if w.Empty() {
		return ""
	}
	return w.Statement.render(escape)
}

// Var starts a fluent builder rooted at field.
func Var(field string) *Builder {
	return &Builder{field: field}
}

// Builder is the fluent composition surface: what would be
// var("a").lessThan(40) & var("b").notEquals(0) becomes
// Var("a").LessThan(40).And(Var("b").NotEquals(0)) in Go, since Go has no
// operator overloading.
type Builder struct {
	field  string
	clause Clause
}

func leaf(field string, op Operator, value string, needsEscaping bool) *Builder {
	return &Builder{field: field, clause: &Statement{Field: field, Op: op, Value: value, NeedsEscaping: needsEscaping}}
}

// IsNull builds `field is null`.
func (b *Builder) IsNull() *Builder {
	return &Builder{field: b.field, clause: &Statement{Field: b.field, Op: IsNull}}
}

// Equals builds a literal equality comparison. String literals are escaped;
// everything else renders as its lexical form.
func (b *Builder) Equals(value any) *Builder {
	return leaf(b.field, Equals, toLiteral(value), needsEscaping(value))
}

func (b *Builder) NotEquals(value any) *Builder {
	return leaf(b.field, NotEquals, toLiteral(value), needsEscaping(value))
}

func (b *Builder) GreaterThan(value any) *Builder {
	return leaf(b.field, GreaterThan, toLiteral(value), needsEscaping(value))
}

func (b *Builder) GreaterThanOrEquals(value any) *Builder {
	return leaf(b.field, GreaterThanOrEquals, toLiteral(value), needsEscaping(value))
}

func (b *Builder) LessThan(value any) *Builder {
	return leaf(b.field, LessThan, toLiteral(value), needsEscaping(value))
}

func (b *Builder) LessThanOrEquals(value any) *Builder {
	return leaf(b.field, LessThanOrEquals, toLiteral(value), needsEscaping(value))
}

// And composes this clause with other via the and glue. Either side may
// already be a ComplexStatement, preserving parenthesization the way
// `(p | q) & r` would.
func (b *Builder) And(other *Builder) *Builder {
	return &Builder{clause: &ComplexStatement{Left: b.clause, Glue: And, Right: other.clause}}
}

// Or composes this clause with other via the or glue.
func (b *Builder) Or(other *Builder) *Builder {
	return &Builder{clause: &ComplexStatement{Left: b.clause, Glue: Or, Right: other.clause}}
}

// Where finalizes the builder into a Where root.
func (b *Builder) Where() *Where {
	return &Where{Statement: b.clause}
}

func needsEscaping(value any) bool {
	_, isString := value.(string)
	return isString
}

func toLiteral(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Order is the ORDER BY tree. Rand, when true, overrides Fields and asks
// the backend for its random function.
type Order struct {
	Rand   bool
	Fields []OrderField
}

type OrderField struct {
	Name string
	Asc  bool
}

// ByRand builds the random-order sentinel.
func ByRand() *Order {
	return &Order{Rand: true}
}

// By builds an ascending/descending field list, in the given order.
func By(fields ...OrderField) *Order {
	return &Order{Fields: fields}
}

// Asc is shorthand for an ascending OrderField.
func Asc(name string) OrderField { return OrderField{Name: name, Asc: true} }

// Desc is shorthand for a descending OrderField.
func Desc(name string) OrderField { return OrderField{Name: name, Asc: false} }

// Limit is the LIMIT clause. upper==0 means "omit the clause"; Limit(0,0)
// is rejected at construction rather than silently rendering "limit 0,0".
type Limit struct {
	Lower int
	Upper int
}

// NewLimit builds Limit(upper) — "limit upper" with no offset.
func NewLimit(upper int) *Limit {
	return &Limit{Upper: upper}
}

// NewLimitRange builds Limit(lower, upper) — "limit lower,upper". It panics
// if lower >= upper; Limit(0,0) must go through NewLimit(0) (which means
// "no limit") instead.
func NewLimitRange(lower, upper int) *Limit {
	if lower >= upper {
		panic("where: Limit requires lower < upper")
	}
	return &Limit{Lower: lower, Upper: upper}
}

// Empty reports whether the clause should be omitted entirely.
func (l *Limit) Empty() bool {
	return l == nil || l.Upper == 0
}

// Render renders the clause body without the leading "limit " keyword.
func (l *Limit) Render() string {
	if l.Empty() {
		return ""
	}
	if l.Lower == 0 {
		return strconv.Itoa(l.Upper)
	}
	return fmt.Sprintf("%d,%d", l.Lower, l.Upper)
}
