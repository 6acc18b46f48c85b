// Copyright (C) 2024 VertexDB, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package plan

import (
	"fmt"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
)

// BinaryOp names a LogicalExpression's binary operator (spec.md
// §4.7's expression vocabulary).
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIn
	OpContains
	OpStartsWith
	OpEndsWith
)

// UnaryOp names a LogicalExpression's unary operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpIsNull
	OpIsNotNull
)

// Expr is a node of the LogicalExpression tree (spec.md §4.7):
// Literal, Variable, Property, Id, Labels, List, Binary, Unary. Every
// node compiles to an exec.ValueExpr closure via Compile, the same
// role expr trees play feeding Filter/Project/the write operators in
// the exec package.
type Expr interface {
	fmt.Stringer
	// Compile returns a closure evaluating this expression against one
	// exec.Row.
	Compile() exec.ValueExpr
}

// Literal is a constant value.
type Literal struct{ Value engine.Value }

func (l Literal) String() string       { return l.Value.String_() }
func (l Literal) Compile() exec.ValueExpr { return func(exec.Row) engine.Value { return l.Value } }

// Variable reads a bound column (a node, edge, or scalar id) by name.
type Variable struct{ Name string }

func (v Variable) String() string { return v.Name }
func (v Variable) Compile() exec.ValueExpr {
	name := v.Name
	return func(row exec.Row) engine.Value {
		val, _ := row.Get(name)
		return val
	}
}

// Property reads one property key off a bound node or edge id
// (spec.md §4.1's PropertyColumn lookup, fed through the translator's
// compiled column-to-PropertyStorage binding -- Property itself only
// knows the input column's already-projected value, since property
// reads happen during the Scan/Expand operator's own column binding,
// not at expression-evaluation time).
type Property struct {
	Entity Expr
	Key    string
}

func (p Property) String() string { return fmt.Sprintf("%s.%s", p.Entity, p.Key) }
func (p Property) Compile() exec.ValueExpr {
	// Property access is resolved by the translator into a bound
	// column (e.g. "n.name" becomes its own projected column), so by
	// the time a plan reaches Compile, a Property node only appears
	// if the translator chose to defer it; evaluate by column name
	// "<entity>.<key>" as a fallback convention.
	col := fmt.Sprintf("%s.%s", p.Entity, p.Key)
	return func(row exec.Row) engine.Value {
		val, _ := row.Get(col)
		return val
	}
}

// Id reads a bound entity's id as a plain scalar value.
type Id struct{ Entity Expr }

func (i Id) String() string { return fmt.Sprintf("id(%s)", i.Entity) }
func (i Id) Compile() exec.ValueExpr {
	inner := i.Entity.Compile()
	return inner
}

// Labels reads a bound node's label set as a KList of KString values.
// The translator is responsible for having bound it to a column ahead
// of time (a Store's label set isn't itself column data); Labels
// exists in the IR chiefly so hasLabel()-style predicates have
// somewhere to anchor during optimization/printing.
type Labels struct{ Entity Expr }

func (l Labels) String() string { return fmt.Sprintf("labels(%s)", l.Entity) }
func (l Labels) Compile() exec.ValueExpr {
	col := fmt.Sprintf("labels(%s)", l.Entity)
	return func(row exec.Row) engine.Value {
		val, _ := row.Get(col)
		return val
	}
}

// List is a literal list expression.
type List struct{ Items []Expr }

func (l List) String() string {
	s := "["
	for i, it := range l.Items {
		if i > 0 {
			s += ", "
		}
		s += it.String()
	}
	return s + "]"
}
func (l List) Compile() exec.ValueExpr {
	compiled := make([]exec.ValueExpr, len(l.Items))
	for i, it := range l.Items {
		compiled[i] = it.Compile()
	}
	return func(row exec.Row) engine.Value {
		vals := make([]engine.Value, len(compiled))
		for i, c := range compiled {
			vals[i] = c(row)
		}
		return engine.List(vals)
	}
}

// Binary applies a two-argument operator.
type Binary struct {
	Op          BinaryOp
	Left, Right Expr
}

func (b Binary) String() string { return fmt.Sprintf("(%s %v %s)", b.Left, b.Op, b.Right) }

func (op BinaryOp) String() string {
	names := [...]string{"=", "<>", "<", "<=", ">", ">=", "and", "or", "+", "-", "*", "/", "in", "contains", "starts_with", "ends_with"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

func (b Binary) Compile() exec.ValueExpr {
	l, r := b.Left.Compile(), b.Right.Compile()
	op := b.Op
	return func(row exec.Row) engine.Value {
		lv, rv := l(row), r(row)
		switch op {
		case OpAnd:
			lb, _ := lv.AsBool()
			rb, _ := rv.AsBool()
			return engine.Bool(lb && rb)
		case OpOr:
			lb, _ := lv.AsBool()
			rb, _ := rv.AsBool()
			return engine.Bool(lb || rb)
		case OpEq:
			return engine.Bool(engine.Compare(lv, rv) == engine.Equal)
		case OpNeq:
			return engine.Bool(engine.Compare(lv, rv) != engine.Equal)
		case OpLt:
			return engine.Bool(engine.Compare(lv, rv) == engine.Less)
		case OpLte:
			o := engine.Compare(lv, rv)
			return engine.Bool(o == engine.Less || o == engine.Equal)
		case OpGt:
			return engine.Bool(engine.Compare(lv, rv) == engine.Greater)
		case OpGte:
			o := engine.Compare(lv, rv)
			return engine.Bool(o == engine.Greater || o == engine.Equal)
		case OpAdd, OpSub, OpMul, OpDiv:
			return arith(op, lv, rv)
		case OpIn:
			items, _ := rv.AsList()
			for _, it := range items {
				if engine.Compare(lv, it) == engine.Equal {
					return engine.Bool(true)
				}
			}
			return engine.Bool(false)
		case OpContains:
			ls, _ := lv.AsString()
			rs, _ := rv.AsString()
			return engine.Bool(containsString(ls, rs))
		case OpStartsWith:
			ls, _ := lv.AsString()
			rs, _ := rv.AsString()
			return engine.Bool(len(ls) >= len(rs) && ls[:len(rs)] == rs)
		case OpEndsWith:
			ls, _ := lv.AsString()
			rs, _ := rv.AsString()
			return engine.Bool(len(ls) >= len(rs) && ls[len(ls)-len(rs):] == rs)
		default:
			return engine.Null()
		}
	}
}

func containsString(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func arith(op BinaryOp, l, r engine.Value) engine.Value {
	lf, lok := l.Float()
	rf, rok := r.Float()
	if !lok || !rok {
		return engine.Null()
	}
	switch op {
	case OpAdd:
		return engine.Float64(lf + rf)
	case OpSub:
		return engine.Float64(lf - rf)
	case OpMul:
		return engine.Float64(lf * rf)
	case OpDiv:
		if rf == 0 {
			return engine.Null()
		}
		return engine.Float64(lf / rf)
	}
	return engine.Null()
}

// Unary applies a single-argument operator.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

func (u Unary) String() string {
	names := [...]string{"not", "-", "is null", "is not null"}
	n := "?"
	if int(u.Op) < len(names) {
		n = names[u.Op]
	}
	return fmt.Sprintf("%s(%s)", n, u.Operand)
}

func (u Unary) Compile() exec.ValueExpr {
	inner := u.Operand.Compile()
	switch u.Op {
	case OpNot:
		return func(row exec.Row) engine.Value {
			b, _ := inner(row).AsBool()
			return engine.Bool(!b)
		}
	case OpNeg:
		return func(row exec.Row) engine.Value {
			f, ok := inner(row).Float()
			if !ok {
				return engine.Null()
			}
			return engine.Float64(-f)
		}
	case OpIsNull:
		return func(row exec.Row) engine.Value { return engine.Bool(inner(row).IsNull()) }
	case OpIsNotNull:
		return func(row exec.Row) engine.Value { return engine.Bool(!inner(row).IsNull()) }
	default:
		return func(exec.Row) engine.Value { return engine.Null() }
	}
}

// CompilePredicate adapts an Expr expected to evaluate to a bool into
// an exec.Predicate, the three-valued form Filter consumes: a null or
// non-bool result becomes Unknown rather than panicking.
func CompilePredicate(e Expr) exec.Predicate {
	compiled := e.Compile()
	return func(row exec.Row) exec.BoolResult {
		v := compiled(row)
		b, ok := v.AsBool()
		if !ok {
			return exec.Unknown
		}
		if b {
			return exec.True
		}
		return exec.False
	}
}
