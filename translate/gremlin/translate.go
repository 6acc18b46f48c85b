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

package gremlin

import (
	"fmt"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
	"github.com/vertexdb/lpg/plan"
)

// Translate parses a fluent Gremlin traversal and lowers it to a
// plan.Op chain, Gremlin's counterpart to a declarative query
// language's front-end translator feeding the same logical IR
// (spec.md §4.7's translator contract).
func Translate(query string) (plan.Op, error) {
	stmt, err := parse(query)
	if err != nil {
		return nil, err
	}
	t := &translator{vars: map[string]string{}}

	if stmt.calls[0].name == "addE" {
		return t.translateAddEdgeTraversal(stmt.calls[0], stmt.calls[1:])
	}

	op, currentVar, err := t.translateSource(stmt.calls[0])
	if err != nil {
		return nil, err
	}

	var pending *pendingEdge
	for _, c := range stmt.calls[1:] {
		if c.name == "by" {
			if t.lastSort == nil {
				return nil, fmt.Errorf("gremlin: by() without a preceding order()")
			}
			key, err := t.translateSortKey(c, currentVar)
			if err != nil {
				return nil, err
			}
			if t.lastSortDefaulted {
				t.lastSort.Keys = []exec.SortKey{key}
				t.lastSortDefaulted = false
			} else {
				t.lastSort.Keys = append(t.lastSort.Keys, key)
			}
			continue
		}

		if c.name == "addE" {
			typ, err := stringArg(c, 0)
			if err != nil {
				return nil, err
			}
			pending = &pendingEdge{edgeType: typ}
			continue
		}

		if pending != nil {
			switch c.name {
			case "from":
				v, err := t.extractFromToVar(c)
				if err != nil {
					return nil, err
				}
				pending.fromVar = v
				continue
			case "to":
				v, err := t.extractFromToVar(c)
				if err != nil {
					return nil, err
				}
				pending.toVar = v
				continue
			case "property":
				key, val, err := t.translatePropertyArgs(c)
				if err != nil {
					return nil, err
				}
				pending.props = append(pending.props, plan.LogicalPropSpec{Key: key, Expr: val})
				continue
			}
			if pending.fromVar == "" || pending.toVar == "" {
				return nil, fmt.Errorf("gremlin: addE() requires from() and to() before the next step")
			}
			edgeVar := t.nextVar()
			op = plan.Chain(&plan.CreateEdge{
				EdgeType: pending.edgeType, SrcVar: pending.fromVar, DstVar: pending.toVar,
				Props: pending.props, OutVar: edgeVar,
			}, op)
			currentVar = edgeVar
			pending = nil
		}

		newOp, newVar, err := t.translateStep(c, op, currentVar)
		if err != nil {
			return nil, err
		}
		op = newOp
		if newVar != "" {
			currentVar = newVar
		}
	}
	if pending != nil {
		if pending.fromVar == "" || pending.toVar == "" {
			return nil, fmt.Errorf("gremlin: addE() requires both from() and to()")
		}
		edgeVar := t.nextVar()
		op = plan.Chain(&plan.CreateEdge{
			EdgeType: pending.edgeType, SrcVar: pending.fromVar, DstVar: pending.toVar,
			Props: pending.props, OutVar: edgeVar,
		}, op)
		currentVar = edgeVar
	}

	if _, ok := op.(*plan.Return); !ok {
		op = plan.Chain(&plan.Return{Columns: []string{currentVar}, Aliases: []string{""}}, op)
	}
	return op, nil
}

// pendingEdge accumulates an addE() step's from()/to()/property()
// modifiers until both endpoints are known, since Gremlin states them
// as separate chained steps rather than one call's arguments.
type pendingEdge struct {
	edgeType string
	fromVar  string
	toVar    string
	props    []plan.LogicalPropSpec
}

// translator carries the running state a single Translate call needs:
// a counter minting fresh column names, the as()-bound label table,
// and a pointer at the most recent order() step so a following by()
// can attach to it.
type translator struct {
	varCounter int
	vars       map[string]string

	lastSort          *plan.Sort
	lastSortDefaulted bool
}

func (t *translator) nextVar() string {
	v := fmt.Sprintf("_v%d", t.varCounter)
	t.varCounter++
	return v
}

func (t *translator) translateSource(c call) (plan.Op, string, error) {
	switch c.name {
	case "V":
		v := t.nextVar()
		var op plan.Op = &plan.Scan{Var: v}
		if len(c.args) > 0 {
			pred, err := t.buildIDFilter(v, c.args)
			if err != nil {
				return nil, "", err
			}
			op = plan.Chain(&plan.Filter{Predicate: pred}, op)
		}
		return op, v, nil

	case "E":
		v := t.nextVar()
		scan := &plan.Scan{Var: v}
		edgeVar := t.nextVar()
		dstVar := t.nextVar()
		op := plan.Chain(&plan.Expand{Spec: exec.ExpandSpec{
			Direction: exec.Both, SrcVar: v, DstVar: dstVar, EdgeVar: edgeVar, MinHops: 1, MaxHops: 1,
		}}, scan)
		if len(c.args) > 0 {
			pred, err := t.buildIDFilter(edgeVar, c.args)
			if err != nil {
				return nil, "", err
			}
			op = plan.Chain(&plan.Filter{Predicate: pred}, op)
		}
		return op, edgeVar, nil

	case "addV":
		v := t.nextVar()
		var labels []string
		if len(c.args) > 0 {
			l, err := stringArg(c, 0)
			if err != nil {
				return nil, "", err
			}
			labels = []string{l}
		}
		return &plan.CreateNode{Labels: labels, OutVar: v}, v, nil

	case "addE":
		return nil, "", fmt.Errorf("gremlin: addE() requires from() and to() steps")

	default:
		return nil, "", fmt.Errorf("gremlin: unknown traversal source %q", c.name)
	}
}

// translateAddEdgeTraversal handles the bare g.addE(...).from(...).to(...)
// form, which has no preceding V()/E() source to anchor the chain --
// only a scan placeholder feeding the single CreateEdge it produces.
func (t *translator) translateAddEdgeTraversal(src call, steps []call) (plan.Op, error) {
	edgeType, err := stringArg(src, 0)
	if err != nil {
		return nil, err
	}
	var fromVar, toVar string
	var props []plan.LogicalPropSpec
	for _, s := range steps {
		switch s.name {
		case "from":
			v, err := t.extractFromToVar(s)
			if err != nil {
				return nil, err
			}
			fromVar = v
		case "to":
			v, err := t.extractFromToVar(s)
			if err != nil {
				return nil, err
			}
			toVar = v
		case "property":
			key, val, err := t.translatePropertyArgs(s)
			if err != nil {
				return nil, err
			}
			props = append(props, plan.LogicalPropSpec{Key: key, Expr: val})
		}
	}
	if fromVar == "" || toVar == "" {
		return nil, fmt.Errorf("gremlin: addE() requires both from() and to()")
	}

	scanVar := t.nextVar()
	edgeVar := t.nextVar()
	ce := plan.Chain(&plan.CreateEdge{EdgeType: edgeType, SrcVar: fromVar, DstVar: toVar, Props: props, OutVar: edgeVar}, &plan.Scan{Var: scanVar})
	return plan.Chain(&plan.Return{Columns: []string{edgeVar}, Aliases: []string{""}}, ce), nil
}

// extractFromToVar resolves a from()/to() argument: a quoted label
// names a variable bound earlier via as(); a bare identifier is
// accepted the same way. Only the common label-reference idiom is
// supported -- a nested traversal as a from()/to() argument isn't.
func (t *translator) extractFromToVar(c call) (string, error) {
	if len(c.args) != 1 {
		return "", fmt.Errorf("gremlin: %s() takes exactly one argument", c.name)
	}
	a := c.args[0]
	var label string
	switch {
	case a.isRef:
		label = a.ref
	case a.value.Kind() == engine.KString:
		label, _ = a.value.AsString()
	default:
		return "", fmt.Errorf("gremlin: %s() argument must be a label reference", c.name)
	}
	if phys, ok := t.vars[label]; ok {
		return phys, nil
	}
	return label, nil
}

func stringArg(c call, i int) (string, error) {
	if i >= len(c.args) {
		return "", fmt.Errorf("gremlin: %s() missing argument %d", c.name, i)
	}
	s, ok := c.args[i].value.AsString()
	if !ok {
		return "", fmt.Errorf("gremlin: %s() argument %d must be a string", c.name, i)
	}
	return s, nil
}

func intArg(c call, i int) (int64, error) {
	if i >= len(c.args) {
		return 0, fmt.Errorf("gremlin: %s() missing argument %d", c.name, i)
	}
	n, ok := c.args[i].value.AsInt64()
	if !ok {
		return 0, fmt.Errorf("gremlin: %s() argument %d must be an integer", c.name, i)
	}
	return n, nil
}

func (t *translator) buildIDFilter(idVar string, args []arg) (plan.Expr, error) {
	idExpr := plan.Id{Entity: plan.Variable{Name: idVar}}
	if len(args) == 1 {
		return plan.Binary{Op: plan.OpEq, Left: idExpr, Right: plan.Literal{Value: args[0].value}}, nil
	}
	items := make([]plan.Expr, len(args))
	for i, a := range args {
		items[i] = plan.Literal{Value: a.value}
	}
	return plan.Binary{Op: plan.OpIn, Left: idExpr, Right: plan.List{Items: items}}, nil
}

func (t *translator) translateSortKey(by call, currentVar string) (exec.SortKey, error) {
	col := currentVar
	if len(by.args) > 0 {
		if s, ok := by.args[0].value.AsString(); ok {
			col = s
		}
	}
	desc := false
	if len(by.args) > 1 {
		if s, ok := by.args[1].value.AsString(); ok && s == "desc" {
			desc = true
		}
	}
	return exec.SortKey{Column: col, Desc: desc}, nil
}

func (t *translator) translatePropertyArgs(c call) (string, plan.Expr, error) {
	if len(c.args) != 2 {
		return "", nil, fmt.Errorf("gremlin: property() takes exactly 2 arguments")
	}
	key, ok := c.args[0].value.AsString()
	if !ok {
		return "", nil, fmt.Errorf("gremlin: property() key must be a string")
	}
	return key, plan.Literal{Value: c.args[1].value}, nil
}

// translateStep lowers one fluent step into its logical operator,
// returning the new current-variable binding when the step introduces
// one (an empty string means the current binding is unchanged).
func (t *translator) translateStep(c call, input plan.Op, currentVar string) (plan.Op, string, error) {
	switch c.name {
	case "out", "in", "both":
		dir := map[string]exec.Direction{"out": exec.Outgoing, "in": exec.Incoming, "both": exec.Both}[c.name]
		target := t.nextVar()
		edgeType := ""
		if len(c.args) > 0 {
			edgeType, _ = c.args[0].value.AsString()
		}
		op := plan.Chain(&plan.Expand{Spec: exec.ExpandSpec{
			Direction: dir, EdgeType: edgeType, SrcVar: currentVar, DstVar: target, MinHops: 1, MaxHops: 1,
		}}, input)
		return op, target, nil

	case "outE", "inE", "bothE":
		dir := map[string]exec.Direction{"outE": exec.Outgoing, "inE": exec.Incoming, "bothE": exec.Both}[c.name]
		edgeVar := t.nextVar()
		target := t.nextVar()
		edgeType := ""
		if len(c.args) > 0 {
			edgeType, _ = c.args[0].value.AsString()
		}
		op := plan.Chain(&plan.Expand{Spec: exec.ExpandSpec{
			Direction: dir, EdgeType: edgeType, SrcVar: currentVar, DstVar: target, EdgeVar: edgeVar, MinHops: 1, MaxHops: 1,
		}}, input)
		return op, edgeVar, nil

	case "has":
		pred, err := t.translateHas(c, currentVar)
		if err != nil {
			return nil, "", err
		}
		return plan.Chain(&plan.Filter{Predicate: pred}, input), "", nil

	case "hasLabel":
		items := make([]plan.Expr, len(c.args))
		for i, a := range c.args {
			items[i] = plan.Literal{Value: a.value}
		}
		labelsExpr := plan.Labels{Entity: plan.Variable{Name: currentVar}}
		var pred plan.Expr
		if len(items) == 1 {
			pred = plan.Binary{Op: plan.OpEq, Left: labelsExpr, Right: items[0]}
		} else {
			pred = plan.Binary{Op: plan.OpIn, Left: labelsExpr, Right: plan.List{Items: items}}
		}
		return plan.Chain(&plan.Filter{Predicate: pred}, input), "", nil

	case "hasId":
		pred, err := t.buildIDFilter(currentVar, c.args)
		if err != nil {
			return nil, "", err
		}
		return plan.Chain(&plan.Filter{Predicate: pred}, input), "", nil

	case "hasNot":
		key, err := stringArg(c, 0)
		if err != nil {
			return nil, "", err
		}
		pred := plan.Unary{Op: plan.OpIsNull, Operand: plan.Property{Entity: plan.Variable{Name: currentVar}, Key: key}}
		return plan.Chain(&plan.Filter{Predicate: pred}, input), "", nil

	case "dedup":
		return plan.Chain(&plan.Distinct{Columns: []string{currentVar}}, input), "", nil

	case "limit":
		n, err := intArg(c, 0)
		if err != nil {
			return nil, "", err
		}
		return plan.Chain(&plan.Limit{N: int(n)}, input), "", nil

	case "skip":
		n, err := intArg(c, 0)
		if err != nil {
			return nil, "", err
		}
		return plan.Chain(&plan.Skip{N: int(n)}, input), "", nil

	case "range":
		start, err := intArg(c, 0)
		if err != nil {
			return nil, "", err
		}
		end, err := intArg(c, 1)
		if err != nil {
			return nil, "", err
		}
		skipped := plan.Chain(&plan.Skip{N: int(start)}, input)
		return plan.Chain(&plan.Limit{N: int(end - start)}, skipped), "", nil

	case "values":
		cols := make([]string, len(c.args))
		for i, a := range c.args {
			cols[i], _ = a.value.AsString()
		}
		return plan.Chain(&plan.Return{Columns: cols, Aliases: make([]string, len(cols))}, input), "", nil

	case "id":
		return plan.Chain(&plan.Return{Columns: []string{"id(" + currentVar + ")"}, Aliases: []string{"id"}}, input), "", nil

	case "label":
		return plan.Chain(&plan.Return{Columns: []string{"labels(" + currentVar + ")"}, Aliases: []string{"label"}}, input), "", nil

	case "count":
		return plan.Chain(&plan.Aggregate{Specs: []exec.AggSpec{{Kind: exec.AccumCount, Column: currentVar, As: "count"}}}, input), "", nil

	case "sum":
		return plan.Chain(&plan.Aggregate{Specs: []exec.AggSpec{{Kind: exec.AccumSum, Column: currentVar, As: "sum"}}}, input), "", nil

	case "mean":
		return plan.Chain(&plan.Aggregate{Specs: []exec.AggSpec{{Kind: exec.AccumAvg, Column: currentVar, As: "mean"}}}, input), "", nil

	case "min":
		return plan.Chain(&plan.Aggregate{Specs: []exec.AggSpec{{Kind: exec.AccumMin, Column: currentVar, As: "min"}}}, input), "", nil

	case "max":
		return plan.Chain(&plan.Aggregate{Specs: []exec.AggSpec{{Kind: exec.AccumMax, Column: currentVar, As: "max"}}}, input), "", nil

	case "fold":
		return plan.Chain(&plan.Aggregate{Specs: []exec.AggSpec{{Kind: exec.AccumCollect, Column: currentVar, As: "fold"}}}, input), "", nil

	case "order":
		sort := &plan.Sort{Keys: []exec.SortKey{{Column: currentVar}}}
		t.lastSort = sort
		t.lastSortDefaulted = true
		return plan.Chain(sort, input), "", nil

	case "as":
		label, err := stringArg(c, 0)
		if err != nil {
			return nil, "", err
		}
		// as() only records an alias for later from()/to() lookups; the
		// physical column binding (currentVar) is unchanged, so chained
		// steps after as() keep working the same way they would without it.
		t.vars[label] = currentVar
		return input, "", nil

	case "property":
		key, val, err := t.translatePropertyArgs(c)
		if err != nil {
			return nil, "", err
		}
		if cn, ok := input.(*plan.CreateNode); ok {
			cn.Props = append(cn.Props, plan.LogicalPropSpec{Key: key, Expr: val})
			return cn, "", nil
		}
		return plan.Chain(&plan.SetProperty{TargetVar: currentVar, Key: key, Expr: val}, input), "", nil

	case "drop":
		return plan.Chain(&plan.DeleteNode{TargetVar: currentVar}, input), "", nil

	case "addV":
		v := t.nextVar()
		var labels []string
		if len(c.args) > 0 {
			l, _ := c.args[0].value.AsString()
			labels = []string{l}
		}
		return plan.Chain(&plan.CreateNode{Labels: labels, OutVar: v}, input), v, nil

	default:
		// unrecognized steps pass the chain through unchanged, the way
		// a translator tolerates syntax it doesn't yet model rather
		// than rejecting the whole traversal.
		return input, "", nil
	}
}

func (t *translator) translateHas(c call, currentVar string) (plan.Expr, error) {
	switch len(c.args) {
	case 1:
		key, err := stringArg(c, 0)
		if err != nil {
			return nil, err
		}
		return plan.Unary{Op: plan.OpIsNotNull, Operand: plan.Property{Entity: plan.Variable{Name: currentVar}, Key: key}}, nil
	case 2:
		key, err := stringArg(c, 0)
		if err != nil {
			return nil, err
		}
		prop := plan.Property{Entity: plan.Variable{Name: currentVar}, Key: key}
		if c.args[1].call != nil {
			return t.translatePredicate(*c.args[1].call, prop)
		}
		return plan.Binary{Op: plan.OpEq, Left: prop, Right: plan.Literal{Value: c.args[1].value}}, nil
	case 3:
		label, err := stringArg(c, 0)
		if err != nil {
			return nil, err
		}
		key, err := stringArg(c, 1)
		if err != nil {
			return nil, err
		}
		labelCheck := plan.Binary{Op: plan.OpEq, Left: plan.Labels{Entity: plan.Variable{Name: currentVar}}, Right: plan.Literal{Value: engine.String(label)}}
		propCheck := plan.Binary{Op: plan.OpEq, Left: plan.Property{Entity: plan.Variable{Name: currentVar}, Key: key}, Right: plan.Literal{Value: c.args[2].value}}
		return plan.Binary{Op: plan.OpAnd, Left: labelCheck, Right: propCheck}, nil
	default:
		return nil, fmt.Errorf("gremlin: has() takes 1-3 arguments")
	}
}

func (t *translator) translatePredicate(c call, operand plan.Expr) (plan.Expr, error) {
	switch c.name {
	case "eq":
		return plan.Binary{Op: plan.OpEq, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "neq":
		return plan.Binary{Op: plan.OpNeq, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "lt":
		return plan.Binary{Op: plan.OpLt, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "lte":
		return plan.Binary{Op: plan.OpLte, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "gt":
		return plan.Binary{Op: plan.OpGt, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "gte":
		return plan.Binary{Op: plan.OpGte, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "within":
		items := make([]plan.Expr, len(c.args))
		for i, a := range c.args {
			items[i] = plan.Literal{Value: a.value}
		}
		return plan.Binary{Op: plan.OpIn, Left: operand, Right: plan.List{Items: items}}, nil
	case "without":
		items := make([]plan.Expr, len(c.args))
		for i, a := range c.args {
			items[i] = plan.Literal{Value: a.value}
		}
		return plan.Unary{Op: plan.OpNot, Operand: plan.Binary{Op: plan.OpIn, Left: operand, Right: plan.List{Items: items}}}, nil
	case "between":
		if len(c.args) != 2 {
			return nil, fmt.Errorf("gremlin: between() takes exactly 2 arguments")
		}
		return plan.Binary{
			Op:    plan.OpAnd,
			Left:  plan.Binary{Op: plan.OpGte, Left: operand, Right: plan.Literal{Value: c.args[0].value}},
			Right: plan.Binary{Op: plan.OpLt, Left: operand, Right: plan.Literal{Value: c.args[1].value}},
		}, nil
	case "containing":
		return plan.Binary{Op: plan.OpContains, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "startingWith":
		return plan.Binary{Op: plan.OpStartsWith, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "endingWith":
		return plan.Binary{Op: plan.OpEndsWith, Left: operand, Right: plan.Literal{Value: c.args[0].value}}, nil
	case "and", "or":
		if len(c.args) == 0 || c.args[0].call == nil {
			return nil, fmt.Errorf("gremlin: %s() requires nested predicate arguments", c.name)
		}
		op := plan.OpAnd
		if c.name == "or" {
			op = plan.OpOr
		}
		result, err := t.translatePredicate(*c.args[0].call, operand)
		if err != nil {
			return nil, err
		}
		for _, a := range c.args[1:] {
			if a.call == nil {
				return nil, fmt.Errorf("gremlin: %s() requires nested predicate arguments", c.name)
			}
			right, err := t.translatePredicate(*a.call, operand)
			if err != nil {
				return nil, err
			}
			result = plan.Binary{Op: op, Left: result, Right: right}
		}
		return result, nil
	case "not":
		if len(c.args) == 0 || c.args[0].call == nil {
			return nil, fmt.Errorf("gremlin: not() requires a nested predicate argument")
		}
		inner, err := t.translatePredicate(*c.args[0].call, operand)
		if err != nil {
			return nil, err
		}
		return plan.Unary{Op: plan.OpNot, Operand: inner}, nil
	default:
		return nil, fmt.Errorf("gremlin: unsupported predicate %q", c.name)
	}
}
