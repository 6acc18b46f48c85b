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

package exec

import (
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/vector"
)

// Mutator is the subset of *graph.Store's method set the write
// operators need. It exists so a caller that wants to observe every
// mutation a compiled plan makes (a write-ahead log, an audit trail)
// can hand the operators a decorator instead of the Store itself;
// *graph.Store satisfies Mutator with no changes.
type Mutator interface {
	CreateNode(labels []string, props map[string]engine.Value) engine.NodeId
	CreateEdge(typ string, src, dst engine.NodeId, props map[string]engine.Value) engine.EdgeId
	SetNodeProperty(id engine.NodeId, key string, v engine.Value)
	SetEdgeProperty(id engine.EdgeId, key string, v engine.Value)
	DeleteNode(id engine.NodeId)
	DeleteEdge(id engine.EdgeId)
}

// ValueExpr evaluates a single row to a value, the same role the
// translator's compiled LogicalExpression tree plays for Filter's
// Predicate: write operators are agnostic to expression syntax and
// only consume the compiled closure.
type ValueExpr func(row Row) engine.Value

// PropSpec is one property to set when creating or updating an
// entity: a key and the expression producing its value for a given
// row.
type PropSpec struct {
	Key  string
	Expr ValueExpr
}

func evalProps(row Row, props []PropSpec) map[string]engine.Value {
	m := make(map[string]engine.Value, len(props))
	for _, p := range props {
		m[p.Key] = p.Expr(row)
	}
	return m
}

// passthrough materializes chunk down to exactly its selected rows
// (so the write operator's own output column lines up 1:1 with every
// other bound column) and returns a fresh chunk of the same row count
// with every input column already copied in.
func passthrough(chunk *vector.DataChunk) (*vector.DataChunk, int) {
	mat := chunk.Materialize()
	n := mat.Len()
	out := vector.NewDataChunk(n)
	for _, col := range mat.Columns() {
		out.AddColumn(col.Name, col.Vec)
	}
	return out, n
}

// CreateNode implements spec.md §4.6's Create-node write operator: for
// every input row it allocates one node carrying Labels and the
// evaluated Props, binding the new id to OutVar alongside whatever the
// rest of the pattern already bound (spec.md: write operators "emit
// one row per affected entity").
type CreateNode struct {
	store  Mutator
	labels []string
	props  []PropSpec
	outVar string
}

// NewCreateNode returns a CreateNode operator.
func NewCreateNode(store Mutator, labels []string, props []PropSpec, outVar string) *CreateNode {
	return &CreateNode{store: store, labels: labels, props: props, outVar: outVar}
}

// Push implements PushOperator.
func (c *CreateNode) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	if chunk.Selection().Len() == 0 {
		return nil, NeedInput, nil
	}
	sel := chunk.Selection()
	out, n := passthrough(chunk)
	idOut := vector.NewValueVector(engine.KInt64, n)
	for i := 0; i < n; i++ {
		row := Row{Chunk: chunk, Index: int(sel.At(i))}
		id := c.store.CreateNode(c.labels, evalProps(row, c.props))
		idOut.Set(i, engine.Int64(int64(id)))
	}
	out.AddColumn(c.outVar, idOut)
	out.SetCount(n)
	return out, Continue, nil
}

// Flush implements PushOperator; CreateNode holds no buffered state.
func (c *CreateNode) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}

// CreateEdge implements spec.md §4.6's Create-edge write operator:
// SrcVar and DstVar must already be bound node ids in the input row
// (spec.md Open Question, resolved in DESIGN.md: a traversal-based
// from()/to() with no bound source is rejected at translation time,
// never reaches this operator).
type CreateEdge struct {
	store          Mutator
	edgeType       string
	srcVar, dstVar string
	props          []PropSpec
	outVar         string
}

// NewCreateEdge returns a CreateEdge operator.
func NewCreateEdge(store Mutator, edgeType, srcVar, dstVar string, props []PropSpec, outVar string) *CreateEdge {
	return &CreateEdge{store: store, edgeType: edgeType, srcVar: srcVar, dstVar: dstVar, props: props, outVar: outVar}
}

// Push implements PushOperator.
func (c *CreateEdge) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	sel := chunk.Selection()
	if sel.Len() == 0 {
		return nil, NeedInput, nil
	}
	out, n := passthrough(chunk)
	idOut := vector.NewValueVector(engine.KInt64, n)
	for i := 0; i < n; i++ {
		row := Row{Chunk: chunk, Index: int(sel.At(i))}
		srcV, _ := row.Get(c.srcVar)
		dstV, _ := row.Get(c.dstVar)
		srcN, _ := srcV.AsInt64()
		dstN, _ := dstV.AsInt64()
		id := c.store.CreateEdge(c.edgeType, engine.NodeId(srcN), engine.NodeId(dstN), evalProps(row, c.props))
		idOut.Set(i, engine.Int64(int64(id)))
	}
	out.AddColumn(c.outVar, idOut)
	out.SetCount(n)
	return out, Continue, nil
}

// Flush implements PushOperator; CreateEdge holds no buffered state.
func (c *CreateEdge) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}

// EntityKind distinguishes which id space SetProperty and Delete
// operate on.
type EntityKind int

const (
	NodeEntity EntityKind = iota
	EdgeEntity
)

// SetProperty implements spec.md §4.6's property-update write
// operator, routing through Store.SetNodeProperty or
// SetEdgeProperty depending on Kind.
type SetProperty struct {
	store     Mutator
	kind      EntityKind
	targetVar string
	key       string
	expr      ValueExpr
}

// NewSetProperty returns a SetProperty operator.
func NewSetProperty(store Mutator, kind EntityKind, targetVar, key string, expr ValueExpr) *SetProperty {
	return &SetProperty{store: store, kind: kind, targetVar: targetVar, key: key, expr: expr}
}

// Push implements PushOperator.
func (s *SetProperty) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	sel := chunk.Selection()
	if sel.Len() == 0 {
		return nil, NeedInput, nil
	}
	out, n := passthrough(chunk)
	for i := 0; i < n; i++ {
		row := Row{Chunk: chunk, Index: int(sel.At(i))}
		idv, ok := row.Get(s.targetVar)
		if !ok || idv.IsNull() {
			continue
		}
		id, _ := idv.AsInt64()
		v := s.expr(row)
		switch s.kind {
		case NodeEntity:
			s.store.SetNodeProperty(engine.NodeId(id), s.key, v)
		case EdgeEntity:
			s.store.SetEdgeProperty(engine.EdgeId(id), s.key, v)
		}
	}
	out.SetCount(n)
	return out, Continue, nil
}

// Flush implements PushOperator; SetProperty holds no buffered state.
func (s *SetProperty) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}

// Delete implements spec.md §4.6's delete write operator for either
// node or edge ids bound to TargetVar, emitting one row per affected
// entity carrying the now-deleted id (still readable as a plain
// value, even though the entity no longer exists in the Store).
type Delete struct {
	store     Mutator
	kind      EntityKind
	targetVar string
}

// NewDelete returns a Delete operator.
func NewDelete(store Mutator, kind EntityKind, targetVar string) *Delete {
	return &Delete{store: store, kind: kind, targetVar: targetVar}
}

// Push implements PushOperator.
func (d *Delete) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	sel := chunk.Selection()
	if sel.Len() == 0 {
		return nil, NeedInput, nil
	}
	out, n := passthrough(chunk)
	for i := 0; i < n; i++ {
		row := Row{Chunk: chunk, Index: int(sel.At(i))}
		idv, ok := row.Get(d.targetVar)
		if !ok || idv.IsNull() {
			continue
		}
		id, _ := idv.AsInt64()
		switch d.kind {
		case NodeEntity:
			d.store.DeleteNode(engine.NodeId(id))
		case EdgeEntity:
			d.store.DeleteEdge(engine.EdgeId(id))
		}
	}
	out.SetCount(n)
	return out, Continue, nil
}

// Flush implements PushOperator; Delete holds no buffered state.
func (d *Delete) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}
