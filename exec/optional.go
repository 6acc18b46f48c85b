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
	"github.com/vertexdb/lpg/adjacency"
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/graph"
	"github.com/vertexdb/lpg/vector"
)

// OptionalExpand is Expand's left-outer counterpart: every selected
// input row survives even when the expansion finds nothing for it,
// with DstVar (and EdgeVar, if bound) left null -- Gremlin's
// optional() step (spec.md's Non-goals do not exclude optional
// traversal). Unlike Expand it performs a single hop only; a
// multi-hop optional traversal is out of scope for this operator.
type OptionalExpand struct {
	store *graph.Store
	spec  ExpandSpec

	pending []*vector.DataChunk
}

// NewOptionalExpand returns an OptionalExpand operator.
func NewOptionalExpand(store *graph.Store, spec ExpandSpec) *OptionalExpand {
	return &OptionalExpand{store: store, spec: spec}
}

// Push implements PushOperator.
func (o *OptionalExpand) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	srcVec, ok := chunk.Column(o.spec.SrcVar)
	if !ok {
		return nil, NeedInput, nil
	}
	sel := chunk.Selection()

	type hit struct {
		src    engine.NodeId
		dst    engine.NodeId
		edge   engine.EdgeId
		hasDst bool
	}
	var hits []hit

	for i := 0; i < sel.Len(); i++ {
		row := sel.At(i)
		if !srcVec.Valid(int(row)) {
			hits = append(hits, hit{})
			continue
		}
		n, _ := srcVec.Get(int(row)).AsInt64()
		src := engine.NodeId(n)
		matched := false
		o.neighbors(src, func(dst engine.NodeId, edge engine.EdgeId) {
			matched = true
			hits = append(hits, hit{src: src, dst: dst, edge: edge, hasDst: true})
		})
		if !matched {
			hits = append(hits, hit{src: src})
		}
	}

	if len(hits) == 0 {
		return nil, NeedInput, nil
	}

	srcOut := vector.NewValueVector(engine.KInt64, len(hits))
	dstOut := vector.NewValueVector(engine.KInt64, len(hits))
	var edgeOut *vector.ValueVector
	if o.spec.EdgeVar != "" {
		edgeOut = vector.NewValueVector(engine.KInt64, len(hits))
	}
	for i, h := range hits {
		srcOut.Set(i, engine.Int64(int64(h.src)))
		if h.hasDst {
			dstOut.Set(i, engine.Int64(int64(h.dst)))
			if edgeOut != nil {
				edgeOut.Set(i, engine.Int64(int64(h.edge)))
			}
		} else {
			dstOut.Set(i, engine.Null())
			if edgeOut != nil {
				edgeOut.Set(i, engine.Null())
			}
		}
	}
	out := vector.NewDataChunk(len(hits))
	out.AddColumn(o.spec.SrcVar, srcOut)
	out.AddColumn(o.spec.DstVar, dstOut)
	if edgeOut != nil {
		out.AddColumn(o.spec.EdgeVar, edgeOut)
	}
	out.SetCount(len(hits))
	o.pending = append(o.pending, out)
	return nil, NeedInput, nil
}

// Flush drains OptionalExpand's buffered output chunks one at a time.
func (o *OptionalExpand) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	if len(o.pending) == 0 {
		return nil, false, nil
	}
	next := o.pending[0]
	o.pending = o.pending[1:]
	return next, true, nil
}

func (o *OptionalExpand) neighbors(src engine.NodeId, visit func(dst engine.NodeId, edge engine.EdgeId)) {
	var pred adjacency.Predicate
	if o.spec.EdgeType != "" {
		if sym, ok := o.store.Catalog().EdgeTypes().Symbolize(o.spec.EdgeType); ok {
			t := engine.EdgeType(sym)
			pred.Type = &t
		} else {
			return
		}
	}
	scanOne := func(adj *adjacency.Adjacency) {
		if adj == nil {
			return
		}
		adj.Scan(src, pred, func(t adjacency.Triple) bool {
			visit(t.Dst, t.Edge)
			return true
		})
	}
	switch o.spec.Direction {
	case Outgoing:
		scanOne(o.store.Forward())
	case Incoming:
		scanOne(o.store.Backward())
	case Both:
		scanOne(o.store.Forward())
		scanOne(o.store.Backward())
	}
}
