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

// Direction is which side of an edge Expand walks from the bound
// source column.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// ExpandSpec configures one Expand operator (spec.md §4.6):
// "{direction, edge_type?, min_hops, max_hops}".
type ExpandSpec struct {
	Direction    Direction
	EdgeType     string // empty means any type
	MinHops      int
	MaxHops      int // MaxHops == MinHops == 1 is a plain single-hop expand
	SrcVar       string
	DstVar       string
	EdgeVar      string // empty if the edge itself isn't bound
	Unique       bool   // plan marks uniqueness: suppress repeated (src,dst) pairs per row
}

// Expand is the push operator implementing spec.md §4.6's Expand:
// "given an input column of source ids and an expansion spec... emits
// a row per discovered destination (and edge, if edge_variable
// bound). For min_hops>0 performs BFS per row up to max_hops; cycles
// are allowed unless the plan marks uniqueness."
type Expand struct {
	store *graph.Store
	spec  ExpandSpec

	pending []*vector.DataChunk
}

// NewExpand returns an Expand operator reading store's forward and/or
// backward adjacency according to spec.Direction.
func NewExpand(store *graph.Store, spec ExpandSpec) *Expand {
	if spec.MaxHops == 0 {
		spec.MaxHops = 1
	}
	if spec.MinHops == 0 {
		spec.MinHops = 1
	}
	return &Expand{store: store, spec: spec}
}

// Push implements PushOperator: for every selected row of chunk, runs
// a bounded BFS from that row's source id and buffers one output
// chunk of discovered (src, dst[, edge]) triples, emitted on the next
// Flush call (expand must see the whole input row before it can size
// its output chunk, so it behaves as a buffering operator per chunk
// rather than a pure streaming one).
func (e *Expand) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	srcVec, ok := chunk.Column(e.spec.SrcVar)
	if !ok {
		return nil, NeedInput, nil
	}
	sel := chunk.Selection()

	type hit struct {
		src, dst engine.NodeId
		edge     engine.EdgeId
	}
	var hits []hit

	for i := 0; i < sel.Len(); i++ {
		row := sel.At(i)
		if !srcVec.Valid(int(row)) {
			continue
		}
		n, _ := srcVec.Get(int(row)).AsInt64()
		src := engine.NodeId(n)
		seen := map[[2]engine.NodeId]bool{}
		e.bfs(src, func(dst engine.NodeId, edge engine.EdgeId) {
			if e.spec.Unique {
				key := [2]engine.NodeId{src, dst}
				if seen[key] {
					return
				}
				seen[key] = true
			}
			hits = append(hits, hit{src: src, dst: dst, edge: edge})
		})
	}

	if len(hits) == 0 {
		return nil, NeedInput, nil
	}

	srcOut := vector.NewValueVector(engine.KInt64, len(hits))
	dstOut := vector.NewValueVector(engine.KInt64, len(hits))
	var edgeOut *vector.ValueVector
	if e.spec.EdgeVar != "" {
		edgeOut = vector.NewValueVector(engine.KInt64, len(hits))
	}
	for i, h := range hits {
		srcOut.Set(i, engine.Int64(int64(h.src)))
		dstOut.Set(i, engine.Int64(int64(h.dst)))
		if edgeOut != nil {
			edgeOut.Set(i, engine.Int64(int64(h.edge)))
		}
	}
	out := vector.NewDataChunk(len(hits))
	out.AddColumn(e.spec.SrcVar, srcOut)
	out.AddColumn(e.spec.DstVar, dstOut)
	if edgeOut != nil {
		out.AddColumn(e.spec.EdgeVar, edgeOut)
	}
	out.SetCount(len(hits))
	e.pending = append(e.pending, out)
	return nil, NeedInput, nil
}

// Flush drains Expand's buffered output chunks one at a time.
func (e *Expand) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	if len(e.pending) == 0 {
		return nil, false, nil
	}
	next := e.pending[0]
	e.pending = e.pending[1:]
	return next, true, nil
}

// bfs walks up to MaxHops from src, calling visit once per (dst, edge)
// discovered at a hop count within [MinHops, MaxHops]. Cycles are
// permitted (a node may be revisited at a different hop count) unless
// Unique narrows that at the caller; the BFS itself never special-cases
// revisits.
func (e *Expand) bfs(src engine.NodeId, visit func(dst engine.NodeId, edge engine.EdgeId)) {
	type frontierEntry struct {
		node engine.NodeId
		edge engine.EdgeId
	}
	frontier := []frontierEntry{{node: src}}
	for hop := 1; hop <= e.spec.MaxHops; hop++ {
		var next []frontierEntry
		for _, fe := range frontier {
			e.neighbors(fe.node, func(dst engine.NodeId, edge engine.EdgeId) {
				if hop >= e.spec.MinHops {
					visit(dst, edge)
				}
				next = append(next, frontierEntry{node: dst, edge: edge})
			})
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
}

func (e *Expand) neighbors(src engine.NodeId, visit func(dst engine.NodeId, edge engine.EdgeId)) {
	var pred adjacency.Predicate
	if e.spec.EdgeType != "" {
		if sym, ok := e.store.Catalog().EdgeTypes().Symbolize(e.spec.EdgeType); ok {
			t := engine.EdgeType(sym)
			pred.Type = &t
		} else {
			return // edge type never interned: no edge can match
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
	switch e.spec.Direction {
	case Outgoing:
		scanOne(e.store.Forward())
	case Incoming:
		scanOne(e.store.Backward())
	case Both:
		scanOne(e.store.Forward())
		scanOne(e.store.Backward())
	}
}
