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
	"github.com/vertexdb/lpg/graph"
	"github.com/vertexdb/lpg/vector"
)

// NodeScan is the Source operator that iterates the LPG Store by
// optional label, emitting chunks of (NodeId, bound-variable columns)
// (spec.md §4.6). The node id list is materialized once, when
// NewNodeScan builds the scan, rather than streamed from the store, matching the
// snapshot-consistency guarantee a transaction begin is supposed to
// provide (spec.md §5: "reads see a consistent snapshot taken at
// transaction begin").
type NodeScan struct {
	store   *graph.Store
	ids     []engine.NodeId
	cursor  int
	varName string // column name the scanned NodeId is bound to
}

// NewNodeScan returns a NodeScan over every live node carrying label
// (or every node, if label is empty), binding the scanned id to
// varName.
func NewNodeScan(store *graph.Store, label, varName string) *NodeScan {
	return &NodeScan{store: store, ids: store.NodeIds(label), varName: varName}
}

// Pull implements Source.
func (s *NodeScan) Pull(ctx *Context) (*vector.DataChunk, bool, error) {
	if ctx.Cancelled() {
		return nil, false, ErrCancelled
	}
	if s.cursor >= len(s.ids) {
		return nil, false, nil
	}
	size := ctx.ChunkSizeHint
	if size <= 0 {
		size = vector.DefaultCapacity
	}
	n := size
	if remaining := len(s.ids) - s.cursor; n > remaining {
		n = remaining
	}

	vec := vector.NewValueVector(engine.KInt64, n)
	for i := 0; i < n; i++ {
		id := s.ids[s.cursor+i]
		vec.Set(i, engine.Int64(int64(id)))
	}
	s.cursor += n

	chunk := vector.NewDataChunk(n)
	chunk.AddColumn(s.varName, vec)
	chunk.SetCount(n)
	return chunk, true, nil
}

// Morsels splits the scan's node id list into up to n disjoint,
// roughly equal ranges for the morsel scheduler (spec.md §4.8:
// "morsels (disjoint id ranges or adjacency slices)"). Each returned
// NodeScan owns a private cursor over its own slice.
func (s *NodeScan) Morsels(n int) []*NodeScan {
	if n <= 0 || n > len(s.ids) {
		n = len(s.ids)
	}
	if n == 0 {
		return nil
	}
	out := make([]*NodeScan, 0, n)
	base := len(s.ids) / n
	rem := len(s.ids) % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		out = append(out, &NodeScan{store: s.store, ids: s.ids[start : start+size], varName: s.varName})
		start += size
	}
	return out
}
