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
	"testing"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/graph"
	"github.com/vertexdb/lpg/vector"
)

func TestOptionalExpandPadsUnmatchedRows(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	a := store.CreateNode(nil, nil)
	b := store.CreateNode(nil, nil)
	c := store.CreateNode(nil, nil) // no outgoing edges
	store.CreateEdge("knows", a, b, nil)

	srcVec := vector.NewValueVector(engine.KInt64, 2)
	srcVec.Set(0, engine.Int64(int64(a)))
	srcVec.Set(1, engine.Int64(int64(c)))
	chunk := vector.NewDataChunk(2)
	chunk.AddColumn("n", srcVec)
	chunk.SetCount(2)

	op := NewOptionalExpand(store, ExpandSpec{Direction: Outgoing, SrcVar: "n", DstVar: "m"})
	if _, _, err := op.Push(testContext(), chunk); err != nil {
		t.Fatal(err)
	}
	out, more, err := op.Flush(testContext())
	if err != nil {
		t.Fatal(err)
	}
	if !more {
		t.Fatal("expected one flushed chunk")
	}
	if out.Len() != 2 {
		t.Fatalf("got %d rows, want 2 (one per source row, matched or not)", out.Len())
	}
	mvec, _ := out.Column("m")
	if !mvec.Valid(0) {
		t.Fatal("row for a should have matched b")
	}
	if mvec.Valid(1) {
		t.Fatal("row for c should be null (no outgoing edges)")
	}
}
