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

func oneRowChunk() *vector.DataChunk {
	c := vector.NewDataChunk(1)
	c.SetCount(1)
	return c
}

func TestCreateNodeBindsNewId(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	nameExpr := func(row Row) engine.Value { return engine.String("alice") }
	op := NewCreateNode(store, []string{"Person"}, []PropSpec{{Key: "name", Expr: nameExpr}}, "n")

	out, outcome, err := op.Push(testContext(), oneRowChunk())
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Continue {
		t.Fatalf("outcome = %v, want Continue", outcome)
	}
	idv, ok := out.Get("n", 0)
	if !ok {
		t.Fatal("expected bound column n")
	}
	id, _ := idv.AsInt64()
	nodeID := engine.NodeId(id)
	if !store.Exists(nodeID) {
		t.Fatal("created node does not exist in store")
	}
	if !store.HasLabel(nodeID, "Person") {
		t.Fatal("created node missing label Person")
	}
	prop, ok := store.NodeProperty(nodeID, "name")
	if !ok {
		t.Fatal("expected name property")
	}
	if prop.String_() != "alice" {
		t.Fatalf("got name=%q want alice", prop.String_())
	}
}

func TestCreateEdgeBindsEndpointsAndNewId(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	a := store.CreateNode([]string{"Person"}, nil)
	b := store.CreateNode([]string{"Person"}, nil)

	srcVec := vector.NewValueVector(engine.KInt64, 1)
	srcVec.Set(0, engine.Int64(int64(a)))
	dstVec := vector.NewValueVector(engine.KInt64, 1)
	dstVec.Set(0, engine.Int64(int64(b)))
	chunk := vector.NewDataChunk(1)
	chunk.AddColumn("src", srcVec)
	chunk.AddColumn("dst", dstVec)
	chunk.SetCount(1)

	op := NewCreateEdge(store, "knows", "src", "dst", nil, "e")
	out, _, err := op.Push(testContext(), chunk)
	if err != nil {
		t.Fatal(err)
	}
	ev, ok := out.Get("e", 0)
	if !ok {
		t.Fatal("expected bound column e")
	}
	eid, _ := ev.AsInt64()
	typ, src, dst, ok := store.Edge(engine.EdgeId(eid))
	if !ok || typ != "knows" || src != a || dst != b {
		t.Fatalf("got typ=%q src=%d dst=%d ok=%v, want knows %d %d true", typ, src, dst, ok, a, b)
	}
}

func TestSetPropertyUpdatesStore(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	n := store.CreateNode([]string{"Person"}, nil)

	idVec := vector.NewValueVector(engine.KInt64, 1)
	idVec.Set(0, engine.Int64(int64(n)))
	chunk := vector.NewDataChunk(1)
	chunk.AddColumn("n", idVec)
	chunk.SetCount(1)

	op := NewSetProperty(store, NodeEntity, "n", "age", func(row Row) engine.Value { return engine.Int64(42) })
	if _, _, err := op.Push(testContext(), chunk); err != nil {
		t.Fatal(err)
	}
	v, ok := store.NodeProperty(n, "age")
	if !ok {
		t.Fatal("expected age property")
	}
	age, _ := v.AsInt64()
	if age != 42 {
		t.Fatalf("got age=%d want 42", age)
	}
}

func TestDeleteNodeRemovesIt(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	n := store.CreateNode([]string{"Person"}, nil)

	idVec := vector.NewValueVector(engine.KInt64, 1)
	idVec.Set(0, engine.Int64(int64(n)))
	chunk := vector.NewDataChunk(1)
	chunk.AddColumn("n", idVec)
	chunk.SetCount(1)

	op := NewDelete(store, NodeEntity, "n")
	if _, _, err := op.Push(testContext(), chunk); err != nil {
		t.Fatal(err)
	}
	if store.Exists(n) {
		t.Fatal("node should have been deleted")
	}
}
