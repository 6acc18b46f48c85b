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
	"context"
	"testing"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
	"github.com/vertexdb/lpg/graph"
	"github.com/vertexdb/lpg/plan"
)

func testCtx() *exec.Context { return &exec.Context{Context: context.Background()} }

func runQuery(t *testing.T, store *graph.Store, query string) []exec.Row {
	t.Helper()
	op, err := Translate(query)
	if err != nil {
		t.Fatalf("Translate(%q): %v", query, err)
	}
	src, ops, err := plan.Compile(op, store, nil, nil)
	if err != nil {
		t.Fatalf("Compile(%q): %v", query, err)
	}
	sink := exec.NewCursorSink()
	pipe := &exec.Pipeline{Source: src, Ops: ops, Sink: sink}
	if err := pipe.Run(testCtx()); err != nil {
		t.Fatalf("Run(%q): %v", query, err)
	}
	var rows []exec.Row
	for {
		c, ok := sink.Next()
		if !ok {
			break
		}
		for i := 0; i < c.Len(); i++ {
			rows = append(rows, exec.Row{Chunk: c, Index: i})
		}
	}
	return rows
}

func TestTranslateVHasLabel(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	store.CreateNode([]string{"Person"}, nil)
	store.CreateNode([]string{"Person"}, nil)
	store.CreateNode([]string{"City"}, nil)

	rows := runQuery(t, store, "g.V().hasLabel('Person')")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}

func TestTranslateHasWithPredicate(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	store.CreateNode([]string{"Person"}, map[string]engine.Value{"age": engine.Int64(10)})
	store.CreateNode([]string{"Person"}, map[string]engine.Value{"age": engine.Int64(25)})
	store.CreateNode([]string{"Person"}, map[string]engine.Value{"age": engine.Int64(40)})

	rows := runQuery(t, store, "g.V().hasLabel('Person').has('age', gt(18))")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (ages 25 and 40)", len(rows))
	}
}

func TestTranslateOutStep(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	a := store.CreateNode([]string{"Person"}, nil)
	b := store.CreateNode([]string{"Person"}, nil)
	store.CreateNode([]string{"Person"}, nil)
	store.CreateEdge("knows", a, b, nil)

	rows := runQuery(t, store, "g.V().hasLabel('Person').out('knows')")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (a -knows-> b)", len(rows))
	}
}

func TestTranslateLimitAndSkip(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	for i := 0; i < 5; i++ {
		store.CreateNode([]string{"Person"}, nil)
	}

	rows := runQuery(t, store, "g.V().hasLabel('Person').skip(1).limit(2)")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}

func TestTranslateCount(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	store.CreateNode([]string{"Person"}, nil)
	store.CreateNode([]string{"Person"}, nil)
	store.CreateNode([]string{"Person"}, nil)

	rows := runQuery(t, store, "g.V().hasLabel('Person').count()")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	v, ok := rows[0].Get("count")
	if !ok {
		t.Fatal("expected a count column")
	}
	n, _ := v.AsInt64()
	if n != 3 {
		t.Fatalf("got count %d, want 3", n)
	}
}

func TestTranslateAddVWithProperty(t *testing.T) {
	store := graph.NewStore(graph.Config{})

	rows := runQuery(t, store, "g.addV('Person').property('name', 'Alice')")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 created node", len(rows))
	}
	if n := len(store.NodeIds("")); n != 1 {
		t.Fatalf("got %d stored nodes, want 1", n)
	}
}

func TestTranslateHasNotAndDedup(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	store.CreateNode([]string{"Person"}, map[string]engine.Value{"age": engine.Int64(10)})
	store.CreateNode([]string{"Person"}, nil)

	rows := runQuery(t, store, "g.V().hasLabel('Person').hasNot('age').dedup()")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (only the node missing 'age')", len(rows))
	}
}

func TestTranslateAddEdgeFromAsBinding(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	a := store.CreateNode([]string{"Person"}, nil)
	b := store.CreateNode([]string{"Person"}, nil)
	store.CreateEdge("knows", a, b, nil)

	rows := runQuery(t, store,
		"g.V().hasLabel('Person').as('a').out('knows').as('b').addE('met').from('a').to('b')")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 created edge", len(rows))
	}
	typ, src, dst, ok := store.Edge(1)
	if !ok || typ != "met" || src != a || dst != b {
		t.Fatalf("got edge(1)=(%q,%d,%d,%v), want (\"met\",%d,%d,true)", typ, src, dst, ok, a, b)
	}
}

func TestTranslateBareAddEMissingToErrors(t *testing.T) {
	if _, err := Translate("g.addE('knows').from('a')"); err == nil {
		t.Fatal("expected an error for addE() missing to()")
	}
}

func TestTranslateUnknownSourceErrors(t *testing.T) {
	if _, err := Translate("g.X()"); err == nil {
		t.Fatal("expected an error for an unknown traversal source")
	}
}
