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
	"context"
	"testing"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
	"github.com/vertexdb/lpg/graph"
)

func testCtx(mem *exec.MemoryContext) *exec.Context {
	return &exec.Context{Context: context.Background(), Mem: mem}
}

func chain(ops ...Op) Op {
	for i := 1; i < len(ops); i++ {
		ops[i].setinput(ops[i-1])
	}
	return ops[len(ops)-1]
}

func runRows(t *testing.T, root Op, store *graph.Store) []exec.Row {
	t.Helper()
	src, ops, err := Compile(root, store, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	sink := exec.NewCursorSink()
	pipe := &exec.Pipeline{Source: src, Ops: ops, Sink: sink}
	if err := pipe.Run(testCtx(nil)); err != nil {
		t.Fatal(err)
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

func TestCompileScanFilterReturn(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	store.CreateNode([]string{"Person"}, nil) // id 1
	store.CreateNode([]string{"Person"}, nil) // id 2
	store.CreateNode([]string{"Person"}, nil) // id 3

	root := chain(
		&Scan{Label: "Person", Var: "n"},
		&Filter{Predicate: Binary{Op: OpGte, Left: Variable{Name: "n"}, Right: Literal{Value: engine.Int64(2)}}},
		&Return{Columns: []string{"n"}, Aliases: []string{""}},
	)

	rows := runRows(t, root, store)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (ids 2 and 3)", len(rows))
	}
}

func TestCompileScanExpandReturn(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	a := store.CreateNode(nil, nil)
	b := store.CreateNode(nil, nil)
	store.CreateEdge("knows", a, b, nil)

	root := chain(
		&Scan{Var: "n"},
		&Expand{Spec: exec.ExpandSpec{Direction: exec.Outgoing, SrcVar: "n", DstVar: "m", MinHops: 1, MaxHops: 1}},
		&Return{Columns: []string{"n", "m"}, Aliases: []string{"", ""}},
	)

	rows := runRows(t, root, store)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (a -> b)", len(rows))
	}
}

func TestCompileAggregate(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	store.CreateNode([]string{"Person"}, map[string]engine.Value{"age": engine.Int64(10)})
	store.CreateNode([]string{"Person"}, map[string]engine.Value{"age": engine.Int64(20)})

	root := chain(
		&Scan{Label: "Person", Var: "n"},
		&Aggregate{Specs: []exec.AggSpec{{Kind: exec.AccumCount, Column: "n", As: "total"}}},
	)

	rows := runRows(t, root, store)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 group", len(rows))
	}
	v, ok := rows[0].Get("total")
	if !ok {
		t.Fatal("expected a total column")
	}
	n, _ := v.AsInt64()
	if n != 2 {
		t.Fatalf("got count %d, want 2", n)
	}
}

func TestCompileUnionConcatenatesBranches(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	store.CreateNode([]string{"A"}, nil)
	store.CreateNode([]string{"B"}, nil)
	store.CreateNode([]string{"B"}, nil)

	left := chain(&Scan{Label: "A", Var: "n"}, &Return{Columns: []string{"n"}, Aliases: []string{""}})
	right := chain(&Scan{Label: "B", Var: "n"}, &Return{Columns: []string{"n"}, Aliases: []string{""}})
	root := &Union{Right: right}
	root.setinput(left)

	rows := runRows(t, root, store)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (1 A + 2 B)", len(rows))
	}
}

func TestCompileJoinWCOJRejected(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	root := &Join{Kind: JoinWCOJ, LeftKey: "n", RightKey: "n"}
	root.setinput(&Scan{Var: "n"})

	if _, _, err := Compile(root, store, nil, nil); err == nil {
		t.Fatal("expected an error compiling a JoinWCOJ through the generic compiler")
	}
}

func TestCompileHashJoin(t *testing.T) {
	store := graph.NewStore(graph.Config{})
	store.CreateNode([]string{"Person"}, map[string]engine.Value{"city": engine.String("nyc")})
	store.CreateNode([]string{"City"}, map[string]engine.Value{"city": engine.String("nyc")})
	store.CreateNode([]string{"City"}, map[string]engine.Value{"city": engine.String("sf")})

	leftProj := chain(
		&Scan{Label: "Person", Var: "p"},
		&Project{Columns: []string{"p"}, Aliases: []string{"p"}},
	)
	// left side binds a synthetic property column via Property Compile's
	// fallback convention ("p.city"); the translator would normally
	// resolve this to a bound column ahead of time, so here we drive the
	// join directly on the scanned id instead to keep the fixture
	// self-contained.
	rightScan := &Scan{Label: "City", Var: "c"}

	root := &Join{Kind: JoinHash, Right: rightScan, LeftKey: "p", RightKey: "c"}
	root.setinput(leftProj)

	rows := runRows(t, root, store)
	// every Person row is distinct from every City id, so a join keyed
	// on the raw ids should never match; this exercises the build+probe
	// wiring produces zero rows rather than erroring.
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0 (ids never collide across labels)", len(rows))
	}
}
