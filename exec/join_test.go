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
	"sort"
	"testing"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/index"
	"github.com/vertexdb/lpg/vector"
)

func namedChunk(cols map[string][]int64) *vector.DataChunk {
	var n int
	for _, v := range cols {
		n = len(v)
		break
	}
	chunk := vector.NewDataChunk(n)
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		vec := vector.NewValueVector(engine.KInt64, n)
		for i, v := range cols[name] {
			vec.Set(i, engine.Int64(v))
		}
		chunk.AddColumn(name, vec)
	}
	chunk.SetCount(n)
	return chunk
}

func drainJoin(t *testing.T, j *HashJoin) []*vector.DataChunk {
	t.Helper()
	var out []*vector.DataChunk
	for {
		chunk, more, err := j.Flush(testContext())
		if err != nil {
			t.Fatal(err)
		}
		if !more {
			return out
		}
		out = append(out, chunk)
	}
}

func TestHashJoinMatchesOnKey(t *testing.T) {
	j := NewHashJoin("a_id", "b_id")
	j.Build(namedChunk(map[string][]int64{"a_id": {1, 2, 3}, "a_val": {10, 20, 30}}))

	_, _, err := j.Push(testContext(), namedChunk(map[string][]int64{"b_id": {2, 3, 4}, "b_val": {200, 300, 400}}))
	if err != nil {
		t.Fatal(err)
	}
	chunks := drainJoin(t, j)
	if len(chunks) != 1 {
		t.Fatalf("got %d output chunks, want 1", len(chunks))
	}
	out := chunks[0]
	if out.Len() != 2 {
		t.Fatalf("got %d matched rows, want 2", out.Len())
	}
	avals, bvals := map[int64]int64{}, map[int64]int64{}
	for i := 0; i < out.Len(); i++ {
		aidv, _ := out.Column("a_id")
		avalv, _ := out.Column("a_val")
		bvalv, _ := out.Column("b_val")
		aid, _ := aidv.Get(i).AsInt64()
		aval, _ := avalv.Get(i).AsInt64()
		bval, _ := bvalv.Get(i).AsInt64()
		avals[aid] = aval
		bvals[aid] = bval
	}
	if avals[2] != 20 || bvals[2] != 200 {
		t.Fatalf("row for key 2 wrong: a_val=%d b_val=%d", avals[2], bvals[2])
	}
	if avals[3] != 30 || bvals[3] != 300 {
		t.Fatalf("row for key 3 wrong: a_val=%d b_val=%d", avals[3], bvals[3])
	}
}

func TestHashJoinNoMatchProducesNoOutput(t *testing.T) {
	j := NewHashJoin("a_id", "b_id")
	j.Build(namedChunk(map[string][]int64{"a_id": {1}}))
	if _, _, err := j.Push(testContext(), namedChunk(map[string][]int64{"b_id": {99}})); err != nil {
		t.Fatal(err)
	}
	if chunks := drainJoin(t, j); len(chunks) != 0 {
		t.Fatalf("got %d chunks, want 0", len(chunks))
	}
}

func TestTrieJoinIntersectsSharedVariable(t *testing.T) {
	// Two relations over a single shared variable x: {1,2,3} and {2,3,4}.
	left := index.NewTrie[engine.NodeId]()
	left.Insert([]engine.Value{engine.Int64(1)}, engine.NodeId(101))
	left.Insert([]engine.Value{engine.Int64(2)}, engine.NodeId(102))
	left.Insert([]engine.Value{engine.Int64(3)}, engine.NodeId(103))

	right := index.NewTrie[engine.NodeId]()
	right.Insert([]engine.Value{engine.Int64(2)}, engine.NodeId(202))
	right.Insert([]engine.Value{engine.Int64(3)}, engine.NodeId(203))
	right.Insert([]engine.Value{engine.Int64(4)}, engine.NodeId(204))

	tj := NewTrieJoin([]*index.Trie[engine.NodeId]{left, right}, []string{"x"})
	var got []int64
	err := tj.Run(func(bindings []engine.Value) error {
		v, _ := bindings[0].AsInt64()
		got = append(got, v)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTrieJoinTwoLevelMultiway(t *testing.T) {
	// Three relations sharing (x, y): only (1,1) and (2,2) are common
	// to all three.
	tries := make([]*index.Trie[engine.NodeId], 3)
	rows := [][][2]int64{
		{{1, 1}, {2, 2}, {3, 3}},
		{{1, 1}, {2, 2}, {9, 9}},
		{{1, 1}, {2, 2}},
	}
	for i, rs := range rows {
		tr := index.NewTrie[engine.NodeId]()
		for j, r := range rs {
			tr.Insert([]engine.Value{engine.Int64(r[0]), engine.Int64(r[1])}, engine.NodeId(i*100+j))
		}
		tries[i] = tr
	}
	tj := NewTrieJoin(tries, []string{"x", "y"})
	var got [][2]int64
	err := tj.Run(func(bindings []engine.Value) error {
		x, _ := bindings[0].AsInt64()
		y, _ := bindings[1].AsInt64()
		got = append(got, [2]int64{x, y})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int64{{1, 1}, {2, 2}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTrieJoinNoIntersectionEmitsNothing(t *testing.T) {
	a := index.NewTrie[engine.NodeId]()
	a.Insert([]engine.Value{engine.Int64(1)}, engine.NodeId(1))
	b := index.NewTrie[engine.NodeId]()
	b.Insert([]engine.Value{engine.Int64(2)}, engine.NodeId(2))

	tj := NewTrieJoin([]*index.Trie[engine.NodeId]{a, b}, []string{"x"})
	count := 0
	err := tj.Run(func(bindings []engine.Value) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("got %d matches, want 0", count)
	}
}
