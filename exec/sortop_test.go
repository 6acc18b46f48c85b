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

	"github.com/vertexdb/lpg/bufmgr"
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/vector"
)

func drainSort(t *testing.T, s *Sort) []int64 {
	t.Helper()
	var out []int64
	for {
		chunk, ok, err := s.Flush(testContext())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		sel := chunk.Selection()
		for i := 0; i < sel.Len(); i++ {
			v, _ := chunk.Get("n", int(sel.At(i)))
			n, _ := v.AsInt64()
			out = append(out, n)
		}
	}
	return out
}

func TestSortOrdersAscending(t *testing.T) {
	s := NewSort([]SortKey{{Column: "n"}}, nil, nil)
	for _, vals := range [][]int64{{5, 1, 4}, {2, 8, 0}} {
		if _, _, err := s.Push(testContext(), chunkOfInts("n", vals...)); err != nil {
			t.Fatal(err)
		}
	}
	got := drainSort(t, s)
	want := []int64{0, 1, 2, 4, 5, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestSortDescending(t *testing.T) {
	s := NewSort([]SortKey{{Column: "n", Desc: true}}, nil, nil)
	if _, _, err := s.Push(testContext(), chunkOfInts("n", 3, 1, 2)); err != nil {
		t.Fatal(err)
	}
	got := drainSort(t, s)
	want := []int64{3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

// TestSortSpillAndMergeMatchesUnboundedSort forces a tiny memory
// budget so Sort is forced to spill one or more runs mid-stream, then
// checks the k-way-merged Flush output is identical to sorting
// everything in memory at once.
func TestSortSpillAndMergeMatchesUnboundedSort(t *testing.T) {
	mgr := bufmgr.New(4096)
	mem := NewMemoryContext(mgr, "sort-test")
	spill, err := NewSpillManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewSort([]SortKey{{Column: "n"}}, mem, spill)

	input := []int64{40, 12, 55, 3, 21, 9, 77, 1, 64, 33, 8, 45, 2, 19, 60}
	want := append([]int64(nil), input...)
	for i := 1; i < len(want); i++ {
		for j := i; j > 0 && want[j-1] > want[j]; j-- {
			want[j-1], want[j] = want[j], want[j-1]
		}
	}

	for i := 0; i < len(input); i += 3 {
		end := i + 3
		if end > len(input) {
			end = len(input)
		}
		if _, _, err := s.Push(testContext(), chunkOfInts("n", input[i:end]...)); err != nil {
			t.Fatal(err)
		}
	}

	got := drainSort(t, s)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestSortNullsFirst(t *testing.T) {
	c := vector.NewDataChunk(3)
	v := vector.NewValueVector(engine.KInt64, 3)
	v.Set(0, engine.Int64(5))
	v.Set(1, engine.Null())
	v.Set(2, engine.Int64(1))
	c.AddColumn("n", v)
	c.SetCount(3)

	s := NewSort([]SortKey{{Column: "n", NullsFirst: true}}, nil, nil)
	if _, _, err := s.Push(testContext(), c); err != nil {
		t.Fatal(err)
	}
	chunk, ok, err := s.Flush(testContext())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected output")
	}
	first, _ := chunk.Get("n", 0)
	if !first.IsNull() {
		t.Fatalf("nulls_first: row 0 = %v, want null", first)
	}
}
