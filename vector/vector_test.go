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

package vector

import (
	"fmt"
	"testing"

	"github.com/vertexdb/lpg/engine"
)

func TestValueVectorRoundTrip(t *testing.T) {
	for _, c := range []struct {
		kind engine.Kind
		vals []engine.Value
	}{
		{engine.KInt64, []engine.Value{engine.Int64(1), engine.Null(), engine.Int64(-7)}},
		{engine.KFloat64, []engine.Value{engine.Float64(1.5), engine.Float64(0)}},
		{engine.KString, []engine.Value{engine.String("a"), engine.Null(), engine.String("")}},
		{engine.KBool, []engine.Value{engine.Bool(true), engine.Bool(false), engine.Null()}},
	} {
		t.Run(c.kind.String(), func(t *testing.T) {
			v := NewValueVector(c.kind, len(c.vals))
			for i, val := range c.vals {
				v.Set(i, val)
			}
			for i, val := range c.vals {
				got := v.Get(i)
				if got.IsNull() != val.IsNull() {
					t.Fatalf("slot %d: null mismatch: got %v want %v", i, got, val)
				}
				if !got.IsNull() && !engine.Equals(got, val) {
					t.Fatalf("slot %d: got %v want %v", i, got, val)
				}
			}
		})
	}
}

func TestValueVectorSlice(t *testing.T) {
	v := NewValueVector(engine.KInt64, 5)
	for i := 0; i < 5; i++ {
		v.Set(i, engine.Int64(int64(i*10)))
	}
	out := v.Slice([]int32{4, 1, 1})
	want := []int64{40, 10, 10}
	for i, w := range want {
		got, _ := out.Get(i).AsInt64()
		if got != w {
			t.Errorf("slot %d: got %d want %d", i, got, w)
		}
	}
}

func TestSelectionVectorFlat(t *testing.T) {
	s := Flat(3)
	if !s.IsFlat() || s.Len() != 3 {
		t.Fatalf("unexpected flat selection: %+v", s)
	}
	for i := 0; i < 3; i++ {
		if s.At(i) != int32(i) {
			t.Errorf("At(%d) = %d, want %d", i, s.At(i), i)
		}
	}
}

func TestSelectionVectorFilter(t *testing.T) {
	s := Flat(6)
	even := s.Filter(func(row int32) bool { return row%2 == 0 })
	if even.IsFlat() {
		t.Fatal("filtered selection should not be flat")
	}
	want := []int32{0, 2, 4}
	got := even.Rows()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	// Filtering an already-indexed selection narrows further without
	// ever referencing a row index that fell outside the first filter.
	tiny := even.Filter(func(row int32) bool { return row == 2 })
	if tiny.Len() != 1 || tiny.At(0) != 2 {
		t.Fatalf("second filter: got len=%d at0=%d", tiny.Len(), tiny.At(0))
	}
}

func TestDataChunkProjectAliasesInsteadOfCopying(t *testing.T) {
	c := NewDataChunk(4)
	v := NewValueVector(engine.KInt64, 4)
	v.Set(0, engine.Int64(42))
	c.AddColumn("n.age", v)
	c.SetCount(4)

	proj, err := c.Project([]string{"n.age"}, []string{"age"})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := proj.Column("age")
	if !ok {
		t.Fatal("expected aliased column age")
	}
	if got != v {
		t.Fatal("Project must alias the same *ValueVector, not copy it")
	}
}

func TestDataChunkMaterializeRespectsSelection(t *testing.T) {
	c := NewDataChunk(4)
	v := NewValueVector(engine.KInt64, 4)
	for i := 0; i < 4; i++ {
		v.Set(i, engine.Int64(int64(i)))
	}
	c.AddColumn("x", v)
	c.SetSelection(Indexed([]int32{3, 0}))

	out := c.Materialize()
	if out.Capacity() != 2 {
		t.Fatalf("materialized capacity = %d, want 2", out.Capacity())
	}
	first, _ := out.Get("x", 0)
	second, _ := out.Get("x", 1)
	f, _ := first.AsInt64()
	s, _ := second.AsInt64()
	if f != 3 || s != 0 {
		t.Fatalf("materialize reordered wrong: got %d,%d want 3,0", f, s)
	}
}

func TestDataChunkAddColumnCapacityMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on capacity mismatch")
		}
	}()
	c := NewDataChunk(4)
	c.AddColumn("bad", NewValueVector(engine.KInt64, 2))
}
