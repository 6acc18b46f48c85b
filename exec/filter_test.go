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
	"context"
	"testing"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/vector"
)

func testContext() *Context {
	return &Context{Context: context.Background()}
}

func chunkOfInts(name string, vals ...int64) *vector.DataChunk {
	v := vector.NewValueVector(engine.KInt64, len(vals))
	for i, n := range vals {
		v.Set(i, engine.Int64(n))
	}
	c := vector.NewDataChunk(len(vals))
	c.AddColumn(name, v)
	c.SetCount(len(vals))
	return c
}

func TestFilterKeepsOnlyTrueRows(t *testing.T) {
	chunk := chunkOfInts("n", 1, 2, 3, 4, 5)
	f := NewFilter(func(row Row) BoolResult {
		v, _ := row.Get("n")
		i, _ := v.AsInt64()
		if i%2 == 0 {
			return True
		}
		return False
	})
	out, outcome, err := f.Push(testContext(), chunk)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Continue {
		t.Fatalf("outcome = %v, want Continue", outcome)
	}
	sel := out.Selection()
	var got []int64
	for i := 0; i < sel.Len(); i++ {
		v, _ := out.Get("n", int(sel.At(i)))
		n, _ := v.AsInt64()
		got = append(got, n)
	}
	want := []int64{2, 4}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestFilterAllRowsDroppedReturnsNeedInput(t *testing.T) {
	chunk := chunkOfInts("n", 1, 3, 5)
	f := NewFilter(func(row Row) BoolResult { return False })
	out, outcome, err := f.Push(testContext(), chunk)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != NeedInput || out != nil {
		t.Fatalf("got out=%v outcome=%v, want nil/NeedInput", out, outcome)
	}
}

func TestCompareValuesUnknownOnIncomparable(t *testing.T) {
	res := CompareValues(engine.Int64(1), engine.String("x"), func(o engine.Ordering) bool { return o == engine.Less })
	if res != Unknown {
		t.Fatalf("got %v, want Unknown", res)
	}
	res = CompareValues(engine.Int64(1), engine.Int64(2), func(o engine.Ordering) bool { return o == engine.Less })
	if res != True {
		t.Fatalf("got %v, want True", res)
	}
}
