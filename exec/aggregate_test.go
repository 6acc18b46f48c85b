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

func groupChunk(t *testing.T, groups []string, amounts []int64) *vector.DataChunk {
	t.Helper()
	n := len(groups)
	g := vector.NewValueVector(engine.KString, n)
	a := vector.NewValueVector(engine.KInt64, n)
	for i := range groups {
		g.Set(i, engine.String(groups[i]))
		a.Set(i, engine.Int64(amounts[i]))
	}
	c := vector.NewDataChunk(n)
	c.AddColumn("g", g)
	c.AddColumn("amount", a)
	c.SetCount(n)
	return c
}

func sumByGroup(t *testing.T, out *vector.DataChunk) map[string]int64 {
	t.Helper()
	got := map[string]int64{}
	sel := out.Selection()
	for i := 0; i < sel.Len(); i++ {
		row := int(sel.At(i))
		gv, _ := out.Get("g", row)
		sv, _ := out.Get("total", row)
		s, _ := sv.Float()
		got[gv.String_()] = int64(s)
	}
	return got
}

func TestAggregateGroupsAndSums(t *testing.T) {
	a := NewAggregate([]string{"g"}, []AggSpec{{Kind: AccumSum, Column: "amount", As: "total"}}, nil, nil)
	chunk := groupChunk(t, []string{"a", "b", "a", "b", "a"}, []int64{1, 2, 3, 4, 5})
	if _, _, err := a.Push(testContext(), chunk); err != nil {
		t.Fatal(err)
	}
	out, ok, err := a.Flush(testContext())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a result chunk")
	}
	got := sumByGroup(t, out)
	if got["a"] != 9 || got["b"] != 6 {
		t.Fatalf("got %v, want a=9 b=6", got)
	}
	if _, ok, _ := a.Flush(testContext()); ok {
		t.Fatal("second Flush should report no more rows")
	}
}

func TestAggregateCountDistinctMinMax(t *testing.T) {
	specs := []AggSpec{
		{Kind: AccumCount, As: "n"},
		{Kind: AccumCountDistinct, Column: "amount", As: "distinct_n"},
		{Kind: AccumMin, Column: "amount", As: "lo"},
		{Kind: AccumMax, Column: "amount", As: "hi"},
	}
	a := NewAggregate([]string{"g"}, specs, nil, nil)
	chunk := groupChunk(t, []string{"a", "a", "a"}, []int64{5, 5, 9})
	if _, _, err := a.Push(testContext(), chunk); err != nil {
		t.Fatal(err)
	}
	out, _, err := a.Flush(testContext())
	if err != nil {
		t.Fatal(err)
	}
	n, _ := out.Get("n", 0)
	dn, _ := out.Get("distinct_n", 0)
	lo, _ := out.Get("lo", 0)
	hi, _ := out.Get("hi", 0)
	ni, _ := n.AsInt64()
	dni, _ := dn.AsInt64()
	loi, _ := lo.AsInt64()
	hii, _ := hi.AsInt64()
	if ni != 3 || dni != 2 || loi != 5 || hii != 9 {
		t.Fatalf("got n=%d distinct=%d lo=%d hi=%d", ni, dni, loi, hii)
	}
}

// TestAggregateSpillAndMergeRoundTrips forces a tiny memory budget so
// Push is forced to spill groups mid-stream, then verifies Flush's
// merge-back recovers the exact same totals as an unbounded run.
func TestAggregateSpillAndMergeRoundTrips(t *testing.T) {
	mgr := bufmgr.New(2048)
	mem := NewMemoryContext(mgr, "agg-test")
	spill, err := NewSpillManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	a := NewAggregate([]string{"g"}, []AggSpec{{Kind: AccumSum, Column: "amount", As: "total"}}, mem, spill)

	var groups []string
	var amounts []int64
	want := map[string]int64{}
	for i := 0; i < 40; i++ {
		g := string(rune('a' + i%5))
		groups = append(groups, g)
		amounts = append(amounts, int64(i))
		want[g] += int64(i)
	}
	for i := 0; i < len(groups); i += 4 {
		end := i + 4
		if end > len(groups) {
			end = len(groups)
		}
		chunk := groupChunk(t, groups[i:end], amounts[i:end])
		if _, _, err := a.Push(testContext(), chunk); err != nil {
			t.Fatal(err)
		}
	}

	out, ok, err := a.Flush(testContext())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a result chunk")
	}
	got := sumByGroup(t, out)
	for g, w := range want {
		if got[g] != w {
			t.Fatalf("group %q: got %d want %d (full: %v)", g, got[g], w, got)
		}
	}
	if len(a.spilledTo) != 0 {
		t.Fatalf("spilled files should be drained after Flush, got %v", a.spilledTo)
	}
}
