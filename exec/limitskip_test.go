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

import "testing"

func TestSkipDropsAcrossChunkBoundary(t *testing.T) {
	s := NewSkip(4)

	c1 := chunkOfInts("n", 1, 2, 3)
	out1, outcome1, err := s.Push(testContext(), c1)
	if err != nil {
		t.Fatal(err)
	}
	if outcome1 != NeedInput || out1 != nil {
		t.Fatalf("first chunk fully skipped: got out=%v outcome=%v", out1, outcome1)
	}
	if s.remaining != 1 {
		t.Fatalf("remaining = %d, want 1", s.remaining)
	}

	c2 := chunkOfInts("n", 4, 5, 6)
	out2, outcome2, err := s.Push(testContext(), c2)
	if err != nil {
		t.Fatal(err)
	}
	if outcome2 != Continue {
		t.Fatalf("outcome = %v, want Continue", outcome2)
	}
	sel := out2.Selection()
	var got []int64
	for i := 0; i < sel.Len(); i++ {
		v, _ := out2.Get("n", int(sel.At(i)))
		n, _ := v.AsInt64()
		got = append(got, n)
	}
	want := []int64{5, 6}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestLimitStopsOnceBudgetExhausted(t *testing.T) {
	l := NewLimit(2)
	c := chunkOfInts("n", 10, 20, 30)
	out, outcome, err := l.Push(testContext(), c)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Done {
		t.Fatalf("outcome = %v, want Done", outcome)
	}
	sel := out.Selection()
	if sel.Len() != 2 {
		t.Fatalf("got %d rows, want 2", sel.Len())
	}
}

func TestLimitPassesThroughUntilExhausted(t *testing.T) {
	l := NewLimit(5)
	out, outcome, err := l.Push(testContext(), chunkOfInts("n", 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Continue || out.Selection().Len() != 2 {
		t.Fatalf("first push: outcome=%v len=%d", outcome, out.Selection().Len())
	}
	out, outcome, err = l.Push(testContext(), chunkOfInts("n", 3, 4, 5))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Done || out.Selection().Len() != 3 {
		t.Fatalf("second push: outcome=%v len=%d", outcome, out.Selection().Len())
	}
}

func TestDistinctDropsRepeats(t *testing.T) {
	d := NewDistinct([]string{"n"})
	c1 := chunkOfInts("n", 1, 2, 1, 3)
	out1, _, err := d.Push(testContext(), c1)
	if err != nil {
		t.Fatal(err)
	}
	sel := out1.Selection()
	var got []int64
	for i := 0; i < sel.Len(); i++ {
		v, _ := out1.Get("n", int(sel.At(i)))
		n, _ := v.AsInt64()
		got = append(got, n)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("got %v want [1 2 3]", got)
	}

	c2 := chunkOfInts("n", 1, 4)
	out2, _, err := d.Push(testContext(), c2)
	if err != nil {
		t.Fatal(err)
	}
	sel2 := out2.Selection()
	if sel2.Len() != 1 {
		t.Fatalf("second chunk: got %d rows, want 1 (only the new value 4)", sel2.Len())
	}
	v, _ := out2.Get("n", int(sel2.At(0)))
	n, _ := v.AsInt64()
	if n != 4 {
		t.Fatalf("got %d want 4", n)
	}
}
