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

	"github.com/vertexdb/lpg/vector"
)

// sliceSource is a Source over pre-built chunks, used only to drive
// Pipeline tests without a real NodeScan.
type sliceSource struct {
	chunks []*vector.DataChunk
}

func (s *sliceSource) Pull(ctx *Context) (*vector.DataChunk, bool, error) {
	if len(s.chunks) == 0 {
		return nil, false, nil
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, true, nil
}

func TestPipelineFiltersAndCollects(t *testing.T) {
	src := &sliceSource{chunks: []*vector.DataChunk{
		chunkOfInts("n", 1, 2, 3, 4, 5),
		chunkOfInts("n", 6, 7, 8),
	}}
	pred := func(row Row) BoolResult {
		v, _ := row.Get("n")
		n, _ := v.AsInt64()
		if n%2 == 0 {
			return True
		}
		return False
	}
	sink := NewCursorSink()
	p := &Pipeline{Source: src, Ops: []PushOperator{NewFilter(pred)}, Sink: sink}
	if err := p.Run(testContext()); err != nil {
		t.Fatal(err)
	}
	var got []int64
	for {
		c, ok := sink.Next()
		if !ok {
			break
		}
		for i := 0; i < c.Len(); i++ {
			v, _ := c.Get("n", i)
			n, _ := v.AsInt64()
			got = append(got, n)
		}
	}
	want := []int64{2, 4, 6, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPipelineLimitStopsPullingEarly(t *testing.T) {
	src := &sliceSource{chunks: []*vector.DataChunk{
		chunkOfInts("n", 1, 2, 3),
		chunkOfInts("n", 4, 5, 6),
	}}
	sink := NewCountSink()
	p := &Pipeline{Source: src, Ops: []PushOperator{NewLimit(2)}, Sink: sink}
	if err := p.Run(testContext()); err != nil {
		t.Fatal(err)
	}
	if sink.Count() != 2 {
		t.Fatalf("got count %d, want 2", sink.Count())
	}
}

func TestPipelineFlushesAggregateThroughDownstreamFilter(t *testing.T) {
	src := &sliceSource{chunks: []*vector.DataChunk{
		groupChunk(t, []string{"a", "a", "b"}, []int64{1, 2, 10}),
	}}
	agg := NewAggregate([]string{"g"}, []AggSpec{{Kind: AccumSum, Column: "amount", As: "total"}}, nil, nil)
	keepBig := func(row Row) BoolResult {
		v, _ := row.Get("total")
		f, _ := v.Float()
		n := int64(f)
		if n >= 5 {
			return True
		}
		return False
	}
	sink := NewCursorSink()
	p := &Pipeline{Source: src, Ops: []PushOperator{agg, NewFilter(keepBig)}, Sink: sink}
	if err := p.Run(testContext()); err != nil {
		t.Fatal(err)
	}
	var totals []int64
	for {
		c, ok := sink.Next()
		if !ok {
			break
		}
		for i := 0; i < c.Len(); i++ {
			v, _ := c.Get("total", i)
			f, _ := v.Float()
			totals = append(totals, int64(f))
		}
	}
	if len(totals) != 1 || totals[0] != 10 {
		t.Fatalf("got %v, want [10]", totals)
	}
}
