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

func TestMorselSchedulerCountsAcrossAllMorsels(t *testing.T) {
	sources := []Source{
		&sliceSource{chunks: []*vector.DataChunk{chunkOfInts("n", 1, 2, 3)}},
		&sliceSource{chunks: []*vector.DataChunk{chunkOfInts("n", 4, 5)}},
		&sliceSource{chunks: []*vector.DataChunk{chunkOfInts("n", 6)}},
	}
	sink := NewCountSink()
	sched := &MorselScheduler{
		Sources:     sources,
		NewOps:      func() []PushOperator { return nil },
		Sink:        sink,
		Parallelism: 2,
	}
	if err := sched.Run(testContext()); err != nil {
		t.Fatal(err)
	}
	if sink.Count() != 6 {
		t.Fatalf("got count %d, want 6", sink.Count())
	}
}

func TestMorselSchedulerAppliesPerMorselFilter(t *testing.T) {
	sources := []Source{
		&sliceSource{chunks: []*vector.DataChunk{chunkOfInts("n", 1, 2, 3, 4)}},
		&sliceSource{chunks: []*vector.DataChunk{chunkOfInts("n", 5, 6, 7, 8)}},
	}
	sink := NewCountSink()
	newOps := func() []PushOperator {
		pred := func(row Row) BoolResult {
			v, _ := row.Get("n")
			n, _ := v.AsInt64()
			if n%2 == 0 {
				return True
			}
			return False
		}
		return []PushOperator{NewFilter(pred)}
	}
	sched := &MorselScheduler{Sources: sources, NewOps: newOps, Sink: sink}
	if err := sched.Run(testContext()); err != nil {
		t.Fatal(err)
	}
	if sink.Count() != 4 {
		t.Fatalf("got count %d, want 4", sink.Count())
	}
}

func TestMorselSchedulerEmptySourcesClosesSink(t *testing.T) {
	sink := NewCountSink()
	sched := &MorselScheduler{Sources: nil, NewOps: func() []PushOperator { return nil }, Sink: sink}
	if err := sched.Run(testContext()); err != nil {
		t.Fatal(err)
	}
	if sink.Count() != 0 {
		t.Fatalf("got count %d, want 0", sink.Count())
	}
}
