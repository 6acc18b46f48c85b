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
	"runtime"
	"sync"

	"github.com/vertexdb/lpg/vector"
)

// MorselScheduler fans a query's Sources out across a pool of worker
// goroutines, one independent Pipeline per morsel, converging on a
// single shared Sink (spec.md §4.8: "morsels (disjoint id ranges or
// adjacency slices)... executed by a pool of worker goroutines").
// Every PushOperator carries private state (an Aggregate's hash
// table, a Sort's buffer), so each morsel gets its own chain built
// fresh by NewOps rather than sharing one; only the terminal Sink is
// shared, guarded by a mutex here so concurrent morsels can still
// converge on one result stream.
type MorselScheduler struct {
	// Sources holds one Source per morsel (e.g. the slices returned
	// by NodeScan.Morsels).
	Sources []Source
	// NewOps builds a fresh operator chain for one morsel. Called
	// once per morsel; must not share mutable state across calls.
	NewOps func() []PushOperator
	Sink   Sink
	// Parallelism caps how many morsels run concurrently; <= 0 means
	// runtime.NumCPU(), further capped at len(Sources).
	Parallelism int
}

// Run drives every morsel's pipeline to completion and closes Sink
// exactly once, after every morsel has finished.
func (m *MorselScheduler) Run(ctx *Context) error {
	if len(m.Sources) == 0 {
		return m.Sink.Close(ctx)
	}
	parallel := m.Parallelism
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	if parallel > len(m.Sources) {
		parallel = len(m.Sources)
	}
	p := mkmorselpool(parallel)
	defer close(p)

	var mu sync.Mutex
	fanin := &fanInSink{mu: &mu, real: m.Sink}

	var wg sync.WaitGroup
	wg.Add(len(m.Sources))
	errs := make([]error, len(m.Sources))
	for i := range m.Sources {
		i := i
		p.do(i, func(i int) {
			defer wg.Done()
			pipe := &Pipeline{Source: m.Sources[i], Ops: m.NewOps(), Sink: fanin}
			errs[i] = pipe.Run(ctx)
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return m.Sink.Close(ctx)
}

// fanInSink serializes concurrent morsels' writes into one shared
// Sink and swallows Close, since MorselScheduler closes the real Sink
// itself exactly once after every morsel finishes.
type fanInSink struct {
	mu   *sync.Mutex
	real Sink
}

func (f *fanInSink) Push(ctx *Context, chunk *vector.DataChunk) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.real.Push(ctx, chunk)
}

func (f *fanInSink) Close(ctx *Context) error { return nil }

// morselTask is one unit of work handed to a morselpool worker.
type morselTask struct {
	i int
	f func(int)
}

// morselpool is a fixed-size goroutine pool, grounded directly on
// plan/exec.go's channel-based "pool"/"mkpool": closing the channel
// tears down every worker goroutine.
type morselpool chan morselTask

func mkmorselpool(parallel int) morselpool {
	if parallel <= 0 {
		panic("mkmorselpool: size out of range")
	}
	ch := make(morselpool, parallel)
	for i := 0; i < parallel; i++ {
		go func() {
			for t := range ch {
				t.f(t.i)
			}
		}()
	}
	return ch
}

func (p morselpool) do(i int, f func(int)) {
	p <- morselTask{i: i, f: f}
}
