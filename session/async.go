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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
	"github.com/vertexdb/lpg/plan"
	"github.com/vertexdb/lpg/translate/gremlin"
	"github.com/vertexdb/lpg/vector"
)

// ExecuteAsync is Execute, but the pipeline runs on its own goroutine
// against an AsyncCursor instead of running to completion before
// returning: a caller wanting to stop consuming a long traversal
// early calls Cancel instead of waiting out the whole result set
// (spec.md §6's "optional async cursor with cancellation"). Like
// Execute, an implicit transaction is committed automatically unless
// one is already active -- the commit happens on the background
// goroutine once the pipeline finishes, so a caller must not start
// another Execute/ExecuteAsync on this Session until the returned
// cursor reports done.
func (s *Session) ExecuteAsync(ctx context.Context, query string) (*AsyncCursor, error) {
	start := time.Now()

	txn := s.txn
	implicit := !s.active
	if implicit {
		var err error
		txn, err = s.db.beginTxn()
		if err != nil {
			return nil, err
		}
	}

	root, err := gremlin.Translate(query)
	if err != nil {
		return nil, engine.Wrap(engine.KindParse, err, "translating query %q", query)
	}
	if s.db.cfg.QueryLogging {
		s.db.logger.Printf("plan for %q:\n%s", query, (&plan.Tree{Root: root}).String())
	}

	mem := exec.NewMemoryContext(s.db.mem, "session.ExecuteAsync")
	var src exec.Source
	var ops []exec.PushOperator
	if s.db.wal != nil {
		mutator := &walMutator{store: s.db.store, wal: s.db.wal, txn: txn}
		src, ops, err = plan.CompileWithMutator(root, s.db.store, mutator, mem, s.db.spill)
	} else {
		src, ops, err = plan.Compile(root, s.db.store, mem, s.db.spill)
	}
	if err != nil {
		return nil, engine.Wrap(engine.KindBind, err, "compiling query plan")
	}

	cctx, cancel := context.WithCancel(ctx)
	ac := &AsyncCursor{cancel: cancel, ri: -1}
	ac.cond = sync.NewCond(&ac.mu)

	pipe := &exec.Pipeline{Source: src, Ops: ops, Sink: ac}
	ectx := &exec.Context{Context: cctx, Mem: mem, ChunkSizeHint: 2048}

	go func() {
		runErr := runPipeline(pipe, ectx)
		if runErr == nil && implicit {
			if cerr := s.db.commitTxn(txn); cerr != nil {
				runErr = engine.Wrap(engine.KindInternal, cerr, "committing transaction")
			}
		}
		ac.mu.Lock()
		ac.done = true
		ac.err = runErr
		ac.elapsed = time.Since(start)
		ac.cond.Broadcast()
		ac.mu.Unlock()
	}()

	return ac, nil
}

// AsyncCursor is a forward-only cursor fed by a query running on a
// background goroutine. It implements exec.Sink directly: Push queues
// whatever the pipeline produced and wakes any goroutine blocked in
// Next, so a consumer never has to poll.
type AsyncCursor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*vector.DataChunk
	chunk   *vector.DataChunk
	ri      int

	done bool
	err  error

	cancel   context.CancelFunc
	rowCount int64
	elapsed  time.Duration
}

// Push implements exec.Sink.
func (ac *AsyncCursor) Push(ctx *exec.Context, chunk *vector.DataChunk) (exec.Outcome, error) {
	if ctx.Cancelled() {
		return exec.Continue, exec.ErrCancelled
	}
	if chunk.Len() == 0 {
		return exec.Continue, nil
	}
	mat := chunk.Materialize()
	ac.mu.Lock()
	ac.pending = append(ac.pending, mat)
	ac.cond.Broadcast()
	ac.mu.Unlock()
	return exec.Continue, nil
}

// Close implements exec.Sink; completion is signaled by the goroutine
// that calls Run, not by Close itself (Pipeline.Run skips Close on an
// error return, so relying on Close alone would miss failures).
func (ac *AsyncCursor) Close(ctx *exec.Context) error { return nil }

// Next blocks until another row is ready, the query finishes, or the
// query failed. ok is false once the cursor is exhausted; err is the
// query's error, if any, once ok is false.
func (ac *AsyncCursor) Next() (ok bool, err error) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	for {
		if ac.chunk != nil {
			ac.ri++
			if ac.ri < ac.chunk.Len() {
				ac.rowCount++
				return true, nil
			}
		}
		if len(ac.pending) > 0 {
			ac.chunk, ac.pending = ac.pending[0], ac.pending[1:]
			ac.ri = -1
			continue
		}
		if ac.done {
			return false, ac.err
		}
		ac.cond.Wait()
	}
}

// Get returns the value of column name at the current row.
func (ac *AsyncCursor) Get(name string) (engine.Value, bool) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.chunk == nil {
		return engine.Value{}, false
	}
	return ac.chunk.Get(name, ac.ri)
}

// Columns returns the current chunk's column names.
func (ac *AsyncCursor) Columns() []string {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.chunk == nil {
		return nil
	}
	cols := ac.chunk.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Cancel stops the underlying pipeline at its next chunk boundary. A
// blocked Next call wakes once the pipeline goroutine observes the
// cancellation and exits, reporting exec.ErrCancelled.
func (ac *AsyncCursor) Cancel() { ac.cancel() }

// Stats reports execution statistics, valid once Next has returned
// ok == false.
func (ac *AsyncCursor) Stats() Stats {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return Stats{RowCount: ac.rowCount, Elapsed: ac.elapsed}
}
