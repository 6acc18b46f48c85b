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
	"fmt"
	"time"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
	"github.com/vertexdb/lpg/plan"
	"github.com/vertexdb/lpg/translate/gremlin"
	"github.com/vertexdb/lpg/vector"
)

// Session is one client's handle onto a Database (spec.md §6): a
// sequence of Execute calls, optionally bracketed by BeginTx/Commit or
// Rollback into a single write-ahead-logged transaction. A Session is
// not safe for concurrent use.
type Session struct {
	db *Database

	active bool
	txn    uint64
}

// BeginTx starts an explicit transaction: every Execute until the
// matching Commit or Rollback shares txn's write-ahead log boundary
// instead of each getting its own implicit one.
func (s *Session) BeginTx() error {
	if s.active {
		return engine.Errorf(engine.KindTransaction, "a transaction is already active on this session")
	}
	txn, err := s.db.beginTxn()
	if err != nil {
		return err
	}
	s.txn, s.active = txn, true
	return nil
}

// Commit closes the active explicit transaction, syncing its records
// to the write-ahead log if one is enabled.
func (s *Session) Commit() error {
	if !s.active {
		return engine.Errorf(engine.KindTransaction, "no transaction is active on this session")
	}
	err := s.db.commitTxn(s.txn)
	s.active = false
	return err
}

// Rollback ends the active explicit transaction without committing
// it. The core has no transaction manager or MVCC undo log of its own
// (spec.md §1 keeps that external, [[DESIGN.md]]): writes already
// applied to the Store during the transaction are not reverted, only
// the write-ahead log's commit boundary is withheld, so a crash before
// a later Commit leaves them out of recovery. A caller that needs true
// rollback semantics layers its own undo or snapshot-isolation above
// this Session.
func (s *Session) Rollback() error {
	if !s.active {
		return engine.Errorf(engine.KindTransaction, "no transaction is active on this session")
	}
	s.active = false
	return nil
}

// Execute translates, compiles, and runs query, returning a QueryResult
// cursor over whatever rows it produced. If no explicit transaction is
// active, Execute opens and commits one implicitly around this single
// statement.
func (s *Session) Execute(query string) (*QueryResult, error) {
	return s.ExecuteContext(context.Background(), query)
}

// ExecuteContext is Execute with caller-supplied cancellation: ctx is
// checked at chunk boundaries the same way exec.Context.Cancelled does
// for any other pipeline (spec.md §5).
func (s *Session) ExecuteContext(ctx context.Context, query string) (*QueryResult, error) {
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

	result, err := s.run(ctx, root, txn)
	if err != nil {
		return nil, err
	}
	result.elapsed = time.Since(start)

	if implicit {
		if err := s.db.commitTxn(txn); err != nil {
			return nil, engine.Wrap(engine.KindInternal, err, "committing transaction")
		}
	}
	return result, nil
}

// run compiles root and drives it to completion against a CursorSink,
// logging every mutation it makes to the write-ahead log under txn
// when one is enabled, and returns a QueryResult over the buffered
// rows.
func (s *Session) run(ctx context.Context, root plan.Op, txn uint64) (*QueryResult, error) {
	mem := exec.NewMemoryContext(s.db.mem, "session.Execute")

	var src exec.Source
	var ops []exec.PushOperator
	var err error
	if s.db.wal != nil {
		mutator := &walMutator{store: s.db.store, wal: s.db.wal, txn: txn}
		src, ops, err = plan.CompileWithMutator(root, s.db.store, mutator, mem, s.db.spill)
	} else {
		src, ops, err = plan.Compile(root, s.db.store, mem, s.db.spill)
	}
	if err != nil {
		return nil, engine.Wrap(engine.KindBind, err, "compiling query plan")
	}

	sink := exec.NewCursorSink()
	pipe := &exec.Pipeline{Source: src, Ops: ops, Sink: sink}
	ectx := &exec.Context{Context: ctx, Mem: mem, ChunkSizeHint: 2048}

	if err := runPipeline(pipe, ectx); err != nil {
		return nil, engine.Wrap(engine.KindInternal, err, "executing query")
	}

	var chunks []*vector.DataChunk
	for {
		c, ok := sink.Next()
		if !ok {
			break
		}
		chunks = append(chunks, c)
	}
	return newQueryResult(chunks), nil
}

// runPipeline recovers a walError panic raised from inside a write
// operator's Push (via walMutator) back into a plain error, since
// exec.Mutator's methods have no error return for a WAL append
// failure to travel through otherwise.
func runPipeline(pipe *exec.Pipeline, ctx *exec.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if we, ok := r.(walError); ok {
				err = fmt.Errorf("walio: %w", we.err)
				return
			}
			panic(r)
		}
	}()
	return pipe.Run(ctx)
}
