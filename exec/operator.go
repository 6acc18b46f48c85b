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

// Package exec implements the vectorized push-based physical operators
// of spec.md §4.6 (C9-C12): NodeScan, Expand, Filter, Aggregate, Sort,
// Join, Limit/Skip, Distinct, and the write operators, wired together
// by a Pipeline and driven either directly or by the morsel scheduler.
package exec

import (
	"context"
	"errors"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/vector"
)

// Outcome is the result of pushing a chunk into an operator, mirroring
// spec.md §4.6's PushOutcome enum.
type Outcome int

const (
	// Continue means the chunk (or the operator's transformation of
	// it) should flow to the next operator immediately.
	Continue Outcome = iota
	// NeedInput means the operator consumed the chunk but produced no
	// output yet (it buffered internally, e.g. an aggregate's build
	// phase) and the source should keep pulling.
	NeedInput
	// Done means the operator (and by extension its downstream chain)
	// is finished and will not accept further input; typically set by
	// Limit once its row budget is exhausted.
	Done
	// Spill means the operator could not satisfy a memory grant and
	// spilled part of its state to disk; the caller should keep going,
	// the spill is not an error.
	Spill
)

// ErrCancelled is returned by operators when Context.Cancelled() was
// observed at a chunk boundary (spec.md §5: "cancellation is checked
// at chunk boundaries").
var ErrCancelled = errors.New("exec: pipeline cancelled")

// Context carries the per-pipeline state every operator needs:
// cancellation, the memory accountant, and a place for operators that
// emit rows via the LPG Store's write path to reach the store.
type Context struct {
	context.Context

	Mem *MemoryContext

	// ChunkSizeHint is the capacity a Source should build its next
	// chunk with; sinks propagate it upstream (spec.md §4.8
	// back-pressure: "chunk-size hints travel upstream from sinks").
	ChunkSizeHint int
}

// Cancelled reports whether ctx's context has been cancelled.
func (ctx *Context) Cancelled() bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// PushOperator is any operator in the middle of a pipeline: it
// receives a chunk and returns the chunk that should flow downstream
// (which may be the same pointer, mutated, a different chunk, or nil
// when the operator only buffered) along with what happened.
type PushOperator interface {
	Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error)
	// Flush is called once the upstream source is exhausted, for
	// operators that buffer (Aggregate, Sort, hash-Join build side)
	// to emit whatever they're still holding. It may be called
	// repeatedly; ok is false once nothing remains.
	Flush(ctx *Context) (*vector.DataChunk, bool, error)
}

// Source produces chunks, pulled one at a time until exhausted.
type Source interface {
	Pull(ctx *Context) (*vector.DataChunk, bool, error)
}

// Sink is the terminal consumer of a pipeline's output rows.
type Sink interface {
	Push(ctx *Context, chunk *vector.DataChunk) (Outcome, error)
	Close(ctx *Context) error
}

// Row is a convenience view over one selected row of a chunk, used by
// operators (Filter, Aggregate, Join) that need named-column access
// rather than raw vector indexing.
type Row struct {
	Chunk *vector.DataChunk
	Index int
}

// Get returns the value of column name at this row.
func (r Row) Get(name string) (engine.Value, bool) {
	return r.Chunk.Get(name, r.Index)
}
