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

import "github.com/vertexdb/lpg/vector"

// CursorSink is the Sink a session's forward-only, lazy QueryResult
// cursor sits on top of (spec.md §6: "QueryResult is lazy, row-
// oriented, forward-only"). Every pushed chunk is queued, not
// materialized beyond a Materialize() call that detaches it from
// whatever vector storage the pipeline reuses between Push calls; the
// consumer drains the queue with Next one chunk at a time, so a
// result set never needs to be buffered in full before the caller can
// start reading it.
type CursorSink struct {
	pending []*vector.DataChunk
	closed  bool
}

// NewCursorSink returns an empty CursorSink.
func NewCursorSink() *CursorSink { return &CursorSink{} }

// Push implements Sink.
func (s *CursorSink) Push(ctx *Context, chunk *vector.DataChunk) (Outcome, error) {
	if ctx.Cancelled() {
		return Continue, ErrCancelled
	}
	if chunk.Len() == 0 {
		return Continue, nil
	}
	s.pending = append(s.pending, chunk.Materialize())
	return Continue, nil
}

// Close implements Sink; a CursorSink needs no teardown, a consumer
// may keep calling Next after Close to drain whatever is left queued.
func (s *CursorSink) Close(ctx *Context) error {
	s.closed = true
	return nil
}

// Next returns the next queued chunk, or ok == false whenever no chunk
// is queued, whether or not the sink has been closed (Done tells the
// two apart).
func (s *CursorSink) Next() (chunk *vector.DataChunk, ok bool) {
	if len(s.pending) == 0 {
		return nil, false
	}
	chunk, s.pending = s.pending[0], s.pending[1:]
	return chunk, true
}

// Done reports whether the sink is closed and has no more chunks
// queued, the condition a cursor checks to stop calling Next.
func (s *CursorSink) Done() bool {
	return s.closed && len(s.pending) == 0
}

// CountSink discards every row and only counts them, the Sink a
// write-only statement (one with no RETURN clause) drains into to
// report its affected-row count (spec.md §4.6's write operators "emit
// one row per affected entity", and a caller that isn't binding those
// rows to anything still wants the count).
type CountSink struct {
	n int64
}

// NewCountSink returns an empty CountSink.
func NewCountSink() *CountSink { return &CountSink{} }

// Push implements Sink.
func (s *CountSink) Push(ctx *Context, chunk *vector.DataChunk) (Outcome, error) {
	if ctx.Cancelled() {
		return Continue, ErrCancelled
	}
	s.n += int64(chunk.Len())
	return Continue, nil
}

// Close implements Sink.
func (s *CountSink) Close(ctx *Context) error { return nil }

// Count returns the total number of rows pushed so far.
func (s *CountSink) Count() int64 { return s.n }
