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

// Skip drops the first n rows that reach it, across however many
// chunks that takes, then passes everything else through unchanged
// (spec.md §4.6's Skip operator).
type Skip struct {
	remaining int
}

// NewSkip returns a Skip operator dropping the first n rows.
func NewSkip(n int) *Skip { return &Skip{remaining: n} }

// Push implements PushOperator.
func (s *Skip) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	if s.remaining <= 0 {
		return chunk, Continue, nil
	}
	sel := chunk.Selection()
	n := sel.Len()
	if s.remaining >= n {
		s.remaining -= n
		return nil, NeedInput, nil
	}
	skip := s.remaining
	s.remaining = 0
	narrowed := sel.Filter(func(row int32) bool {
		// Filter visits rows in selection order, so counting calls
		// drops exactly the first `skip` rows regardless of whether
		// the chunk's underlying selection is flat or indexed.
		if skip > 0 {
			skip--
			return false
		}
		return true
	})
	chunk.SetSelection(narrowed)
	if narrowed.Len() == 0 {
		return nil, NeedInput, nil
	}
	return chunk, Continue, nil
}

// Flush implements PushOperator; Skip holds no buffered rows.
func (s *Skip) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}

// Limit passes through at most n rows total, then reports Done so the
// pipeline stops pulling further input (spec.md §4.6's Limit operator,
// and §4.8's "Done... typically set by Limit once its row budget is
// exhausted").
type Limit struct {
	remaining int
}

// NewLimit returns a Limit operator passing through at most n rows.
func NewLimit(n int) *Limit { return &Limit{remaining: n} }

// Push implements PushOperator.
func (l *Limit) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	if l.remaining <= 0 {
		return nil, Done, nil
	}
	sel := chunk.Selection()
	n := sel.Len()
	if n <= l.remaining {
		l.remaining -= n
		if l.remaining == 0 {
			return chunk, Done, nil
		}
		return chunk, Continue, nil
	}
	take := l.remaining
	l.remaining = 0
	kept := 0
	narrowed := sel.Filter(func(row int32) bool {
		if kept >= take {
			return false
		}
		kept++
		return true
	})
	chunk.SetSelection(narrowed)
	return chunk, Done, nil
}

// Flush implements PushOperator; Limit holds no buffered rows.
func (l *Limit) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}
