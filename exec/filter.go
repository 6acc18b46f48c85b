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
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/vector"
)

// BoolResult is a three-valued boolean: True, False, or Unknown
// (spec.md §4.6, §3: three-valued logic, "Null is Incomparable"). A
// Filter drops any row that evaluates to False or Unknown -- only
// True rows survive.
type BoolResult int

const (
	False BoolResult = iota
	True
	Unknown
)

// Predicate evaluates a row to a three-valued boolean. Translators
// compile a LogicalExpression tree down to one of these closures (see
// package plan); exec itself is agnostic to expression syntax.
type Predicate func(row Row) BoolResult

// Filter narrows the selection vector by a Predicate, never copying
// the underlying columns (spec.md §4.5, §4.6: "narrows the selection
// vector; rows evaluating to null or false are dropped").
type Filter struct {
	pred Predicate
}

// NewFilter returns a Filter operator evaluating pred per row.
func NewFilter(pred Predicate) *Filter {
	return &Filter{pred: pred}
}

// Push implements PushOperator.
func (f *Filter) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	narrowed := chunk.Selection().Filter(func(row int32) bool {
		return f.pred(Row{Chunk: chunk, Index: int(row)}) == True
	})
	chunk.SetSelection(narrowed)
	if narrowed.Len() == 0 {
		return nil, NeedInput, nil
	}
	return chunk, Continue, nil
}

// Flush implements PushOperator; Filter holds no state across chunks.
func (f *Filter) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}

// OrderingTest accepts an engine.Ordering and decides whether a
// particular comparison operator (=, <, >=, ...) is satisfied by it.
type OrderingTest func(engine.Ordering) bool

// CompareValues implements spec.md §4.6's edge cases for the binary
// comparison operators a Predicate is typically built from: numeric
// widening across Int64/Float64, Unicode code-point string ordering
// (engine.Compare already does both), and "any other cross-kind
// comparison yields null" -- surfaced here as Unknown.
func CompareValues(a, b engine.Value, test OrderingTest) BoolResult {
	ord := engine.Compare(a, b)
	if ord == engine.Incomparable {
		return Unknown
	}
	if test(ord) {
		return True
	}
	return False
}
